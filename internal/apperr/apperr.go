// Package apperr defines the error categories shared by every PaySplit
// component. Domain packages declare their own sentinel errors and wrap one of
// these categories with %w, so callers can classify any error with errors.Is
// without knowing which package produced it.
package apperr

import "errors"

var (
	// ErrAuthentication marks a bad or missing signature or session.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInfrastructure marks an unreachable store or ledger. Retryable.
	ErrInfrastructure = errors.New("infrastructure unavailable")

	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("invalid input")

	// ErrConflict marks a business conflict such as a double payment.
	// Terminal for the attempt.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a missing split, participant or transaction.
	ErrNotFound = errors.New("not found")

	// ErrPermission marks an authenticated caller acting outside their rights.
	ErrPermission = errors.New("permission denied")

	// ErrLedgerTimeout marks a confirmation wait that exceeded its bound.
	// The outcome is ambiguous: the transaction may still land.
	ErrLedgerTimeout = errors.New("ledger confirmation timed out")

	// ErrUnrecorded marks a payment confirmed on-chain that the settlement
	// engine has not recorded yet.
	ErrUnrecorded = errors.New("payment confirmed on-chain but not yet recorded")
)

// Infrastructure wraps err as an infrastructure failure, keeping the original
// error in the chain. A nil err stays nil.
func Infrastructure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInfrastructure) {
		return err
	}
	return errors.Join(ErrInfrastructure, err)
}

// Categorized reports whether err carries any of the category sentinels.
func Categorized(err error) bool {
	for _, c := range []error{
		ErrAuthentication, ErrInfrastructure, ErrValidation, ErrConflict,
		ErrNotFound, ErrPermission, ErrLedgerTimeout, ErrUnrecorded,
	} {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}
