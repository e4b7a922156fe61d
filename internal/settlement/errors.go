package settlement

import (
	"fmt"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/storage"
)

var (
	// ErrInvalidSplit wraps every CreateSplit validation failure.
	ErrInvalidSplit = fmt.Errorf("%w: invalid split", apperr.ErrValidation)
	// ErrInvalidPayment wraps every RecordPayment validation failure.
	ErrInvalidPayment = fmt.Errorf("%w: invalid payment", apperr.ErrValidation)

	ErrSplitNotFound       = storage.ErrSplitNotFound
	ErrParticipantNotFound = storage.ErrParticipantNotFound

	ErrSplitNotActive       = fmt.Errorf("%w: split is not active", apperr.ErrConflict)
	ErrAlreadyPaid          = fmt.Errorf("%w: participant has already paid", apperr.ErrConflict)
	ErrAlreadyRecorded      = fmt.Errorf("%w: payment already recorded", apperr.ErrConflict)
	ErrDuplicateTransaction = fmt.Errorf("%w: transaction already proves another payment", apperr.ErrConflict)
	ErrPayerMismatch        = fmt.Errorf("%w: wallet does not match the participant", apperr.ErrConflict)
	ErrAmountMismatch       = fmt.Errorf("%w: amount does not match the participant's share", apperr.ErrConflict)
	ErrCurrencyMismatch     = fmt.Errorf("%w: currency does not match the split", apperr.ErrConflict)
	ErrNotCompleted         = fmt.Errorf("%w: split is not completed", apperr.ErrConflict)
	ErrAlreadyReleased      = fmt.Errorf("%w: funds already released", apperr.ErrConflict)

	ErrNotCreator = fmt.Errorf("%w: only the split creator may do this", apperr.ErrPermission)
	ErrNotVisible = fmt.Errorf("%w: split is not shared with this wallet", apperr.ErrPermission)
)

// classify leaves categorized errors alone and marks everything else as an
// infrastructure failure.
func classify(err error) error {
	if err == nil || apperr.Categorized(err) {
		return err
	}
	return apperr.Infrastructure(err)
}
