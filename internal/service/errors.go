package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/payment"
	"github.com/subodh038/paysplit/pkg/api"
)

// toConnectError maps an error category to its Connect code. Payments that
// were submitted but not settled carry their transaction ID in the
// api.TransactionIDHeader metadata so the client can reconcile later.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	cerr := connect.NewError(codeOf(err), err)
	if id := payment.TxID(err); id != "" {
		cerr.Meta().Set(api.TransactionIDHeader, id)
	}
	return cerr
}

func codeOf(err error) connect.Code {
	// Ambiguous outcomes first: they may be joined with a cause of any category.
	switch {
	case errors.Is(err, apperr.ErrLedgerTimeout):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, apperr.ErrUnrecorded):
		return connect.CodeDataLoss
	case errors.Is(err, apperr.ErrInfrastructure):
		return connect.CodeUnavailable
	case errors.Is(err, apperr.ErrValidation):
		return connect.CodeInvalidArgument
	case errors.Is(err, apperr.ErrAuthentication):
		return connect.CodeUnauthenticated
	case errors.Is(err, apperr.ErrPermission):
		return connect.CodePermissionDenied
	case errors.Is(err, apperr.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, apperr.ErrConflict):
		return connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}
