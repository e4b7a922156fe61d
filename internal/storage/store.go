// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"fmt"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/models"
)

var (
	ErrSplitNotFound       = fmt.Errorf("%w: split", apperr.ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("%w: participant", apperr.ErrNotFound)
	// ErrStateChanged is returned when a conditional update matched no row
	// because the split or participant is no longer in the expected state.
	ErrStateChanged = fmt.Errorf("%w: state changed concurrently", apperr.ErrConflict)
)

// Store defines the interface for split storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the settlement engine.
type Store interface {
	// CreateSplit persists a new split with its participants.
	// Empty IDs and timestamps are filled in by the store.
	CreateSplit(ctx context.Context, split *models.Split) error

	// GetSplit retrieves a split and its participants in creation order.
	// Returns ErrSplitNotFound if it does not exist.
	GetSplit(ctx context.Context, splitID string) (*models.Split, error)

	// ListVisibleSplits returns active splits where wallet is the creator or a
	// participant, newest first.
	ListVisibleSplits(ctx context.Context, wallet string) ([]*models.Split, error)

	// ListHistory returns completed and cancelled splits visible to wallet,
	// newest first, with participant counts.
	ListHistory(ctx context.Context, wallet string) ([]*models.HistoryEntry, error)

	// ListPayments returns the payment history of a split, oldest first.
	ListPayments(ctx context.Context, splitID string) ([]*models.PaymentRecord, error)

	// CancelSplit moves an active split to cancelled.
	// Returns ErrStateChanged if the split is not active.
	CancelSplit(ctx context.Context, splitID string, at int64) error

	// SetReleaseSignature stores the funds-release transaction of a completed
	// split. Returns ErrStateChanged if the split is not completed or was
	// already released.
	SetReleaseSignature(ctx context.Context, splitID, signature string, at int64) error

	// WithSplitTx runs fn inside one isolated write transaction scoped to a
	// split. The split is loaded inside the transaction. If fn returns an
	// error, nothing fn did is kept.
	WithSplitTx(ctx context.Context, splitID string, fn func(tx SplitTx) error) error

	// GetIdentityByWallet returns nil, nil when no identity exists.
	GetIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, error)

	// CreateIdentity inserts identity unless one already exists for its wallet,
	// and returns whichever identity is stored.
	CreateIdentity(ctx context.Context, identity *models.Identity) (*models.Identity, error)

	// Close releases any resources held by the store.
	Close() error
}

// SplitTx is the unit of work used to record a payment.
type SplitTx interface {
	// Split is the split as read inside the transaction.
	Split() *models.Split

	// TransactionRecorded reports whether signature already proves any payment.
	TransactionRecorded(signature string) (bool, error)

	// MarkParticipantPaid sets paid, the signature and paid_at on an unpaid
	// participant. Returns ErrStateChanged if it was already paid.
	MarkParticipantPaid(participantID, signature string, paidAt int64) error

	// UnpaidCount counts the split's participants that have not paid.
	UnpaidCount() (int, error)

	// LastDigest returns the digest of the split's newest payment record,
	// or nil if there is none.
	LastDigest() ([]byte, error)

	// AppendPayment inserts an immutable payment record and sets rec.ID.
	AppendPayment(rec *models.PaymentRecord) error

	// CompleteSplit moves the split from active to completed.
	CompleteSplit(at int64) error
}
