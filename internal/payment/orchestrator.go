// Package payment drives a payment from the ledger to the settlement engine.
//
// Pay resolves the transfer, submits it, waits a bounded time for
// confirmation, re-checks the landed transaction and only then records it.
// Nothing before the final recording step touches settlement state, and once
// a transaction has been submitted its ID is never lost: every later failure
// comes back as a *PendingError carrying it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/ledger"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/settlement"
)

// DefaultConfirmTimeout bounds the wait for confirmed commitment.
const DefaultConfirmTimeout = 60 * time.Second

// Recorder records a verified payment. *settlement.Engine is the local one.
type Recorder interface {
	RecordPayment(ctx context.Context, p settlement.Payment) (*settlement.Result, error)
}

// Releaser stores the funds-release transaction of a split.
type Releaser interface {
	MarkReleased(ctx context.Context, splitID, caller, signature string) (*models.Split, error)
}

// Request is a participant paying their share of a split.
type Request struct {
	SplitID       string
	ParticipantID string
	Payer         string
	Recipient     string
	Amount        float64
	Currency      models.Currency
}

// RequestFor builds the request for participant paying their share of split.
func RequestFor(split *models.Split, participant *models.Participant) Request {
	return Request{
		SplitID:       split.ID,
		ParticipantID: participant.ID,
		Payer:         participant.WalletAddress,
		Recipient:     split.RecipientAddress,
		Amount:        participant.Amount,
		Currency:      split.Currency,
	}
}

// PendingError is a failure after submission. TxID identifies the
// transaction so the caller can reconcile instead of paying twice.
type PendingError struct {
	TxID string
	Err  error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.TxID, e.Err)
}

func (e *PendingError) Unwrap() error {
	return e.Err
}

// TxID returns the transaction carried by err, if any.
func TxID(err error) string {
	var pe *PendingError
	if errors.As(err, &pe) {
		return pe.TxID
	}
	return ""
}

// Orchestrator runs payments and funds releases.
type Orchestrator struct {
	ledger         ledger.Client
	recorder       Recorder
	assets         ledger.Assets
	confirmTimeout time.Duration
	releaseAmount  uint64
	observe        func(outcome string)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAssets overrides ledger.DefaultAssets.
func WithAssets(a ledger.Assets) Option {
	return func(o *Orchestrator) { o.assets = a }
}

// WithConfirmTimeout overrides DefaultConfirmTimeout.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.confirmTimeout = d }
}

// WithReleaseLamports sets the amount of the funds-release transfer.
func WithReleaseLamports(n uint64) Option {
	return func(o *Orchestrator) { o.releaseAmount = n }
}

// WithObserver is called with the outcome of every Pay.
func WithObserver(fn func(outcome string)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// New creates an orchestrator.
func New(client ledger.Client, recorder Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:         client,
		recorder:       recorder,
		assets:         ledger.DefaultAssets(),
		confirmTimeout: DefaultConfirmTimeout,
		observe:        func(string) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Pay transfers req.Amount from the payer to the recipient and records it.
// Cancelling ctx before submission abandons the payment without effect;
// after submission the confirmation wait and the recording run to their
// own bound regardless of ctx.
func (o *Orchestrator) Pay(ctx context.Context, req Request) (string, error) {
	id, err := o.pay(ctx, req)
	o.observe(Outcome(err))
	return id, err
}

func (o *Orchestrator) pay(ctx context.Context, req Request) (string, error) {
	transfer, err := ledger.NewTransfer(ctx, o.ledger, o.assets, req.Payer, req.Recipient, req.Amount, req.Currency)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := o.ledger.Submit(ctx, transfer)
	if err != nil {
		return "", err
	}
	slog.Info("Payment submitted", "split_id", req.SplitID, "participant_id", req.ParticipantID, "tx", id)

	detached := context.WithoutCancel(ctx)
	if err := o.await(detached, id); err != nil {
		return id, err
	}
	return id, o.Reconcile(detached, req, id)
}

func (o *Orchestrator) await(ctx context.Context, id string) error {
	waitCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	err := o.ledger.AwaitConfirmation(waitCtx, id, ledger.CommitmentConfirmed)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("Payment confirmation timed out", "tx", id, "timeout", o.confirmTimeout)
		return &PendingError{TxID: id, Err: errors.Join(apperr.ErrLedgerTimeout, err)}
	default:
		return &PendingError{TxID: id, Err: err}
	}
}

// Reconcile verifies that transaction id landed and carries req's transfer,
// then records it. It is safe to call repeatedly: a payment that is already
// recorded under id counts as success.
func (o *Orchestrator) Reconcile(ctx context.Context, req Request, id string) error {
	rec, err := o.ledger.GetTransaction(ctx, id)
	if err != nil {
		return &PendingError{TxID: id, Err: err}
	}
	if rec.Failed {
		return &PendingError{TxID: id, Err: fmt.Errorf("%w: %s", ledger.ErrTxFailed, rec.Err)}
	}
	if !rec.Confirmed {
		return &PendingError{TxID: id, Err: ledger.ErrNotConfirmed}
	}

	want, err := ledger.NewTransfer(ctx, o.ledger, o.assets, req.Payer, req.Recipient, req.Amount, req.Currency)
	if err != nil {
		return &PendingError{TxID: id, Err: err}
	}
	if !rec.Carries(want) {
		return &PendingError{TxID: id, Err: ledger.ErrTransferMismatch}
	}

	_, err = o.recorder.RecordPayment(ctx, settlement.Payment{
		SplitID:       req.SplitID,
		ParticipantID: req.ParticipantID,
		TransactionID: id,
		Amount:        req.Amount,
		Currency:      req.Currency,
		WalletAddress: req.Payer,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, settlement.ErrAlreadyRecorded):
		slog.Info("Payment already recorded", "split_id", req.SplitID, "tx", id)
		return nil
	default:
		slog.Error("Confirmed payment not recorded",
			"split_id", req.SplitID,
			"participant_id", req.ParticipantID,
			"tx", id,
			"error", err)
		return &PendingError{TxID: id, Err: errors.Join(apperr.ErrUnrecorded, err)}
	}
}

// Release sends the funds-release transfer of a completed split from its
// creator to the recipient and stores the transaction.
func (o *Orchestrator) Release(ctx context.Context, releaser Releaser, split *models.Split, caller string) (string, error) {
	if err := settlement.CheckRelease(split, caller); err != nil {
		return "", err
	}

	id, err := o.ledger.Submit(ctx, ledger.NativeTransfer{
		From:     caller,
		To:       split.RecipientAddress,
		Lamports: o.releaseAmount,
	})
	if err != nil {
		return "", err
	}

	detached := context.WithoutCancel(ctx)
	if err := o.await(detached, id); err != nil {
		return id, err
	}
	if _, err := releaser.MarkReleased(detached, split.ID, caller, id); err != nil {
		return id, &PendingError{TxID: id, Err: errors.Join(apperr.ErrUnrecorded, err)}
	}
	return id, nil
}

// Outcome names the result of a payment for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, apperr.ErrLedgerTimeout):
		return "timeout"
	case errors.Is(err, apperr.ErrUnrecorded):
		return "unrecorded"
	case errors.Is(err, ledger.ErrTxFailed):
		return "failed"
	case errors.Is(err, context.Canceled):
		return "abandoned"
	case errors.Is(err, apperr.ErrInfrastructure):
		return "unavailable"
	default:
		return "rejected"
	}
}
