// Package settlement implements the split settlement engine: split lifecycle,
// per-participant payment recording and completion aggregation.
//
// Every state change of a split goes through the Engine. Recording a payment
// marks the participant paid, appends a digest-chained history record and
// completes the split when nobody is left, all inside one store transaction
// scoped to the split. Concurrent payments against the same split therefore
// cannot both miss the completion.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/subodh038/paysplit/internal/audit"
	"github.com/subodh038/paysplit/internal/calculator"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/storage"
	"github.com/subodh038/paysplit/internal/wallet"
)

// Payment is a verified on-chain payment to be recorded against a participant.
type Payment struct {
	SplitID       string
	ParticipantID string
	TransactionID string
	Amount        float64
	Currency      models.Currency
	WalletAddress string
}

// Result is the outcome of a recorded payment.
type Result struct {
	// Split as it stands after the payment.
	Split     *models.Split
	Record    *models.PaymentRecord
	Completed bool
}

// Engine owns every settlement state transition.
type Engine struct {
	store    storage.Store
	events   *notify.Hub[notify.SplitEvent]
	decimals map[models.Currency]uint8
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecimals overrides the number of decimal places amounts in currency may have.
func WithDecimals(currency models.Currency, decimals uint8) Option {
	return func(e *Engine) { e.decimals[currency] = decimals }
}

// WithClock replaces the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a settlement engine on top of store.
func NewEngine(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		events: &notify.Hub[notify.SplitEvent]{},
		decimals: map[models.Currency]uint8{
			models.CurrencySOL:  9,
			models.CurrencyUSDC: 6,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the hub split changes are published on after they commit.
func (e *Engine) Events() *notify.Hub[notify.SplitEvent] {
	return e.events
}

// RecordPayment records p against its participant and completes the split if
// p was the last outstanding share.
//
// Recording is all-or-nothing. A second attempt for the same transaction
// returns ErrAlreadyRecorded and changes nothing, so callers may retry
// freely after an ambiguous failure.
func (e *Engine) RecordPayment(ctx context.Context, p Payment) (*Result, error) {
	if err := e.validatePayment(p); err != nil {
		return nil, err
	}

	var res *Result
	err := e.store.WithSplitTx(ctx, p.SplitID, func(tx storage.SplitTx) error {
		split := tx.Split()

		part := split.Participant(p.ParticipantID)
		if part == nil {
			return fmt.Errorf("%w: %s", ErrParticipantNotFound, p.ParticipantID)
		}
		if part.Paid {
			if part.TransactionSignature == p.TransactionID {
				return ErrAlreadyRecorded
			}
			return ErrAlreadyPaid
		}
		if split.Status != models.StatusActive {
			return fmt.Errorf("%w: split is %s", ErrSplitNotActive, split.Status)
		}
		if part.WalletAddress != p.WalletAddress {
			return ErrPayerMismatch
		}
		if p.Currency != split.Currency {
			return ErrCurrencyMismatch
		}
		if err := e.matchAmount(p.Amount, part.Amount, split.Currency); err != nil {
			return err
		}

		recorded, err := tx.TransactionRecorded(p.TransactionID)
		if err != nil {
			return err
		}
		if recorded {
			return ErrDuplicateTransaction
		}

		now := e.now().Unix()
		if err := tx.MarkParticipantPaid(part.ID, p.TransactionID, now); err != nil {
			return err
		}
		unpaid, err := tx.UnpaidCount()
		if err != nil {
			return err
		}
		prev, err := tx.LastDigest()
		if err != nil {
			return err
		}

		rec := &models.PaymentRecord{
			SplitID:              split.ID,
			ParticipantID:        part.ID,
			WalletAddress:        part.WalletAddress,
			Amount:               part.Amount,
			Currency:             split.Currency,
			TransactionSignature: p.TransactionID,
			Status:               models.PaymentCompleted,
			SplitCompleted:       unpaid == 0,
			RecordedAt:           now,
		}
		if err := audit.Seal(rec, prev); err != nil {
			return err
		}
		if err := tx.AppendPayment(rec); err != nil {
			return err
		}
		if unpaid == 0 {
			if err := tx.CompleteSplit(now); err != nil {
				return err
			}
		}

		res = &Result{Split: split, Record: rec, Completed: unpaid == 0}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	slog.Info("Payment recorded",
		"split_id", p.SplitID,
		"participant_id", p.ParticipantID,
		"tx", p.TransactionID,
		"completed", res.Completed)

	e.publish(res.Split, notify.SplitPaid, p.ParticipantID)
	if res.Completed {
		e.publish(res.Split, notify.SplitCompleted, "")
	}
	return res, nil
}

func (e *Engine) validatePayment(p Payment) error {
	switch {
	case p.SplitID == "":
		return fmt.Errorf("%w: split_id is required", ErrInvalidPayment)
	case p.ParticipantID == "":
		return fmt.Errorf("%w: participant_id is required", ErrInvalidPayment)
	case strings.TrimSpace(p.TransactionID) == "":
		return fmt.Errorf("%w: transaction_id is required", ErrInvalidPayment)
	}
	if err := wallet.ValidateAddress(p.WalletAddress); err != nil {
		return err
	}
	if _, err := models.ParseCurrency(string(p.Currency)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}
	if _, err := calculator.ToBaseUnits(p.Amount, e.decimals[p.Currency]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}
	return nil
}

// matchAmount compares amounts in base units. Partial payments are not supported.
func (e *Engine) matchAmount(paid, owed float64, currency models.Currency) error {
	d := e.decimals[currency]
	paidUnits, err := calculator.ToBaseUnits(paid, d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}
	owedUnits, err := calculator.ToBaseUnits(owed, d)
	if err != nil {
		return fmt.Errorf("stored share is not representable: %w", err)
	}
	if paidUnits != owedUnits {
		return fmt.Errorf("%w: paid %v, owed %v", ErrAmountMismatch, paid, owed)
	}
	return nil
}

func (e *Engine) publish(split *models.Split, kind notify.SplitEventKind, participantID string) {
	wallets := make([]string, 0, len(split.Participants)+1)
	wallets = append(wallets, split.CreatedBy)
	for _, p := range split.Participants {
		wallets = append(wallets, p.WalletAddress)
	}
	e.events.Publish(notify.SplitEvent{
		SplitID:       split.ID,
		Kind:          kind,
		Status:        split.Status,
		ParticipantID: participantID,
		Wallets:       wallets,
		At:            e.now(),
	})
}
