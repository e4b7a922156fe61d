package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/subodh038/paysplit/internal/calculator"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/wallet"
)

// NewSplit is the input of CreateSplit.
type NewSplit struct {
	Title            string
	RecipientAddress string
	Currency         models.Currency
	DueDate          string
	CreatedBy        string
	Participants     []NewParticipant
	// EvenTotal, when set, is divided evenly among Participants, whose
	// Amount must then be left zero.
	EvenTotal float64
}

// NewParticipant is one share of a NewSplit.
type NewParticipant struct {
	WalletAddress string
	Amount        float64
}

// CreateSplit validates in and stores it as an active split with every
// participant unpaid. TotalAmount is the sum of the shares.
func (e *Engine) CreateSplit(ctx context.Context, in NewSplit) (*models.Split, error) {
	split, err := e.buildSplit(in)
	if err != nil {
		return nil, err
	}

	if err := e.store.CreateSplit(ctx, split); err != nil {
		return nil, classify(err)
	}

	slog.Info("Split created",
		"split_id", split.ID,
		"currency", split.Currency,
		"participants", len(split.Participants),
		"total", split.TotalAmount)
	e.publish(split, notify.SplitCreated, "")
	return split, nil
}

func (e *Engine) buildSplit(in NewSplit) (*models.Split, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSplit)
	}
	if err := wallet.ValidateAddress(in.RecipientAddress); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if err := wallet.ValidateAddress(in.CreatedBy); err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}
	currency, err := models.ParseCurrency(string(in.Currency))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, err)
	}
	if _, err := time.Parse(models.DueDateLayout, in.DueDate); err != nil {
		return nil, fmt.Errorf("%w: due date must be YYYY-MM-DD", ErrInvalidSplit)
	}
	if len(in.Participants) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, calculator.ErrNoParticipants)
	}

	seen := make(map[string]bool, len(in.Participants))
	shares := make([]calculator.Share, len(in.Participants))
	wallets := make([]string, len(in.Participants))
	for i, p := range in.Participants {
		if err := wallet.ValidateAddress(p.WalletAddress); err != nil {
			return nil, fmt.Errorf("participant %d: %w", i+1, err)
		}
		if seen[p.WalletAddress] {
			return nil, fmt.Errorf("%w: wallet %s appears more than once", ErrInvalidSplit, p.WalletAddress)
		}
		seen[p.WalletAddress] = true
		wallets[i] = p.WalletAddress
		shares[i] = calculator.Share{Participant: p.WalletAddress, Amount: p.Amount}
	}

	decimals := e.decimals[currency]
	if in.EvenTotal != 0 {
		for _, p := range in.Participants {
			if p.Amount != 0 {
				return nil, fmt.Errorf("%w: amounts must be empty when splitting evenly", ErrInvalidSplit)
			}
		}
		if shares, err = calculator.SplitEvenly(in.EvenTotal, wallets, decimals); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, err)
		}
	}

	total, err := calculator.TotalShares(shares, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, err)
	}

	split := &models.Split{
		Title:            title,
		RecipientAddress: in.RecipientAddress,
		TotalAmount:      total,
		Currency:         currency,
		DueDate:          in.DueDate,
		Status:           models.StatusActive,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        e.now().Unix(),
		Participants:     make([]models.Participant, len(shares)),
	}
	for i, s := range shares {
		split.Participants[i] = models.Participant{WalletAddress: s.Participant, Amount: s.Amount}
	}
	return split, nil
}

// GetSplit returns a split the caller created or participates in.
func (e *Engine) GetSplit(ctx context.Context, splitID, caller string) (*models.Split, error) {
	split, err := e.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, classify(err)
	}
	if !split.VisibleTo(caller) {
		return nil, ErrNotVisible
	}
	return split, nil
}

// ListVisible returns the active splits wallet created or participates in,
// newest first.
func (e *Engine) ListVisible(ctx context.Context, wallet string) ([]*models.Split, error) {
	splits, err := e.store.ListVisibleSplits(ctx, wallet)
	return splits, classify(err)
}

// History returns the completed and cancelled splits visible to wallet,
// newest first.
func (e *Engine) History(ctx context.Context, wallet string) ([]*models.HistoryEntry, error) {
	entries, err := e.store.ListHistory(ctx, wallet)
	return entries, classify(err)
}

// PaymentHistory returns the recorded payments of a split visible to caller.
func (e *Engine) PaymentHistory(ctx context.Context, splitID, caller string) ([]*models.PaymentRecord, error) {
	if _, err := e.GetSplit(ctx, splitID, caller); err != nil {
		return nil, err
	}
	records, err := e.store.ListPayments(ctx, splitID)
	return records, classify(err)
}

// Cancel moves an active split to cancelled. Only its creator may cancel it.
func (e *Engine) Cancel(ctx context.Context, splitID, caller string) (*models.Split, error) {
	split, err := e.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, classify(err)
	}
	if split.CreatedBy != caller {
		return nil, ErrNotCreator
	}
	if split.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: split is %s", ErrSplitNotActive, split.Status)
	}

	now := e.now().Unix()
	if err := e.store.CancelSplit(ctx, splitID, now); err != nil {
		return nil, classify(err)
	}
	split.Status = models.StatusCancelled
	split.UpdatedAt = now

	slog.Info("Split cancelled", "split_id", splitID)
	e.publish(split, notify.SplitCancelled, "")
	return split, nil
}

// CheckPayable reports whether wallet may pay participantID's share of split
// right now. It is checked before any money moves; RecordPayment re-checks
// the same rules atomically afterwards.
func CheckPayable(split *models.Split, participantID, wallet string) (*models.Participant, error) {
	part := split.Participant(participantID)
	if part == nil {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	if part.Paid {
		return nil, ErrAlreadyPaid
	}
	if split.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: split is %s", ErrSplitNotActive, split.Status)
	}
	if part.WalletAddress != wallet {
		return nil, ErrPayerMismatch
	}
	return part, nil
}

// CheckRelease reports whether caller may release the funds of split.
func CheckRelease(split *models.Split, caller string) error {
	if split.CreatedBy != caller {
		return ErrNotCreator
	}
	if split.ReleaseSignature != "" {
		return ErrAlreadyReleased
	}
	if split.Status != models.StatusCompleted {
		return fmt.Errorf("%w: split is %s", ErrNotCompleted, split.Status)
	}
	return nil
}

// MarkReleased stores the transaction of the funds-release action.
func (e *Engine) MarkReleased(ctx context.Context, splitID, caller, signature string) (*models.Split, error) {
	split, err := e.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, classify(err)
	}
	if err := CheckRelease(split, caller); err != nil {
		return nil, err
	}

	now := e.now().Unix()
	if err := e.store.SetReleaseSignature(ctx, splitID, signature, now); err != nil {
		return nil, classify(err)
	}
	split.ReleaseSignature = signature
	split.UpdatedAt = now

	slog.Info("Split funds released", "split_id", splitID, "tx", signature)
	e.publish(split, notify.SplitReleased, "")
	return split, nil
}

// Progress summarizes how much of split has been paid.
func Progress(split *models.Split) calculator.Progress {
	shares := make([]calculator.ShareStatus, len(split.Participants))
	for i, p := range split.Participants {
		shares[i] = calculator.ShareStatus{Amount: p.Amount, Paid: p.Paid}
	}
	return calculator.CalculateProgress(shares)
}
