package settlement

import (
	"context"
	"fmt"

	"github.com/subodh038/paysplit/internal/audit"
	"github.com/subodh038/paysplit/internal/calculator"
	"github.com/subodh038/paysplit/internal/models"
)

// AuditReport lists every settlement invariant a split violates.
type AuditReport struct {
	SplitID    string
	Records    int
	Progress   calculator.Progress
	Violations []string
}

// OK reports whether no violation was found.
func (r *AuditReport) OK() bool {
	return len(r.Violations) == 0
}

// Audit re-checks the stored state of a split against its payment history.
func (e *Engine) Audit(ctx context.Context, splitID, caller string) (*AuditReport, error) {
	split, err := e.GetSplit(ctx, splitID, caller)
	if err != nil {
		return nil, err
	}
	records, err := e.store.ListPayments(ctx, splitID)
	if err != nil {
		return nil, classify(err)
	}
	return e.audit(split, records), nil
}

func (e *Engine) audit(split *models.Split, records []*models.PaymentRecord) *AuditReport {
	r := &AuditReport{SplitID: split.ID, Records: len(records), Progress: Progress(split)}
	violate := func(format string, args ...any) {
		r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
	}

	decimals := e.decimals[split.Currency]
	shares := make([]calculator.Share, len(split.Participants))
	for i, p := range split.Participants {
		shares[i] = calculator.Share{Participant: p.ID, Amount: p.Amount}
		if p.Paid != (p.TransactionSignature != "") {
			violate("participant %s: paid=%v with signature %q", p.ID, p.Paid, p.TransactionSignature)
		}
	}
	if total, err := calculator.TotalShares(shares, decimals); err != nil {
		violate("shares: %v", err)
	} else if !sameAmount(total, split.TotalAmount, decimals) {
		violate("total %v does not equal the sum of shares %v", split.TotalAmount, total)
	}

	allPaid := split.AllPaid()
	switch split.Status {
	case models.StatusCompleted:
		if !allPaid {
			violate("split is completed with unpaid participants")
		}
	case models.StatusActive:
		if allPaid {
			violate("every participant paid but split is still active")
		}
	}

	byTx := make(map[string]*models.PaymentRecord, len(records))
	completions := 0
	for _, rec := range records {
		if _, dup := byTx[rec.TransactionSignature]; dup {
			violate("transaction %s recorded twice", rec.TransactionSignature)
		}
		byTx[rec.TransactionSignature] = rec
		if rec.SplitCompleted {
			completions++
		}
	}
	for _, p := range split.Participants {
		if !p.Paid {
			continue
		}
		rec, ok := byTx[p.TransactionSignature]
		switch {
		case !ok:
			violate("participant %s paid without a history record", p.ID)
		case rec.ParticipantID != p.ID:
			violate("transaction %s recorded for %s but proves %s", p.TransactionSignature, rec.ParticipantID, p.ID)
		case !sameAmount(rec.Amount, p.Amount, decimals):
			violate("participant %s recorded amount %v differs from share %v", p.ID, rec.Amount, p.Amount)
		}
	}
	if len(records) != r.Progress.PaidCount {
		violate("%d history records for %d paid participants", len(records), r.Progress.PaidCount)
	}

	wantCompletions := 0
	if split.Status == models.StatusCompleted {
		wantCompletions = 1
	}
	if completions != wantCompletions {
		violate("%d records completed the split, want %d", completions, wantCompletions)
	}

	if err := audit.VerifyChain(records); err != nil {
		violate("%v", err)
	}
	return r
}

func sameAmount(a, b float64, decimals uint8) bool {
	ua, errA := calculator.ToBaseUnits(a, decimals)
	ub, errB := calculator.ToBaseUnits(b, decimals)
	return errA == nil && errB == nil && ua == ub
}
