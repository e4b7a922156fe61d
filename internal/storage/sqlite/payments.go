package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/storage"
)

// WithSplitTx runs fn in a BEGIN IMMEDIATE transaction with the split loaded.
func (s *SQLiteStore) WithSplitTx(ctx context.Context, splitID string, fn func(tx storage.SplitTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	split, err := loadSplit(ctx, tx, splitID)
	if err != nil {
		return err
	}

	if err := fn(&splitTx{ctx: ctx, tx: tx, split: split}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// splitTx implements storage.SplitTx on top of a *sql.Tx.
type splitTx struct {
	ctx   context.Context
	tx    *sql.Tx
	split *models.Split
}

func (t *splitTx) Split() *models.Split {
	return t.split
}

func (t *splitTx) TransactionRecorded(signature string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT (SELECT COUNT(*) FROM participants WHERE transaction_signature = ?)
		      + (SELECT COUNT(*) FROM payment_history WHERE transaction_signature = ?)`,
		signature, signature,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up transaction: %w", err)
	}
	return n > 0, nil
}

func (t *splitTx) MarkParticipantPaid(participantID, signature string, paidAt int64) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE participants SET paid = 1, transaction_signature = ?, paid_at = ?
		 WHERE id = ? AND split_id = ? AND paid = 0`,
		signature, paidAt, participantID, t.split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if t.split.Participant(participantID) == nil {
			return fmt.Errorf("%w: %s", storage.ErrParticipantNotFound, participantID)
		}
		return storage.ErrStateChanged
	}

	if p := t.split.Participant(participantID); p != nil {
		p.Paid = true
		p.TransactionSignature = signature
		p.PaidAt = paidAt
	}
	return nil
}

func (t *splitTx) UnpaidCount() (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT COUNT(*) FROM participants WHERE split_id = ? AND paid = 0",
		t.split.ID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unpaid participants: %w", err)
	}
	return n, nil
}

func (t *splitTx) LastDigest() ([]byte, error) {
	var digest []byte
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT digest FROM payment_history WHERE split_id = ? ORDER BY id DESC LIMIT 1",
		t.split.ID,
	).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last digest: %w", err)
	}
	return digest, nil
}

func (t *splitTx) AppendPayment(rec *models.PaymentRecord) error {
	var prev any
	if len(rec.PrevDigest) > 0 {
		prev = rec.PrevDigest
	}
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO payment_history (split_id, participant_id, wallet_address, amount, currency,
		     transaction_signature, status, split_completed, recorded_at, prev_digest, digest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SplitID, rec.ParticipantID, rec.WalletAddress, rec.Amount, string(rec.Currency),
		rec.TransactionSignature, string(rec.Status), rec.SplitCompleted, rec.RecordedAt,
		prev, rec.Digest,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read payment record id: %w", err)
	}
	rec.ID = id
	return nil
}

func (t *splitTx) CompleteSplit(at int64) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE splits SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(models.StatusCompleted), at, at, t.split.ID, string(models.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to complete split: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrStateChanged
	}
	t.split.Status = models.StatusCompleted
	t.split.CompletedAt = at
	t.split.UpdatedAt = at
	return nil
}

// ListPayments returns a split's payment history in recording order.
func (s *SQLiteStore) ListPayments(ctx context.Context, splitID string) ([]*models.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, split_id, participant_id, wallet_address, amount, currency, transaction_signature,
		        status, split_completed, recorded_at, prev_digest, digest
		 FROM payment_history WHERE split_id = ? ORDER BY id`,
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		rec := &models.PaymentRecord{}
		var currency, status string
		if err := rows.Scan(&rec.ID, &rec.SplitID, &rec.ParticipantID, &rec.WalletAddress,
			&rec.Amount, &currency, &rec.TransactionSignature, &status, &rec.SplitCompleted,
			&rec.RecordedAt, &rec.PrevDigest, &rec.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan payment record: %w", err)
		}
		rec.Currency = models.Currency(currency)
		rec.Status = models.PaymentStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return records, nil
}
