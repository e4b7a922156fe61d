// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
//
// The pool is limited to a single connection and every transaction starts
// with BEGIN IMMEDIATE, so writers are serialized: two payments against the
// same split can never both read "one unpaid participant left".
// Rows must be fully drained before issuing the next query.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?" + strings.Join([]string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
	}, "&")

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSplit persists a new split and its participants in one transaction.
func (s *SQLiteStore) CreateSplit(ctx context.Context, split *models.Split) error {
	// Generate IDs if not set
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if split.CreatedAt == 0 {
		split.CreatedAt = time.Now().Unix()
	}
	split.UpdatedAt = split.CreatedAt
	if split.Status == "" {
		split.Status = models.StatusActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO splits (id, title, recipient_address, total_amount, currency, due_date, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		split.ID, split.Title, split.RecipientAddress, split.TotalAmount, string(split.Currency),
		split.DueDate, string(split.Status), split.CreatedBy, split.CreatedAt, split.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split: %w", err)
	}

	for i := range split.Participants {
		p := &split.Participants[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.SplitID = split.ID
		p.Position = i

		_, err = tx.ExecContext(ctx,
			"INSERT INTO participants (id, split_id, position, wallet_address, amount) VALUES (?, ?, ?, ?, ?)",
			p.ID, split.ID, p.Position, p.WalletAddress, p.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSplit retrieves a split by ID, including all participants.
func (s *SQLiteStore) GetSplit(ctx context.Context, splitID string) (*models.Split, error) {
	return loadSplit(ctx, s.db, splitID)
}

const splitColumns = `id, title, recipient_address, total_amount, currency, due_date, status,
	created_by, created_at, updated_at, completed_at, release_signature`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSplit(row rowScanner) (*models.Split, error) {
	split := &models.Split{}
	var (
		currency, status string
		completedAt      sql.NullInt64
		releaseSig       sql.NullString
	)
	err := row.Scan(&split.ID, &split.Title, &split.RecipientAddress, &split.TotalAmount,
		&currency, &split.DueDate, &status, &split.CreatedBy, &split.CreatedAt, &split.UpdatedAt,
		&completedAt, &releaseSig)
	if err != nil {
		return nil, err
	}
	split.Currency = models.Currency(currency)
	split.Status = models.SplitStatus(status)
	split.CompletedAt = completedAt.Int64
	split.ReleaseSignature = releaseSig.String
	return split, nil
}

func loadSplit(ctx context.Context, q querier, splitID string) (*models.Split, error) {
	split, err := scanSplit(q.QueryRowContext(ctx,
		"SELECT "+splitColumns+" FROM splits WHERE id = ?", splitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSplitNotFound, splitID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}

	split.Participants, err = loadParticipants(ctx, q, splitID)
	if err != nil {
		return nil, err
	}
	return split, nil
}

func loadParticipants(ctx context.Context, q querier, splitID string) ([]models.Participant, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, split_id, position, wallet_address, amount, paid, transaction_signature, paid_at
		 FROM participants WHERE split_id = ? ORDER BY position`,
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var (
			p      models.Participant
			sig    sql.NullString
			paidAt sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.SplitID, &p.Position, &p.WalletAddress, &p.Amount,
			&p.Paid, &sig, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.TransactionSignature = sig.String
		p.PaidAt = paidAt.Int64
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// visibleClause restricts splits to those created by or shared with a wallet.
// It takes the wallet twice.
const visibleClause = `(s.created_by = ? OR EXISTS (
	SELECT 1 FROM participants p WHERE p.split_id = s.id AND p.wallet_address = ?))`

// ListVisibleSplits returns active splits the wallet created or participates in.
func (s *SQLiteStore) ListVisibleSplits(ctx context.Context, wallet string) ([]*models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+splitColumns+" FROM splits s WHERE s.status = ? AND "+visibleClause+
			" ORDER BY s.created_at DESC, s.rowid DESC",
		string(models.StatusActive), wallet, wallet,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}

	var splits []*models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	// Drain before loading participants: the pool has a single connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	for _, split := range splits {
		if split.Participants, err = loadParticipants(ctx, s.db, split.ID); err != nil {
			return nil, err
		}
	}
	return splits, nil
}

// ListHistory returns finished splits visible to the wallet.
func (s *SQLiteStore) ListHistory(ctx context.Context, wallet string) ([]*models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.title, s.total_amount, s.currency, s.status, s.created_at,
		        (SELECT COUNT(*) FROM participants c WHERE c.split_id = s.id)
		 FROM splits s
		 WHERE s.status IN (?, ?) AND `+visibleClause+`
		 ORDER BY s.created_at DESC, s.rowid DESC`,
		string(models.StatusCompleted), string(models.StatusCancelled), wallet, wallet,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		e := &models.HistoryEntry{}
		var currency, status string
		if err := rows.Scan(&e.SplitID, &e.Title, &e.TotalAmount, &currency, &status,
			&e.CreatedAt, &e.ParticipantCount); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Currency = models.Currency(currency)
		e.Status = models.SplitStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// CancelSplit moves an active split to cancelled.
func (s *SQLiteStore) CancelSplit(ctx context.Context, splitID string, at int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE splits SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(models.StatusCancelled), at, splitID, string(models.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to cancel split: %w", err)
	}
	return s.expectOneRow(ctx, res, splitID)
}

// SetReleaseSignature records the release transaction of a completed split.
func (s *SQLiteStore) SetReleaseSignature(ctx context.Context, splitID, signature string, at int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE splits SET release_signature = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND release_signature IS NULL`,
		signature, at, splitID, string(models.StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("failed to set release signature: %w", err)
	}
	return s.expectOneRow(ctx, res, splitID)
}

// expectOneRow turns a conditional update that matched nothing into
// ErrSplitNotFound or ErrStateChanged.
func (s *SQLiteStore) expectOneRow(ctx context.Context, res sql.Result, splitID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM splits WHERE id = ?", splitID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrSplitNotFound, splitID)
	}
	if err != nil {
		return fmt.Errorf("failed to check split existence: %w", err)
	}
	return storage.ErrStateChanged
}
