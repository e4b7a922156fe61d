package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/subodh038/paysplit/internal/models"
)

// GetIdentityByWallet retrieves an identity by wallet address.
// Returns nil, nil if no identity is bound to the wallet.
func (s *SQLiteStore) GetIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, error) {
	return getIdentityByWallet(ctx, s.db, wallet)
}

func getIdentityByWallet(ctx context.Context, q querier, wallet string) (*models.Identity, error) {
	identity := &models.Identity{}
	err := q.QueryRowContext(ctx,
		"SELECT id, wallet_address, created_at FROM identities WHERE wallet_address = ?",
		wallet,
	).Scan(&identity.ID, &identity.WalletAddress, &identity.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by wallet: %w", err)
	}
	return identity, nil
}

// CreateIdentity inserts a new identity unless the wallet already has one,
// then returns the stored identity. Two concurrent first sign-ins of the
// same wallet therefore end up with the same identity.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	if identity.CreatedAt == 0 {
		identity.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, wallet_address, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (wallet_address) DO NOTHING`,
		identity.ID, identity.WalletAddress, identity.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert identity: %w", err)
	}

	stored, err := getIdentityByWallet(ctx, tx, identity.WalletAddress)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("identity for %s vanished after insert", identity.WalletAddress)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}
