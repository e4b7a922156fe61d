package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/models"
)

// ErrSessionRevoked is returned for a token whose session was logged out.
var ErrSessionRevoked = fmt.Errorf("%w: session has been signed out", apperr.ErrAuthentication)

// IdentityStore is the persistence the session issuer needs.
type IdentityStore interface {
	// GetIdentityByWallet returns nil, nil when the wallet has no identity.
	GetIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, error)
	// CreateIdentity stores identity unless the wallet already has one and
	// returns the stored identity.
	CreateIdentity(ctx context.Context, identity *models.Identity) (*models.Identity, error)
}

// Session is an authenticated session. It is bound to exactly one wallet
// address for its whole life.
type Session struct {
	ID            string
	Token         string
	IdentityID    string
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	// Created is true when this session's sign-in created the identity.
	Created bool
}

// SessionIssuer turns a verified wallet address into a Session.
type SessionIssuer struct {
	store IdentityStore
	jwt   *JWTManager

	mu      sync.Mutex
	revoked map[string]time.Time // session ID -> token expiry
}

// NewSessionIssuer creates a session issuer.
func NewSessionIssuer(store IdentityStore, jwtManager *JWTManager) *SessionIssuer {
	return &SessionIssuer{
		store:   store,
		jwt:     jwtManager,
		revoked: make(map[string]time.Time),
	}
}

// IssueSession finds or creates the identity for walletAddress and mints a
// session token for it. The caller must have verified ownership of the wallet.
// Store failures are reported as infrastructure errors.
func (i *SessionIssuer) IssueSession(ctx context.Context, walletAddress string) (*Session, error) {
	identity, err := i.store.GetIdentityByWallet(ctx, walletAddress)
	if err != nil {
		return nil, apperr.Infrastructure(fmt.Errorf("failed to look up identity: %w", err))
	}

	created := false
	if identity == nil {
		candidate := &models.Identity{
			ID:            uuid.NewString(),
			WalletAddress: walletAddress,
			CreatedAt:     i.jwt.now().Unix(),
		}
		identity, err = i.store.CreateIdentity(ctx, candidate)
		if err != nil {
			return nil, apperr.Infrastructure(fmt.Errorf("failed to create identity: %w", err))
		}
		// A concurrent first sign-in may have inserted the wallet first.
		created = identity.ID == candidate.ID
	}

	token, claims, err := i.jwt.Generate(identity)
	if err != nil {
		return nil, apperr.Infrastructure(err)
	}

	s := sessionFromClaims(token, claims)
	s.Created = created
	return s, nil
}

// Resolve validates a session token and returns its session.
func (i *SessionIssuer) Resolve(token string) (*Session, error) {
	claims, err := i.jwt.Validate(token)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	_, revoked := i.revoked[claims.ID]
	i.mu.Unlock()
	if revoked {
		return nil, ErrSessionRevoked
	}

	return sessionFromClaims(token, claims), nil
}

// Revoke ends a session before its token expires. Revocations are kept in
// memory until the token would have expired anyway.
func (i *SessionIssuer) Revoke(s *Session) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.jwt.now()
	for id, exp := range i.revoked {
		if now.After(exp) {
			delete(i.revoked, id)
		}
	}
	i.revoked[s.ID] = s.ExpiresAt
}

func sessionFromClaims(token string, claims *Claims) *Session {
	return &Session{
		ID:            claims.ID,
		Token:         token,
		IdentityID:    claims.IdentityID,
		WalletAddress: claims.WalletAddress,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}
}
