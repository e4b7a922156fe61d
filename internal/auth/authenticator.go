package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/wallet"
)

// DefaultChallengeSkew is how far in the future a challenge timestamp may lie.
const DefaultChallengeSkew = 30 * time.Second

// WalletAuthenticator runs the wallet sign-in protocol:
//
//	Unauthenticated -> ChallengeIssued -> Verified -> SessionActive
//	                                   -> Rejected -> Unauthenticated
//
// It never sees a private key. A rejected attempt has no side effects; in
// particular it creates no identity.
type WalletAuthenticator struct {
	sessions *SessionIssuer
	nonces   *wallet.NonceCache
	events   *notify.Hub[notify.SessionEvent]

	challengeTTL time.Duration
	skew         time.Duration
	now          func() time.Time
}

// NewWalletAuthenticator creates an authenticator whose challenges stay valid
// for challengeTTL.
func NewWalletAuthenticator(sessions *SessionIssuer, challengeTTL time.Duration) *WalletAuthenticator {
	return &WalletAuthenticator{
		sessions:     sessions,
		nonces:       wallet.NewNonceCache(challengeTTL + DefaultChallengeSkew),
		events:       &notify.Hub[notify.SessionEvent]{},
		challengeTTL: challengeTTL,
		skew:         DefaultChallengeSkew,
		now:          time.Now,
	}
}

// Events returns the hub session changes are published on.
func (a *WalletAuthenticator) Events() *notify.Hub[notify.SessionEvent] {
	return a.events
}

// Sessions returns the issuer used to resolve session tokens.
func (a *WalletAuthenticator) Sessions() *SessionIssuer {
	return a.sessions
}

// Challenge returns a fresh message for address to sign.
func (a *WalletAuthenticator) Challenge(address string) (string, error) {
	if err := wallet.ValidateAddress(address); err != nil {
		return "", err
	}
	return wallet.BuildChallenge(address, a.now(), uuid.NewString()), nil
}

// Authenticate verifies that signature is address's signature over a
// challenge issued for address, then issues a session. The nonce is consumed
// only after the signature checks out, so a forged attempt cannot burn a
// legitimate challenge. If the session cannot be issued the nonce is released
// and the same signed message may be retried.
func (a *WalletAuthenticator) Authenticate(ctx context.Context, address, signature, message string) (*Session, error) {
	if err := wallet.ValidateAddress(address); err != nil {
		return nil, err
	}

	challenge, err := wallet.ParseChallenge(message)
	if err != nil {
		return nil, err
	}
	if challenge.Address != address {
		return nil, wallet.ErrChallengeMismatch
	}
	if err := challenge.CheckFresh(a.now(), a.challengeTTL, a.skew); err != nil {
		return nil, err
	}
	if !wallet.VerifyBase58(message, signature, address) {
		return nil, wallet.ErrInvalidSignature
	}
	if !a.nonces.Consume(address, challenge.Nonce, challenge.IssuedAt) {
		return nil, wallet.ErrChallengeReplayed
	}

	session, err := a.sessions.IssueSession(ctx, address)
	if err != nil {
		a.nonces.Release(address, challenge.Nonce)
		return nil, err
	}

	a.events.Publish(notify.SessionEvent{
		Kind:          notify.SignedIn,
		SessionID:     session.ID,
		WalletAddress: session.WalletAddress,
		At:            a.now(),
	})
	return session, nil
}

// Logout revokes the session and announces the sign-out.
func (a *WalletAuthenticator) Logout(session *Session) {
	a.sessions.Revoke(session)
	a.events.Publish(notify.SessionEvent{
		Kind:          notify.SignedOut,
		SessionID:     session.ID,
		WalletAddress: session.WalletAddress,
		At:            a.now(),
	})
}
