package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/auth"
	"github.com/subodh038/paysplit/internal/middleware"
	"github.com/subodh038/paysplit/pkg/api"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
)

var _ apiconnect.AuthServiceHandler = (*AuthService)(nil)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator *auth.WalletAuthenticator
	identities    auth.IdentityStore
	logger        *slog.Logger
	observe       func(result string)
}

// NewAuthService creates a new authentication service. observe, if not nil,
// is told the result of every sign-in attempt.
func NewAuthService(authenticator *auth.WalletAuthenticator, identities auth.IdentityStore, logger *slog.Logger, observe func(result string)) *AuthService {
	if observe == nil {
		observe = func(string) {}
	}
	return &AuthService{
		authenticator: authenticator,
		identities:    identities,
		logger:        logger,
		observe:       observe,
	}
}

// GetChallenge returns a message for the wallet to sign.
func (s *AuthService) GetChallenge(ctx context.Context, req *connect.Request[api.GetChallengeRequest]) (*connect.Response[api.GetChallengeResponse], error) {
	message, err := s.authenticator.Challenge(req.Msg.WalletAddress)
	if err != nil {
		return nil, toConnectError(err)
	}

	s.logger.Debug("Challenge issued", "wallet", req.Msg.WalletAddress)
	return connect.NewResponse(&api.GetChallengeResponse{Message: message}), nil
}

// Authenticate verifies a signed challenge and returns a session token.
func (s *AuthService) Authenticate(ctx context.Context, req *connect.Request[api.AuthenticateRequest]) (*connect.Response[api.AuthenticateResponse], error) {
	s.logger.Info("Authenticate request", "wallet", req.Msg.WalletAddress)

	session, err := s.authenticator.Authenticate(ctx, req.Msg.WalletAddress, req.Msg.Signature, req.Msg.Message)
	if err != nil {
		s.observe(authResult(err))
		s.logger.Warn("Authentication failed", "wallet", req.Msg.WalletAddress, "error", err)
		return nil, toConnectError(err)
	}
	s.observe("ok")

	identity := identityFromSession(session)
	if stored, err := s.identities.GetIdentityByWallet(ctx, session.WalletAddress); err == nil && stored != nil {
		identity.CreatedAt = stored.CreatedAt
	}

	s.logger.Info("Wallet signed in",
		"wallet", session.WalletAddress,
		"identity_id", session.IdentityID,
		"new_identity", session.Created,
	)
	return connect.NewResponse(&api.AuthenticateResponse{
		Token:       session.Token,
		ExpiresAt:   session.ExpiresAt.Unix(),
		Identity:    identity,
		NewIdentity: session.Created,
	}), nil
}

// Logout revokes the caller's session.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error) {
	session := middleware.GetSession(ctx)
	if session == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	s.authenticator.Logout(session)
	s.logger.Info("Wallet signed out", "wallet", session.WalletAddress)
	return connect.NewResponse(&api.LogoutResponse{}), nil
}

// GetCurrentUser returns the identity behind the caller's session.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	session := middleware.GetSession(ctx)
	if session == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	identity, err := s.identities.GetIdentityByWallet(ctx, session.WalletAddress)
	if err != nil {
		s.logger.Error("GetCurrentUser failed", "wallet", session.WalletAddress, "error", err)
		return nil, toConnectError(apperr.Infrastructure(err))
	}
	if identity == nil {
		// The token outlived its identity row.
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	return connect.NewResponse(&api.GetCurrentUserResponse{
		Identity: &api.Identity{
			ID:            identity.ID,
			WalletAddress: identity.WalletAddress,
			CreatedAt:     identity.CreatedAt,
		},
		SessionExpiresAt: session.ExpiresAt.Unix(),
	}), nil
}

func authResult(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrInfrastructure):
		return "unavailable"
	default:
		return "rejected"
	}
}
