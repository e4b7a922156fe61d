package middleware

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/auth"
)

// sessionKey is the context key for the authenticated session.
type sessionKey struct{}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSession extracts the session from the context.
// Returns nil if the request is not authenticated.
func GetSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return session
}

// GetWallet extracts the authenticated wallet address from the context.
// Returns empty string if not found.
func GetWallet(ctx context.Context) string {
	if s := GetSession(ctx); s != nil {
		return s.WalletAddress
	}
	return ""
}

// SessionResolver turns a bearer token into a session.
type SessionResolver interface {
	Resolve(token string) (*auth.Session, error)
}

// AuthInterceptor validates bearer tokens on unary and streaming handlers and
// puts the session into the request context. Procedures listed as public are
// let through without a token.
type AuthInterceptor struct {
	sessions SessionResolver
	public   map[string]bool
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// RequireAuth returns an interceptor that requires a session on every
// procedure except the public ones.
func RequireAuth(sessions SessionResolver, public map[string]bool) *AuthInterceptor {
	return &AuthInterceptor{sessions: sessions, public: public}
}

func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := i.authenticate(ctx, req.Spec().Procedure, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := i.authenticate(ctx, conn.Spec().Procedure, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *AuthInterceptor) authenticate(ctx context.Context, procedure string, header http.Header) (context.Context, error) {
	public := i.public[procedure]

	// Extract Authorization header
	authHeader := header.Get("Authorization")
	if authHeader == "" {
		if public {
			return ctx, nil
		}
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	// Parse Bearer token
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		if public {
			return ctx, nil
		}
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	session, err := i.sessions.Resolve(token)
	if err != nil {
		// A stale token must not block signing in again.
		if public {
			return ctx, nil
		}
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}

	return WithSession(ctx, session), nil
}

// BearerToken returns a client interceptor that sends token on every call,
// streaming calls included.
func BearerToken(token string) connect.Interceptor {
	return bearerToken("Bearer " + token)
}

type bearerToken string

func (b bearerToken) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set("Authorization", string(b))
		}
		return next(ctx, req)
	}
}

func (b bearerToken) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", string(b))
		return conn
	}
}

func (b bearerToken) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
