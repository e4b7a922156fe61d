package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/pkg/api"
)

const AuthServiceName = "paysplit.v1.AuthService"

const (
	AuthServiceGetChallengeProcedure   = "/paysplit.v1.AuthService/GetChallenge"
	AuthServiceAuthenticateProcedure   = "/paysplit.v1.AuthService/Authenticate"
	AuthServiceLogoutProcedure         = "/paysplit.v1.AuthService/Logout"
	AuthServiceGetCurrentUserProcedure = "/paysplit.v1.AuthService/GetCurrentUser"
)

// PublicProcedures can be called without a session.
var PublicProcedures = map[string]bool{
	AuthServiceGetChallengeProcedure: true,
	AuthServiceAuthenticateProcedure: true,
}

// AuthServiceHandler is implemented by the server.
type AuthServiceHandler interface {
	GetChallenge(context.Context, *connect.Request[api.GetChallengeRequest]) (*connect.Response[api.GetChallengeResponse], error)
	Authenticate(context.Context, *connect.Request[api.AuthenticateRequest]) (*connect.Response[api.AuthenticateResponse], error)
	Logout(context.Context, *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error)
	GetCurrentUser(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	getChallenge := connect.NewUnaryHandler(AuthServiceGetChallengeProcedure, svc.GetChallenge, opts...)
	authenticate := connect.NewUnaryHandler(AuthServiceAuthenticateProcedure, svc.Authenticate, opts...)
	logout := connect.NewUnaryHandler(AuthServiceLogoutProcedure, svc.Logout, opts...)
	getCurrentUser := connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...)

	return "/" + AuthServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AuthServiceGetChallengeProcedure:
			getChallenge.ServeHTTP(w, r)
		case AuthServiceAuthenticateProcedure:
			authenticate.ServeHTTP(w, r)
		case AuthServiceLogoutProcedure:
			logout.ServeHTTP(w, r)
		case AuthServiceGetCurrentUserProcedure:
			getCurrentUser.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// AuthServiceClient is a client for paysplit.v1.AuthService.
type AuthServiceClient interface {
	GetChallenge(context.Context, *connect.Request[api.GetChallengeRequest]) (*connect.Response[api.GetChallengeResponse], error)
	Authenticate(context.Context, *connect.Request[api.AuthenticateRequest]) (*connect.Response[api.AuthenticateResponse], error)
	Logout(context.Context, *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error)
	GetCurrentUser(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error)
}

// NewAuthServiceClient constructs a client. baseURL is the server's URL,
// e.g. http://localhost:8080.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &authServiceClient{
		getChallenge:   connect.NewClient[api.GetChallengeRequest, api.GetChallengeResponse](httpClient, baseURL+AuthServiceGetChallengeProcedure, opts...),
		authenticate:   connect.NewClient[api.AuthenticateRequest, api.AuthenticateResponse](httpClient, baseURL+AuthServiceAuthenticateProcedure, opts...),
		logout:         connect.NewClient[api.LogoutRequest, api.LogoutResponse](httpClient, baseURL+AuthServiceLogoutProcedure, opts...),
		getCurrentUser: connect.NewClient[api.GetCurrentUserRequest, api.GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

type authServiceClient struct {
	getChallenge   *connect.Client[api.GetChallengeRequest, api.GetChallengeResponse]
	authenticate   *connect.Client[api.AuthenticateRequest, api.AuthenticateResponse]
	logout         *connect.Client[api.LogoutRequest, api.LogoutResponse]
	getCurrentUser *connect.Client[api.GetCurrentUserRequest, api.GetCurrentUserResponse]
}

func (c *authServiceClient) GetChallenge(ctx context.Context, req *connect.Request[api.GetChallengeRequest]) (*connect.Response[api.GetChallengeResponse], error) {
	return c.getChallenge.CallUnary(ctx, req)
}

func (c *authServiceClient) Authenticate(ctx context.Context, req *connect.Request[api.AuthenticateRequest]) (*connect.Response[api.AuthenticateResponse], error) {
	return c.authenticate.CallUnary(ctx, req)
}

func (c *authServiceClient) Logout(ctx context.Context, req *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error) {
	return c.logout.CallUnary(ctx, req)
}

func (c *authServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}
