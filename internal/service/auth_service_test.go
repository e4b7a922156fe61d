package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/subodh038/paysplit/pkg/api"
)

func TestAuthenticate_NewAndReturningWallet(t *testing.T) {
	env := setupTestServer(t)
	w := newWallet(t)

	first := env.authenticate(t, w)
	if !first.NewIdentity {
		t.Error("expected first sign-in to create the identity")
	}
	if first.Identity.WalletAddress != w.address {
		t.Errorf("expected wallet %s, got %s", w.address, first.Identity.WalletAddress)
	}
	if first.Token == "" || first.ExpiresAt == 0 {
		t.Errorf("expected token and expiry, got %+v", first)
	}

	second := env.authenticate(t, w)
	if second.NewIdentity {
		t.Error("expected second sign-in to reuse the identity")
	}
	if second.Identity.ID != first.Identity.ID {
		t.Errorf("expected identity %s, got %s", first.Identity.ID, second.Identity.ID)
	}

	me, err := env.authClient(second.Token).GetCurrentUser(context.Background(), connect.NewRequest(&api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.Identity.ID != first.Identity.ID || me.Msg.Identity.CreatedAt == 0 {
		t.Errorf("unexpected identity: %+v", me.Msg.Identity)
	}
	if got := testutil.ToFloat64(env.metrics.AuthAttempts.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 successful sign-ins, got %v", got)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	env := setupTestServer(t)
	client := env.authClient("")
	ctx := context.Background()
	w := newWallet(t)
	other := newWallet(t)

	challenge, err := client.GetChallenge(ctx, connect.NewRequest(&api.GetChallengeRequest{WalletAddress: w.address}))
	if err != nil {
		t.Fatalf("GetChallenge failed: %v", err)
	}
	message := challenge.Msg.Message

	tests := []struct {
		name string
		req  *api.AuthenticateRequest
	}{
		{
			name: "signed by another key",
			req:  &api.AuthenticateRequest{WalletAddress: w.address, Signature: other.sign(message), Message: message},
		},
		{
			name: "challenge for another wallet",
			req:  &api.AuthenticateRequest{WalletAddress: other.address, Signature: other.sign(message), Message: message},
		},
		{
			name: "message does not match signature",
			req:  &api.AuthenticateRequest{WalletAddress: w.address, Signature: w.sign(message + "x"), Message: message},
		},
		{
			name: "garbage signature",
			req:  &api.AuthenticateRequest{WalletAddress: w.address, Signature: "not-base58!", Message: message},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Authenticate(ctx, connect.NewRequest(tt.req))
			expectCode(t, err, connect.CodeUnauthenticated)
		})
	}

	// None of the failures consumed the challenge.
	if _, err := client.Authenticate(ctx, connect.NewRequest(&api.AuthenticateRequest{
		WalletAddress: w.address,
		Signature:     w.sign(message),
		Message:       message,
	})); err != nil {
		t.Fatalf("Authenticate failed after rejected attempts: %v", err)
	}
}

func TestAuthenticate_ReplayRejected(t *testing.T) {
	env := setupTestServer(t)
	client := env.authClient("")
	ctx := context.Background()
	w := newWallet(t)

	challenge, err := client.GetChallenge(ctx, connect.NewRequest(&api.GetChallengeRequest{WalletAddress: w.address}))
	if err != nil {
		t.Fatalf("GetChallenge failed: %v", err)
	}
	req := &api.AuthenticateRequest{
		WalletAddress: w.address,
		Signature:     w.sign(challenge.Msg.Message),
		Message:       challenge.Msg.Message,
	}

	if _, err := client.Authenticate(ctx, connect.NewRequest(req)); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	_, err = client.Authenticate(ctx, connect.NewRequest(req))
	expectCode(t, err, connect.CodeUnauthenticated)
}

func TestGetChallenge_InvalidAddress(t *testing.T) {
	env := setupTestServer(t)

	_, err := env.authClient("").GetChallenge(context.Background(), connect.NewRequest(&api.GetChallengeRequest{WalletAddress: "0xdeadbeef"}))
	expectCode(t, err, connect.CodeInvalidArgument)
}

func TestProtectedProcedures_RequireToken(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.authClient("").GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = env.splitClient("").ListSplits(ctx, connect.NewRequest(&api.ListSplitsRequest{}))
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = env.splitClient("forged.token.value").ListSplits(ctx, connect.NewRequest(&api.ListSplitsRequest{}))
	expectCode(t, err, connect.CodeUnauthenticated)

	if got := testutil.ToFloat64(env.metrics.RPCRequests.WithLabelValues(
		"/paysplit.v1.SplitService/ListSplits", connect.CodeUnauthenticated.String())); got != 2 {
		t.Errorf("expected 2 unauthenticated ListSplits, got %v", got)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	token := env.signIn(t, newWallet(t))
	client := env.authClient(token)

	if got := testutil.ToFloat64(env.metrics.ActiveSessions); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}

	if _, err := client.Logout(ctx, connect.NewRequest(&api.LogoutRequest{})); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	_, err := client.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	expectCode(t, err, connect.CodeUnauthenticated)

	if got := testutil.ToFloat64(env.metrics.ActiveSessions); got != 0 {
		t.Errorf("expected 0 active sessions, got %v", got)
	}
}
