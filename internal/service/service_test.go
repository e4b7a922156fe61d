package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/subodh038/paysplit/internal/auth"
	"github.com/subodh038/paysplit/internal/ledger/memledger"
	"github.com/subodh038/paysplit/internal/metrics"
	"github.com/subodh038/paysplit/internal/middleware"
	"github.com/subodh038/paysplit/internal/payment"
	"github.com/subodh038/paysplit/internal/settlement"
	"github.com/subodh038/paysplit/internal/storage/sqlite"
	"github.com/subodh038/paysplit/pkg/api"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
)

const testConfirmTimeout = 200 * time.Millisecond

// testEnv is a full server on an in-memory ledger and a temp database.
type testEnv struct {
	url     string
	ledger  *memledger.Ledger
	engine  *settlement.Engine
	metrics *metrics.Metrics
}

// testWallet is a locally generated Ed25519 keypair.
type testWallet struct {
	address string
	key     ed25519.PrivateKey
}

func newWallet(t *testing.T) testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return testWallet{address: base58.Encode(pub), key: priv}
}

func (w testWallet) sign(message string) string {
	return base58.Encode(ed25519.Sign(w.key, []byte(message)))
}

// setupTestServer wires every service the way the server binary does.
func setupTestServer(t *testing.T, ledgerOpts ...memledger.Option) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	engine := settlement.NewEngine(store)
	led := memledger.New(ledgerOpts...)
	payments := payment.New(led, engine,
		payment.WithConfirmTimeout(testConfirmTimeout),
		payment.WithObserver(func(outcome string) { m.Payments.WithLabelValues(outcome).Inc() }),
	)

	issuer := auth.NewSessionIssuer(store, auth.NewJWTManager("test-secret", time.Hour))
	authenticator := auth.NewWalletAuthenticator(issuer, 5*time.Minute)
	m.TrackSessions(authenticator.Events())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(issuer, apiconnect.PublicProcedures),
		middleware.LoggingInterceptor(logger),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(
		NewAuthService(authenticator, store, logger, func(result string) {
			m.AuthAttempts.WithLabelValues(result).Inc()
		}), interceptors))
	mux.Handle(apiconnect.NewSplitServiceHandler(NewSplitService(engine), interceptors))
	mux.Handle(apiconnect.NewPaymentServiceHandler(NewPaymentService(engine, payments), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{url: server.URL, ledger: led, engine: engine, metrics: m}
}

func (e *testEnv) authClient(token string) apiconnect.AuthServiceClient {
	return apiconnect.NewAuthServiceClient(http.DefaultClient, e.url, bearer(token)...)
}

func (e *testEnv) splitClient(token string) apiconnect.SplitServiceClient {
	return apiconnect.NewSplitServiceClient(http.DefaultClient, e.url, bearer(token)...)
}

func (e *testEnv) paymentClient(token string) apiconnect.PaymentServiceClient {
	return apiconnect.NewPaymentServiceClient(http.DefaultClient, e.url, bearer(token)...)
}

func bearer(token string) []connect.ClientOption {
	if token == "" {
		return nil
	}
	return []connect.ClientOption{connect.WithInterceptors(middleware.BearerToken(token))}
}

// signIn runs the challenge flow for w and returns the session token.
func (e *testEnv) signIn(t *testing.T, w testWallet) string {
	t.Helper()
	resp := e.authenticate(t, w)
	return resp.Token
}

func (e *testEnv) authenticate(t *testing.T, w testWallet) *api.AuthenticateResponse {
	t.Helper()
	client := e.authClient("")
	ctx := context.Background()

	challenge, err := client.GetChallenge(ctx, connect.NewRequest(&api.GetChallengeRequest{WalletAddress: w.address}))
	if err != nil {
		t.Fatalf("GetChallenge failed: %v", err)
	}
	resp, err := client.Authenticate(ctx, connect.NewRequest(&api.AuthenticateRequest{
		WalletAddress: w.address,
		Signature:     w.sign(challenge.Msg.Message),
		Message:       challenge.Msg.Message,
	}))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return resp.Msg
}

// party is a signed-in wallet.
type party struct {
	testWallet
	token string
}

func (e *testEnv) party(t *testing.T) party {
	t.Helper()
	w := newWallet(t)
	return party{testWallet: w, token: e.signIn(t, w)}
}

// createSplit has creator open a SOL split of 0.75 for alice and 0.25 for bob.
func (e *testEnv) createSplit(t *testing.T, creator party, recipient string, alice, bob party) *api.Split {
	t.Helper()
	resp, err := e.splitClient(creator.token).CreateSplit(context.Background(), connect.NewRequest(&api.CreateSplitRequest{
		Title:            "Cabin weekend",
		RecipientAddress: recipient,
		Currency:         "SOL",
		DueDate:          "2026-11-30",
		Participants: []api.ParticipantInput{
			{WalletAddress: alice.address, Amount: 0.75},
			{WalletAddress: bob.address, Amount: 0.25},
		},
	}))
	if err != nil {
		t.Fatalf("CreateSplit failed: %v", err)
	}
	return resp.Msg.Split
}

func expectCode(t *testing.T, err error, want connect.Code) *connect.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if cerr.Code() != want {
		t.Fatalf("expected code %v, got %v (%v)", want, cerr.Code(), err)
	}
	return cerr
}
