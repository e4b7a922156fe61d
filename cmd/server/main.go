package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/subodh038/paysplit/internal/auth"
	"github.com/subodh038/paysplit/internal/config"
	"github.com/subodh038/paysplit/internal/ledger"
	"github.com/subodh038/paysplit/internal/ledger/memledger"
	solanaledger "github.com/subodh038/paysplit/internal/ledger/solana"
	"github.com/subodh038/paysplit/internal/metrics"
	"github.com/subodh038/paysplit/internal/middleware"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/payment"
	"github.com/subodh038/paysplit/internal/service"
	"github.com/subodh038/paysplit/internal/settlement"
	"github.com/subodh038/paysplit/internal/storage/sqlite"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
	"github.com/subodh038/paysplit/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := newLedger(cfg)
	engine := settlement.NewEngine(store,
		settlement.WithDecimals(models.CurrencyUSDC, cfg.Assets.TokenDecimals))
	m.TrackSplits(engine.Events())

	payments := payment.New(client, engine,
		payment.WithAssets(cfg.Assets),
		payment.WithConfirmTimeout(cfg.ConfirmTimeout),
		payment.WithReleaseLamports(cfg.ReleaseLamports),
		payment.WithObserver(func(outcome string) { m.Payments.WithLabelValues(outcome).Inc() }),
	)

	issuer := auth.NewSessionIssuer(store, auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL))
	authenticator := auth.NewWalletAuthenticator(issuer, cfg.ChallengeTTL)
	m.TrackSessions(authenticator.Events())
	authenticator.Events().Subscribe(func(ev notify.SessionEvent) {
		slog.Debug("Session event", "kind", ev.Kind, "session_id", ev.SessionID, "wallet", ev.WalletAddress)
	})

	// Auth runs inside metrics so rejected calls are counted, and before
	// logging so log lines carry the wallet.
	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(issuer, apiconnect.PublicProcedures),
		middleware.LoggingInterceptor(logger),
	)

	mux := http.NewServeMux()

	// Register Connect services
	mux.Handle(apiconnect.NewAuthServiceHandler(
		service.NewAuthService(authenticator, store, logger, func(result string) {
			m.AuthAttempts.WithLabelValues(result).Inc()
		}), interceptors))
	mux.Handle(apiconnect.NewSplitServiceHandler(service.NewSplitService(engine), interceptors))
	mux.Handle(apiconnect.NewPaymentServiceHandler(service.NewPaymentService(engine, payments), interceptors))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Handler contexts end when shutdown starts so watch streams let go.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	apiServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	apiServer.RegisterOnShutdown(cancelBase)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", cfg.Addr, "ledger", cfg.Ledger)
		return serve(apiServer)
	})
	g.Go(func() error {
		slog.Info("Metrics server starting", "address", cfg.MetricsAddr)
		return serve(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newLedger picks the ledger backend. The server never holds payer keys, so
// the Solana client is read-only: clients submit their own transfers and
// call RecordPayment.
func newLedger(cfg *config.Config) ledger.Client {
	if cfg.Ledger == config.LedgerMemory {
		slog.Warn("Using the in-memory ledger; payments are simulated")
		return memledger.New()
	}
	slog.Info("Using Solana RPC", "endpoint", cfg.SolanaRPCURL, "token_mint", cfg.Assets.TokenMint)
	return solanaledger.New(cfg.SolanaRPCURL,
		solanaledger.WithAssets(cfg.Assets),
		solanaledger.WithPollInterval(cfg.PollInterval),
	)
}
