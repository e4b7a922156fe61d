// Package config reads server settings from the environment. A .env file in
// the working directory is loaded first; variables already set win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/subodh038/paysplit/internal/ledger"
)

// Ledger backends.
const (
	LedgerSolana = "solana"
	LedgerMemory = "memory"
)

// Config is the server configuration.
type Config struct {
	Addr        string
	MetricsAddr string
	DBPath      string

	JWTSecret    string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration

	Ledger         string
	SolanaRPCURL   string
	Assets         ledger.Assets
	ConfirmTimeout time.Duration
	// PollInterval is how often transaction statuses are polled on Solana.
	PollInterval time.Duration
	// ReleaseLamports is the amount of the funds-release transfer.
	ReleaseLamports uint64

	LogLevel string
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}
	defaults := ledger.DefaultAssets()

	cfg := &Config{
		Addr:         e.str("PAYSPLIT_ADDR", ":8080"),
		MetricsAddr:  e.str("METRICS_ADDR", ":9090"),
		DBPath:       e.str("DB_PATH", "./data/paysplit.db"),
		JWTSecret:    e.str("JWT_SECRET", ""),
		TokenTTL:     e.duration("TOKEN_TTL", 24*time.Hour),
		ChallengeTTL: e.duration("CHALLENGE_TTL", 5*time.Minute),
		Ledger:       e.str("LEDGER", LedgerSolana),
		SolanaRPCURL: e.str("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		Assets: ledger.Assets{
			TokenMint:     e.str("TOKEN_MINT", defaults.TokenMint),
			TokenDecimals: uint8(e.uint("TOKEN_DECIMALS", uint64(defaults.TokenDecimals), 8)),
		},
		ConfirmTimeout:  e.duration("CONFIRM_TIMEOUT", 60*time.Second),
		PollInterval:    e.duration("SOLANA_POLL_INTERVAL", 2*time.Second),
		ReleaseLamports: e.uint("RELEASE_LAMPORTS", 0, 64),
		LogLevel:        e.str("LOG_LEVEL", "info"),
	}
	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Ledger != LedgerSolana && c.Ledger != LedgerMemory {
		errs = append(errs, fmt.Errorf("LEDGER must be %q or %q, got %q", LedgerSolana, LedgerMemory, c.Ledger))
	}
	if c.TokenTTL <= 0 || c.ChallengeTTL <= 0 || c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL, CHALLENGE_TTL and CONFIRM_TIMEOUT must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("SOLANA_POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// env collects parse errors so every bad variable is reported at once.
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, fallback string) string {
	if value := e.getenv(key); value != "" {
		return value
	}
	return fallback
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	value := e.getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (e *env) uint(key string, fallback uint64, bits int) uint64 {
	value := e.getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}
