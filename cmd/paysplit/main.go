// Command paysplit is a terminal client for a PaySplit server. Keys never
// leave this machine: challenges and payments are signed locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/middleware"
	"github.com/subodh038/paysplit/pkg/api"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
	"github.com/subodh038/paysplit/pkg/logging"
)

const usage = `usage: paysplit [flags] <command> [command flags]

commands:
  login     sign a challenge with a keypair and print a session token
  whoami    show the identity behind the token
  splits    list active splits
  history   list completed and cancelled splits
  payments  show the payment history of a split
  watch     stream changes to your splits
  pay       pay your share of a split from a local keypair
  record    record a transfer you already sent (e.g. after a timeout)

flags:
`

// globals are the flags shared by every command.
type globals struct {
	server  string
	token   string
	rpcURL  string
	timeout time.Duration
}

func (g *globals) authClient() apiconnect.AuthServiceClient {
	return apiconnect.NewAuthServiceClient(http.DefaultClient, g.server, g.options()...)
}

func (g *globals) splitClient() apiconnect.SplitServiceClient {
	return apiconnect.NewSplitServiceClient(http.DefaultClient, g.server, g.options()...)
}

func (g *globals) paymentClient() apiconnect.PaymentServiceClient {
	return apiconnect.NewPaymentServiceClient(http.DefaultClient, g.server, g.options()...)
}

func (g *globals) options() []connect.ClientOption {
	if g.token == "" {
		return nil
	}
	return []connect.ClientOption{connect.WithInterceptors(middleware.BearerToken(g.token))}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	var g globals
	flag.StringVar(&g.server, "server", getEnv("PAYSPLIT_URL", "http://localhost:8080"), "PaySplit server URL")
	flag.StringVar(&g.token, "token", os.Getenv("PAYSPLIT_TOKEN"), "session token from 'paysplit login'")
	flag.StringVar(&g.rpcURL, "rpc", getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"), "Solana JSON-RPC endpoint")
	flag.DurationVar(&g.timeout, "confirm-timeout", 60*time.Second, "how long to wait for a payment to confirm")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "warn"), "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	logging.Setup(*logLevel)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	commands := map[string]func(context.Context, *globals, []string) error{
		"login":    runLogin,
		"whoami":   runWhoami,
		"splits":   runSplits,
		"history":  runHistory,
		"payments": runPayments,
		"watch":    runWatch,
		"pay":      runPay,
		"record":   runRecord,
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	if err := cmd(ctx, &g, flag.Args()[1:]); err != nil {
		var cerr *connect.Error
		if errors.As(err, &cerr) {
			if id := cerr.Meta().Get(api.TransactionIDHeader); id != "" {
				fmt.Fprintf(os.Stderr, "transaction %s was submitted; reconcile it with 'paysplit record -tx %s'\n", id, id)
			}
		}
		slog.Debug("Command failed", "command", flag.Arg(0), "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
