package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"
	"github.com/gagliardetto/solana-go"

	"github.com/subodh038/paysplit/internal/ledger"
	solanaledger "github.com/subodh038/paysplit/internal/ledger/solana"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/payment"
	"github.com/subodh038/paysplit/pkg/api"
)

var errUsage = errors.New("missing required flag")

func runLogin(ctx context.Context, g *globals, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	keypair := fs.String("keypair", "", "solana-keygen keypair file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keypair == "" {
		return fmt.Errorf("%w: -keypair", errUsage)
	}

	key, err := solanaledger.LoadKeypair(*keypair)
	if err != nil {
		return err
	}
	resp, err := signIn(ctx, g, key)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "signed in as %s until %s\n",
		resp.Identity.WalletAddress, time.Unix(resp.ExpiresAt, 0).Format(time.RFC3339))
	fmt.Println(resp.Token)
	return nil
}

// signIn runs the challenge flow with a local key.
func signIn(ctx context.Context, g *globals, key solana.PrivateKey) (*api.AuthenticateResponse, error) {
	address := key.PublicKey().String()
	client := g.authClient()

	challenge, err := client.GetChallenge(ctx, connect.NewRequest(&api.GetChallengeRequest{WalletAddress: address}))
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign([]byte(challenge.Msg.Message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	resp, err := client.Authenticate(ctx, connect.NewRequest(&api.AuthenticateRequest{
		WalletAddress: address,
		Signature:     sig.String(),
		Message:       challenge.Msg.Message,
	}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func runWhoami(ctx context.Context, g *globals, args []string) error {
	resp, err := g.authClient().GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\tsession until %s\n",
		resp.Msg.Identity.WalletAddress,
		resp.Msg.Identity.ID,
		time.Unix(resp.Msg.SessionExpiresAt, 0).Format(time.RFC3339))
	return nil
}

func runSplits(ctx context.Context, g *globals, args []string) error {
	resp, err := g.splitClient().ListSplits(ctx, connect.NewRequest(&api.ListSplitsRequest{}))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTOTAL\tPAID\tDUE")
	for _, s := range resp.Msg.Splits {
		fmt.Fprintf(w, "%s\t%s\t%g %s\t%d/%d\t%s\n",
			s.ID, s.Title, s.TotalAmount, s.Currency,
			s.Progress.PaidCount, s.Progress.ParticipantCount, s.DueDate)
	}
	return w.Flush()
}

func runHistory(ctx context.Context, g *globals, args []string) error {
	resp, err := g.splitClient().GetHistory(ctx, connect.NewRequest(&api.GetHistoryRequest{}))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTOTAL\tSTATUS\tPARTICIPANTS")
	for _, e := range resp.Msg.Entries {
		fmt.Fprintf(w, "%s\t%s\t%g %s\t%s\t%d\n",
			e.SplitID, e.Title, e.TotalAmount, e.Currency, e.Status, e.ParticipantCount)
	}
	return w.Flush()
}

func runPayments(ctx context.Context, g *globals, args []string) error {
	fs := flag.NewFlagSet("payments", flag.ContinueOnError)
	splitID := fs.String("split", "", "split ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *splitID == "" {
		return fmt.Errorf("%w: -split", errUsage)
	}

	resp, err := g.splitClient().GetPaymentHistory(ctx, connect.NewRequest(&api.GetPaymentHistoryRequest{SplitID: *splitID}))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tWALLET\tAMOUNT\tTRANSACTION\tRECORDED")
	for _, p := range resp.Msg.Payments {
		fmt.Fprintf(w, "%d\t%s\t%g %s\t%s\t%s\n",
			p.ID, p.WalletAddress, p.Amount, p.Currency, p.TransactionSignature,
			time.Unix(p.RecordedAt, 0).Format(time.RFC3339))
	}
	return w.Flush()
}

func runWatch(ctx context.Context, g *globals, args []string) error {
	stream, err := g.splitClient().WatchSplits(ctx, connect.NewRequest(&api.WatchSplitsRequest{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		ev := stream.Msg()
		if ev.SplitID == "" {
			continue
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", time.Unix(ev.At, 0).Format(time.TimeOnly), ev.SplitID, ev.Kind, ev.Status)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// payFlags are shared by pay and record.
type payFlags struct {
	keypair       string
	splitID       string
	participantID string
	tokenMint     string
	tokenDecimals uint
}

func (p *payFlags) register(fs *flag.FlagSet) {
	defaults := ledger.DefaultAssets()
	fs.StringVar(&p.keypair, "keypair", "", "solana-keygen keypair file of the payer")
	fs.StringVar(&p.splitID, "split", "", "split ID")
	fs.StringVar(&p.participantID, "participant", "", "participant ID (default: the keypair's share)")
	fs.StringVar(&p.tokenMint, "token-mint", defaults.TokenMint, "mint of the USDC token")
	fs.UintVar(&p.tokenDecimals, "token-decimals", uint(defaults.TokenDecimals), "decimals of the USDC token")
}

// prepare loads the key, signs in if needed and resolves the payment request.
func (p *payFlags) prepare(ctx context.Context, g *globals) (solana.PrivateKey, payment.Request, error) {
	if p.keypair == "" || p.splitID == "" {
		return nil, payment.Request{}, fmt.Errorf("%w: -keypair and -split", errUsage)
	}
	key, err := solanaledger.LoadKeypair(p.keypair)
	if err != nil {
		return nil, payment.Request{}, err
	}
	if g.token == "" {
		resp, err := signIn(ctx, g, key)
		if err != nil {
			return nil, payment.Request{}, err
		}
		g.token = resp.Token
	}

	resp, err := g.splitClient().GetSplit(ctx, connect.NewRequest(&api.GetSplitRequest{SplitID: p.splitID}))
	if err != nil {
		return nil, payment.Request{}, err
	}
	split := resp.Msg.Split

	wallet := key.PublicKey().String()
	var share *api.Participant
	for i := range split.Participants {
		part := &split.Participants[i]
		if part.ID == p.participantID || (p.participantID == "" && part.WalletAddress == wallet) {
			share = part
			break
		}
	}
	if share == nil {
		return nil, payment.Request{}, fmt.Errorf("no share of split %s for wallet %s", split.ID, wallet)
	}

	return key, payment.Request{
		SplitID:       split.ID,
		ParticipantID: share.ID,
		Payer:         share.WalletAddress,
		Recipient:     split.RecipientAddress,
		Amount:        share.Amount,
		Currency:      models.Currency(split.Currency),
	}, nil
}

func (p *payFlags) assets() ledger.Assets {
	return ledger.Assets{TokenMint: p.tokenMint, TokenDecimals: uint8(p.tokenDecimals)}
}

func runPay(ctx context.Context, g *globals, args []string) error {
	var p payFlags
	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	p.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, req, err := p.prepare(ctx, g)
	if err != nil {
		return err
	}

	orchestrator := payment.New(
		solanaledger.New(g.rpcURL, solanaledger.WithSigner(key), solanaledger.WithAssets(p.assets())),
		&remoteRecorder{client: g.paymentClient()},
		payment.WithAssets(p.assets()),
		payment.WithConfirmTimeout(g.timeout),
	)

	fmt.Fprintf(os.Stderr, "paying %g %s to %s...\n", req.Amount, req.Currency, req.Recipient)
	txID, err := orchestrator.Pay(ctx, req)
	if err != nil {
		if id := payment.TxID(err); id != "" {
			fmt.Fprintf(os.Stderr, "transaction %s was submitted (%s); reconcile it with 'paysplit record -split %s -tx %s -keypair ...'\n",
				id, payment.Outcome(err), req.SplitID, id)
		}
		return err
	}
	fmt.Println(txID)
	return nil
}

func runRecord(ctx context.Context, g *globals, args []string) error {
	var p payFlags
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	p.register(fs)
	txID := fs.String("tx", "", "transaction signature to record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *txID == "" {
		return fmt.Errorf("%w: -tx", errUsage)
	}

	_, req, err := p.prepare(ctx, g)
	if err != nil {
		return err
	}

	resp, err := g.paymentClient().RecordPayment(ctx, connect.NewRequest(&api.RecordPaymentRequest{
		SplitID:       req.SplitID,
		ParticipantID: req.ParticipantID,
		TransactionID: *txID,
	}))
	if err != nil {
		return err
	}
	fmt.Printf("recorded; split %s is %s (%d/%d paid)\n", resp.Msg.Split.ID, resp.Msg.Split.Status,
		resp.Msg.Split.Progress.PaidCount, resp.Msg.Split.Progress.ParticipantCount)
	return nil
}
