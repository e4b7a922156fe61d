// Package solana adapts a Solana JSON-RPC endpoint to ledger.Client.
package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/ledger"
)

// DefaultPollInterval is how often signature statuses are polled.
const DefaultPollInterval = 2 * time.Second

var _ ledger.Client = (*Client)(nil)

// Client talks to a Solana cluster. Without a signer it is read-only:
// it can verify transactions others submitted but cannot Submit.
type Client struct {
	rpc          *rpc.Client
	signer       *solana.PrivateKey
	assets       ledger.Assets
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSigner lets the client sign transfers paid by key's wallet.
func WithSigner(key solana.PrivateKey) Option {
	return func(c *Client) { c.signer = &key }
}

// WithAssets sets the stable token plain SPL transfers are attributed to.
// The default is ledger.DefaultAssets.
func WithAssets(assets ledger.Assets) Option {
	return func(c *Client) { c.assets = assets }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New creates a client for the JSON-RPC endpoint, e.g. rpc.DevNet_RPC.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		rpc:          rpc.New(endpoint),
		assets:       ledger.DefaultAssets(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

// TokenAccount derives owner's associated token account for mint and checks
// that it exists on chain.
func (c *Client) TokenAccount(ctx context.Context, owner, mint string) (string, error) {
	ownerKey, err := parseKey("owner", owner)
	if err != nil {
		return "", err
	}
	mintKey, err := parseKey("mint", mint)
	if err != nil {
		return "", err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return "", fmt.Errorf("%w: deriving token account: %v", apperr.ErrValidation, err)
	}

	_, err = c.rpc.GetAccountInfo(ctx, ata)
	if errors.Is(err, rpc.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ledger.ErrNoTokenAccount, owner)
	}
	if err != nil {
		return "", apperr.Infrastructure(fmt.Errorf("get account info: %w", err))
	}
	return ata.String(), nil
}

// Submit signs t with the configured key and sends it.
func (c *Client) Submit(ctx context.Context, t ledger.Transfer) (string, error) {
	if c.signer == nil {
		return "", ledger.ErrSignerUnavailable
	}
	inst, payer, err := buildInstruction(t)
	if err != nil {
		return "", err
	}
	if !payer.Equals(c.signer.PublicKey()) {
		return "", fmt.Errorf("%w: payer %s", ledger.ErrSignerUnavailable, payer)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", apperr.Infrastructure(fmt.Errorf("get latest blockhash: %w", err))
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		recent.Value.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return c.signer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return "", apperr.Infrastructure(fmt.Errorf("send transaction: %w", err))
	}
	return sig.String(), nil
}

// AwaitConfirmation polls the signature status until it reaches commitment.
func (c *Client) AwaitConfirmation(ctx context.Context, id string, commitment ledger.Commitment) error {
	sig, err := solana.SignatureFromBase58(id)
	if err != nil {
		return fmt.Errorf("%w: transaction id: %v", apperr.ErrValidation, err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("Signature status poll failed", "tx", id, "error", err)
		case len(out.Value) > 0 && out.Value[0] != nil:
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %v", ledger.ErrTxFailed, st.Err)
			}
			if reached(ledger.Commitment(st.ConfirmationStatus), commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetTransaction fetches a transaction at confirmed commitment.
func (c *Client) GetTransaction(ctx context.Context, id string) (*ledger.TxRecord, error) {
	sig, err := solana.SignatureFromBase58(id)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction id: %v", apperr.ErrValidation, err)
	}

	version := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && out == nil) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return nil, apperr.Infrastructure(fmt.Errorf("get transaction: %w", err))
	}

	rec := &ledger.TxRecord{ID: id, Slot: out.Slot, Confirmed: true}
	if out.BlockTime != nil {
		rec.BlockTime = out.BlockTime.Time()
	}
	if out.Meta != nil && out.Meta.Err != nil {
		rec.Failed = true
		rec.Err = fmt.Sprint(out.Meta.Err)
	}
	if out.Transaction != nil {
		txn, err := out.Transaction.GetTransaction()
		if err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		rec.Transfers = decodeTransfers(txn, c.assets)
	}
	return rec, nil
}

// decodeTransfers extracts the system and token transfers of txn.
// Instructions it cannot decode are skipped. A plain SPL Transfer names no
// mint; it is attributed to assets' token when its source is the owner's
// associated token account for that mint, and skipped otherwise.
func decodeTransfers(txn *solana.Transaction, assets ledger.Assets) []ledger.Transfer {
	var out []ledger.Transfer
	for _, ci := range txn.Message.Instructions {
		program, err := txn.Message.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			continue
		}
		accounts, err := ci.ResolveInstructionAccounts(&txn.Message)
		if err != nil {
			continue
		}

		switch {
		case program.Equals(system.ProgramID):
			inst, err := system.DecodeInstruction(accounts, ci.Data)
			if err != nil {
				continue
			}
			if tr, ok := inst.Impl.(*system.Transfer); ok && tr.Lamports != nil {
				out = append(out, ledger.NativeTransfer{
					From:     tr.GetFundingAccount().PublicKey.String(),
					To:       tr.GetRecipientAccount().PublicKey.String(),
					Lamports: *tr.Lamports,
				})
			}

		case program.Equals(token.ProgramID):
			inst, err := token.DecodeInstruction(accounts, ci.Data)
			if err != nil {
				continue
			}
			switch tr := inst.Impl.(type) {
			case *token.TransferChecked:
				if tr.Amount == nil || tr.Decimals == nil {
					continue
				}
				out = append(out, ledger.TokenTransfer{
					From:          tr.GetOwnerAccount().PublicKey.String(),
					SourceAccount: tr.GetSourceAccount().PublicKey.String(),
					DestAccount:   tr.GetDestinationAccount().PublicKey.String(),
					Mint:          tr.GetMintAccount().PublicKey.String(),
					Amount:        *tr.Amount,
					Decimals:      *tr.Decimals,
				})
			case *token.Transfer:
				if tr.Amount == nil {
					continue
				}
				owner := tr.GetOwnerAccount().PublicKey
				source := tr.GetSourceAccount().PublicKey
				if !ownsTokenAccount(owner, source, assets.TokenMint) {
					continue
				}
				out = append(out, ledger.TokenTransfer{
					From:          owner.String(),
					SourceAccount: source.String(),
					DestAccount:   tr.GetDestinationAccount().PublicKey.String(),
					Mint:          assets.TokenMint,
					Amount:        *tr.Amount,
					Decimals:      assets.TokenDecimals,
				})
			}
		}
	}
	return out
}

// ownsTokenAccount reports whether account is owner's associated token
// account for mint.
func ownsTokenAccount(owner, account solana.PublicKey, mint string) bool {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return false
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	return err == nil && ata.Equals(account)
}

func buildInstruction(t ledger.Transfer) (solana.Instruction, solana.PublicKey, error) {
	switch t := t.(type) {
	case ledger.NativeTransfer:
		from, err := parseKey("from", t.From)
		if err != nil {
			return nil, solana.PublicKey{}, err
		}
		to, err := parseKey("to", t.To)
		if err != nil {
			return nil, solana.PublicKey{}, err
		}
		return system.NewTransferInstruction(t.Lamports, from, to).Build(), from, nil

	case ledger.TokenTransfer:
		owner, err := parseKey("from", t.From)
		if err != nil {
			return nil, solana.PublicKey{}, err
		}
		src, err := parseKey("source account", t.SourceAccount)
		if err != nil {
			return nil, solana.PublicKey{}, err
		}
		dst, err := parseKey("destination account", t.DestAccount)
		if err != nil {
			return nil, solana.PublicKey{}, err
		}
		mint, err := parseKey("mint", t.Mint)
		if err != nil {
			return nil, solana.PublicKey{}, err
		}
		inst := token.NewTransferCheckedInstruction(t.Amount, t.Decimals, src, mint, dst, owner, nil).Build()
		return inst, owner, nil
	}
	return nil, solana.PublicKey{}, fmt.Errorf("%w: unknown transfer %T", apperr.ErrValidation, t)
}

func parseKey(what, s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s: %v", apperr.ErrValidation, what, err)
	}
	return key, nil
}

var commitmentRank = map[ledger.Commitment]int{
	ledger.CommitmentProcessed: 1,
	ledger.CommitmentConfirmed: 2,
	ledger.CommitmentFinalized: 3,
}

func reached(got, want ledger.Commitment) bool {
	return commitmentRank[got] > 0 && commitmentRank[got] >= commitmentRank[want]
}
