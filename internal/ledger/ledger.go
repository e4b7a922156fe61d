// Package ledger is the boundary to the blockchain that moves the money.
//
// A payment is resolved once into a Transfer, either a NativeTransfer in
// lamports or a TokenTransfer between associated token accounts, and handed
// to a Client. Nothing outside this package and its adapters branches on the
// currency again.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/calculator"
	"github.com/subodh038/paysplit/internal/models"
)

// Commitment is how final a transaction must be.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

var (
	ErrNotFound            = fmt.Errorf("%w: transaction not found on the ledger", apperr.ErrNotFound)
	ErrTxFailed            = fmt.Errorf("%w: transaction failed on the ledger", apperr.ErrConflict)
	ErrNotConfirmed        = fmt.Errorf("%w: transaction is not confirmed", apperr.ErrConflict)
	ErrSignerUnavailable   = fmt.Errorf("%w: ledger client cannot sign for this payer", apperr.ErrConflict)
	ErrUnsupportedCurrency = fmt.Errorf("%w: unsupported currency", apperr.ErrValidation)
	ErrNoTokenAccount      = fmt.Errorf("%w: wallet has no token account for the mint", apperr.ErrValidation)
	ErrTransferMismatch    = fmt.Errorf("%w: transaction does not carry the expected transfer", apperr.ErrConflict)
)

// NativeDecimals is the fixed lamports-per-SOL exponent.
const NativeDecimals = 9

// DefaultTokenMint is the stable-token mint used when none is configured.
const DefaultTokenMint = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"

// DefaultTokenDecimals is the precision of DefaultTokenMint.
const DefaultTokenDecimals = 6

// Assets describes the stable token the ledger settles USDC splits in.
type Assets struct {
	TokenMint     string
	TokenDecimals uint8
}

// DefaultAssets returns the devnet stable-token settings.
func DefaultAssets() Assets {
	return Assets{TokenMint: DefaultTokenMint, TokenDecimals: DefaultTokenDecimals}
}

// Decimals returns the base-unit exponent of currency.
func (a Assets) Decimals(currency models.Currency) (uint8, error) {
	switch currency {
	case models.CurrencySOL:
		return NativeDecimals, nil
	case models.CurrencyUSDC:
		return a.TokenDecimals, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
}

// Transfer is a ledger transfer ready for submission. The set of
// implementations is closed: NativeTransfer and TokenTransfer.
type Transfer interface {
	// Payer is the wallet that signs and pays.
	Payer() string
	isTransfer()
}

// NativeTransfer moves lamports between two wallets.
type NativeTransfer struct {
	From     string
	To       string
	Lamports uint64
}

// TokenTransfer moves token base units between the associated token accounts
// of two wallets. From owns SourceAccount.
type TokenTransfer struct {
	From          string
	To            string
	SourceAccount string
	DestAccount   string
	Mint          string
	Amount        uint64
	Decimals      uint8
}

func (t NativeTransfer) Payer() string { return t.From }
func (t TokenTransfer) Payer() string  { return t.From }

func (NativeTransfer) isTransfer() {}
func (TokenTransfer) isTransfer()  {}

// TxRecord is what the ledger knows about a submitted transaction.
type TxRecord struct {
	ID        string
	Slot      uint64
	Confirmed bool
	Failed    bool
	// Err is the ledger's failure reason when Failed.
	Err       string
	BlockTime time.Time
	// Transfers the transaction carries, as far as the adapter can decode them.
	Transfers []Transfer
}

// Carries reports whether the transaction contains a transfer matching want.
func (r *TxRecord) Carries(want Transfer) bool {
	for _, got := range r.Transfers {
		if Matches(got, want) {
			return true
		}
	}
	return false
}

// Matches reports whether got moves the same funds as want. Token transfers
// are compared by accounts, since the recipient wallet is not on chain.
func Matches(got, want Transfer) bool {
	switch w := want.(type) {
	case NativeTransfer:
		g, ok := got.(NativeTransfer)
		return ok && g == w
	case TokenTransfer:
		g, ok := got.(TokenTransfer)
		return ok &&
			g.From == w.From &&
			g.SourceAccount == w.SourceAccount &&
			g.DestAccount == w.DestAccount &&
			g.Mint == w.Mint &&
			g.Amount == w.Amount
	}
	return false
}

// Client is the ledger the payment orchestrator talks to.
type Client interface {
	// TokenAccount returns the associated token account of owner for mint.
	TokenAccount(ctx context.Context, owner, mint string) (string, error)

	// Submit signs and sends t, returning its provisional transaction ID.
	Submit(ctx context.Context, t Transfer) (string, error)

	// AwaitConfirmation blocks until id reaches commitment. It returns
	// ErrTxFailed if the transaction landed but failed, and ctx.Err() when the
	// wait is cut short.
	AwaitConfirmation(ctx context.Context, id string, commitment Commitment) error

	// GetTransaction fetches a transaction, or ErrNotFound.
	GetTransaction(ctx context.Context, id string) (*TxRecord, error)
}

// NewTransfer resolves a payment of amount in currency from one wallet to
// another into a Transfer.
func NewTransfer(ctx context.Context, c Client, assets Assets, from, to string, amount float64, currency models.Currency) (Transfer, error) {
	decimals, err := assets.Decimals(currency)
	if err != nil {
		return nil, err
	}
	units, err := calculator.ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	if currency == models.CurrencySOL {
		return NativeTransfer{From: from, To: to, Lamports: units}, nil
	}

	src, err := c.TokenAccount(ctx, from, assets.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("resolving payer token account: %w", err)
	}
	dst, err := c.TokenAccount(ctx, to, assets.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("resolving recipient token account: %w", err)
	}
	return TokenTransfer{
		From:          from,
		To:            to,
		SourceAccount: src,
		DestAccount:   dst,
		Mint:          assets.TokenMint,
		Amount:        units,
		Decimals:      decimals,
	}, nil
}
