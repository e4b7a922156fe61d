// Package memledger is an in-process ledger for development and tests.
//
// It holds custody of every wallet: Submit needs no key. Balances are only
// enforced for accounts that were funded, unless the ledger is strict.
// Transactions confirm on submission unless ManualConfirm is set, in which
// case they stay pending until Confirm, Fail or Drop is called.
package memledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/ledger"
)

var _ ledger.Client = (*Ledger)(nil)

type txState int

const (
	statePending txState = iota
	stateConfirmed
	stateFailed
	stateDropped
)

type tx struct {
	transfer ledger.Transfer
	state    txState
	slot     uint64
	err      string
	at       time.Time
}

// Ledger is a simulated ledger.
type Ledger struct {
	mu       sync.Mutex
	txs      map[string]*tx
	balances map[string]uint64 // wallet (lamports) or token account -> base units
	funded   map[string]bool
	slot     uint64
	changed  chan struct{}

	manual bool
	strict bool
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// ManualConfirm keeps submitted transactions pending until Confirm, Fail or Drop.
func ManualConfirm() Option {
	return func(l *Ledger) { l.manual = true }
}

// Strict enforces balances for every account, funded or not.
func Strict() Option {
	return func(l *Ledger) { l.strict = true }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		txs:      make(map[string]*tx),
		balances: make(map[string]uint64),
		funded:   make(map[string]bool),
		changed:  make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fund credits units to a wallet (lamports) or token account.
func (l *Ledger) Fund(account string, units uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += units
	l.funded[account] = true
}

// Balance returns the balance of a wallet or token account.
func (l *Ledger) Balance(account string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// TokenAccount derives the associated token account of owner for mint.
func (l *Ledger) TokenAccount(_ context.Context, owner, mint string) (string, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return "", fmt.Errorf("%w: owner: %v", apperr.ErrValidation, err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return "", fmt.Errorf("%w: mint: %v", apperr.ErrValidation, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return "", fmt.Errorf("%w: deriving token account: %v", apperr.ErrValidation, err)
	}
	return ata.String(), nil
}

// Submit records t and returns a fresh signature.
func (l *Ledger) Submit(ctx context.Context, t ledger.Transfer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch t.(type) {
	case ledger.NativeTransfer, ledger.TokenTransfer:
	default:
		return "", fmt.Errorf("%w: unknown transfer %T", apperr.ErrValidation, t)
	}

	id, err := newSignature()
	if err != nil {
		return "", apperr.Infrastructure(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[id] = &tx{transfer: t, state: statePending}
	if !l.manual {
		l.settle(id)
	}
	return id, nil
}

// Confirm lands a pending transaction, applying it to balances. A transfer
// the payer cannot cover lands as failed.
func (l *Ledger) Confirm(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pending(id); err != nil {
		return err
	}
	l.settle(id)
	return nil
}

// Fail lands a pending transaction as failed.
func (l *Ledger) Fail(id, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pending(id); err != nil {
		return err
	}
	l.land(id, stateFailed, reason)
	return nil
}

// Drop discards a pending transaction as if it expired before landing.
func (l *Ledger) Drop(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pending(id); err != nil {
		return err
	}
	l.land(id, stateDropped, "")
	return nil
}

// Pending returns the IDs of transactions that have not landed yet.
func (l *Ledger) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for id, t := range l.txs {
		if t.state == statePending {
			ids = append(ids, id)
		}
	}
	return ids
}

// AwaitConfirmation waits until id lands. The simulated ledger finalizes on
// confirmation, so every commitment level is reached at once.
func (l *Ledger) AwaitConfirmation(ctx context.Context, id string, _ ledger.Commitment) error {
	for {
		l.mu.Lock()
		state, reason := statePending, ""
		if t, ok := l.txs[id]; ok {
			state, reason = t.state, t.err
		}
		changed := l.changed
		l.mu.Unlock()

		switch state {
		case stateConfirmed:
			return nil
		case stateFailed:
			return fmt.Errorf("%w: %s", ledger.ErrTxFailed, reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// GetTransaction returns a landed transaction.
func (l *Ledger) GetTransaction(_ context.Context, id string) (*ledger.TxRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.txs[id]
	if !ok || t.state == statePending || t.state == stateDropped {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	return &ledger.TxRecord{
		ID:        id,
		Slot:      t.slot,
		Confirmed: true,
		Failed:    t.state == stateFailed,
		Err:       t.err,
		BlockTime: t.at,
		Transfers: []ledger.Transfer{t.transfer},
	}, nil
}

func (l *Ledger) pending(id string) error {
	t, ok := l.txs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	if t.state != statePending {
		return fmt.Errorf("%w: %s already landed", apperr.ErrConflict, id)
	}
	return nil
}

// settle applies a pending transfer. Callers hold l.mu.
func (l *Ledger) settle(id string) {
	var from, to string
	var units uint64
	switch t := l.txs[id].transfer.(type) {
	case ledger.NativeTransfer:
		from, to, units = t.From, t.To, t.Lamports
	case ledger.TokenTransfer:
		from, to, units = t.SourceAccount, t.DestAccount, t.Amount
	}

	if (l.strict || l.funded[from]) && l.balances[from] < units {
		l.land(id, stateFailed, "insufficient funds")
		return
	}
	if l.balances[from] >= units {
		l.balances[from] -= units
	}
	l.balances[to] += units
	l.land(id, stateConfirmed, "")
}

// land moves a transaction to its final state and wakes waiters. Callers hold l.mu.
func (l *Ledger) land(id string, state txState, reason string) {
	l.slot++
	t := l.txs[id]
	t.state = state
	t.err = reason
	t.slot = l.slot
	t.at = l.now()

	close(l.changed)
	l.changed = make(chan struct{})
}

func newSignature() (string, error) {
	var sig [64]byte
	if _, err := rand.Read(sig[:]); err != nil {
		return "", fmt.Errorf("generating signature: %w", err)
	}
	return base58.Encode(sig[:]), nil
}
