package solana

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/require"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/ledger"
)

func TestBuildNativeInstruction(t *testing.T) {
	from, to := solana.NewWallet(), solana.NewWallet()

	inst, payer, err := buildInstruction(ledger.NativeTransfer{
		From:     from.PublicKey().String(),
		To:       to.PublicKey().String(),
		Lamports: 500_000_000,
	})
	require.NoError(t, err)
	require.True(t, payer.Equals(from.PublicKey()))
	require.True(t, inst.ProgramID().Equals(system.ProgramID))

	accounts := inst.Accounts()
	require.Len(t, accounts, 2)
	require.True(t, accounts[0].PublicKey.Equals(from.PublicKey()))
	require.True(t, accounts[0].IsSigner)
	require.True(t, accounts[1].PublicKey.Equals(to.PublicKey()))
}

func TestBuildTokenInstruction(t *testing.T) {
	from, to := solana.NewWallet(), solana.NewWallet()
	mint := solana.MustPublicKeyFromBase58(ledger.DefaultTokenMint)
	src, _, err := solana.FindAssociatedTokenAddress(from.PublicKey(), mint)
	require.NoError(t, err)
	dst, _, err := solana.FindAssociatedTokenAddress(to.PublicKey(), mint)
	require.NoError(t, err)

	inst, payer, err := buildInstruction(ledger.TokenTransfer{
		From:          from.PublicKey().String(),
		To:            to.PublicKey().String(),
		SourceAccount: src.String(),
		DestAccount:   dst.String(),
		Mint:          mint.String(),
		Amount:        12_500_000,
		Decimals:      6,
	})
	require.NoError(t, err)
	require.True(t, payer.Equals(from.PublicKey()))
	require.True(t, inst.ProgramID().Equals(token.ProgramID))

	keys := make([]solana.PublicKey, 0, 4)
	for _, a := range inst.Accounts() {
		keys = append(keys, a.PublicKey)
	}
	require.Contains(t, keys, src)
	require.Contains(t, keys, dst)
	require.Contains(t, keys, mint)
	require.Contains(t, keys, from.PublicKey())
}

func TestBuildInstructionRejectsBadKeys(t *testing.T) {
	_, _, err := buildInstruction(ledger.NativeTransfer{From: "nope", To: "nope", Lamports: 1})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSubmitWithoutSigner(t *testing.T) {
	c := New("http://127.0.0.1:0")
	from, to := solana.NewWallet(), solana.NewWallet()

	_, err := c.Submit(context.Background(), ledger.NativeTransfer{
		From: from.PublicKey().String(), To: to.PublicKey().String(), Lamports: 1,
	})
	require.ErrorIs(t, err, ledger.ErrSignerUnavailable)
}

func TestSubmitForAnotherPayer(t *testing.T) {
	signer, other := solana.NewWallet(), solana.NewWallet()
	c := New("http://127.0.0.1:0", WithSigner(signer.PrivateKey))

	_, err := c.Submit(context.Background(), ledger.NativeTransfer{
		From: other.PublicKey().String(), To: signer.PublicKey().String(), Lamports: 1,
	})
	require.ErrorIs(t, err, ledger.ErrSignerUnavailable)
}

func TestReached(t *testing.T) {
	tests := []struct {
		got, want ledger.Commitment
		ok        bool
	}{
		{ledger.CommitmentProcessed, ledger.CommitmentConfirmed, false},
		{ledger.CommitmentConfirmed, ledger.CommitmentConfirmed, true},
		{ledger.CommitmentFinalized, ledger.CommitmentConfirmed, true},
		{ledger.CommitmentConfirmed, ledger.CommitmentFinalized, false},
		{"", ledger.CommitmentProcessed, false},
	}
	for _, tt := range tests {
		if got := reached(tt.got, tt.want); got != tt.ok {
			t.Errorf("reached(%q, %q) = %v, want %v", tt.got, tt.want, got, tt.ok)
		}
	}
}

func TestDecodeTransfersRoundTrip(t *testing.T) {
	from, to := solana.NewWallet(), solana.NewWallet()
	mint := solana.MustPublicKeyFromBase58(ledger.DefaultTokenMint)
	src, _, err := solana.FindAssociatedTokenAddress(from.PublicKey(), mint)
	require.NoError(t, err)
	dst, _, err := solana.FindAssociatedTokenAddress(to.PublicKey(), mint)
	require.NoError(t, err)
	foreign, _, err := solana.FindAssociatedTokenAddress(from.PublicKey(), solana.SolMint)
	require.NoError(t, err)

	usdc := ledger.TokenTransfer{
		From:          from.PublicKey().String(),
		To:            to.PublicKey().String(),
		SourceAccount: src.String(),
		DestAccount:   dst.String(),
		Mint:          mint.String(),
		Amount:        15_000_000,
		Decimals:      ledger.DefaultTokenDecimals,
	}

	tests := []struct {
		name string
		inst func(t *testing.T) solana.Instruction
		want ledger.Transfer // nil when nothing should decode
	}{
		{
			name: "system transfer",
			inst: func(t *testing.T) solana.Instruction {
				return system.NewTransferInstruction(42, from.PublicKey(), to.PublicKey()).Build()
			},
			want: ledger.NativeTransfer{From: from.PublicKey().String(), To: to.PublicKey().String(), Lamports: 42},
		},
		{
			name: "token transfer checked",
			inst: func(t *testing.T) solana.Instruction {
				inst, _, err := buildInstruction(usdc)
				require.NoError(t, err)
				return inst
			},
			want: usdc,
		},
		{
			name: "plain token transfer from owner's token account",
			inst: func(t *testing.T) solana.Instruction {
				return token.NewTransferInstruction(15_000_000, src, dst, from.PublicKey(), nil).Build()
			},
			want: usdc,
		},
		{
			name: "plain token transfer of another mint",
			inst: func(t *testing.T) solana.Instruction {
				return token.NewTransferInstruction(15_000_000, foreign, dst, from.PublicKey(), nil).Build()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := solana.NewTransaction(
				[]solana.Instruction{tt.inst(t)},
				solana.Hash{},
				solana.TransactionPayer(from.PublicKey()),
			)
			require.NoError(t, err)

			got := decodeTransfers(txn, ledger.DefaultAssets())
			if tt.want == nil {
				require.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			require.True(t, ledger.Matches(got[0], tt.want), "decoded %+v", got[0])

			rec := &ledger.TxRecord{Transfers: got}
			require.True(t, rec.Carries(tt.want))
		})
	}
}
