package settlement

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/sync/errgroup"

	"github.com/subodh038/paysplit/internal/apperr"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/storage"
	"github.com/subodh038/paysplit/internal/storage/sqlite"
	"github.com/subodh038/paysplit/internal/wallet"
)

func newWallet(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return wallet.Address(pub)
}

func newTestEngine(t *testing.T) (*Engine, *sqlite.SQLiteStore) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store), store
}

type fixture struct {
	engine  *Engine
	store   *sqlite.SQLiteStore
	creator string
	wallets []string
	split   *models.Split
}

func newFixture(t *testing.T, amounts ...float64) *fixture {
	t.Helper()
	engine, store := newTestEngine(t)
	f := &fixture{engine: engine, store: store, creator: newWallet(t)}

	in := NewSplit{
		Title:            "October rent",
		RecipientAddress: f.creator,
		Currency:         models.CurrencySOL,
		DueDate:          "2026-11-01",
		CreatedBy:        f.creator,
	}
	for _, amt := range amounts {
		w := newWallet(t)
		f.wallets = append(f.wallets, w)
		in.Participants = append(in.Participants, NewParticipant{WalletAddress: w, Amount: amt})
	}

	split, err := engine.CreateSplit(context.Background(), in)
	require.NoError(t, err)
	f.split = split
	return f
}

func (f *fixture) payment(i int, tx string) Payment {
	p := f.split.Participants[i]
	return Payment{
		SplitID:       f.split.ID,
		ParticipantID: p.ID,
		TransactionID: tx,
		Amount:        p.Amount,
		Currency:      f.split.Currency,
		WalletAddress: p.WalletAddress,
	}
}

func (f *fixture) reload(t *testing.T) *models.Split {
	t.Helper()
	split, err := f.engine.GetSplit(context.Background(), f.split.ID, f.creator)
	require.NoError(t, err)
	return split
}

func (f *fixture) requireAuditOK(t *testing.T) {
	t.Helper()
	report, err := f.engine.Audit(context.Background(), f.split.ID, f.creator)
	require.NoError(t, err)
	require.True(t, report.OK(), "violations: %v", report.Violations)
}

func TestRecordPaymentCompletesSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5, 0.5)
	require.Equal(t, 1.0, f.split.TotalAmount)

	res, err := f.engine.RecordPayment(ctx, f.payment(0, "tx-a"))
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, models.StatusActive, f.reload(t).Status)

	res, err = f.engine.RecordPayment(ctx, f.payment(1, "tx-b"))
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.True(t, res.Record.SplitCompleted)

	split := f.reload(t)
	require.Equal(t, models.StatusCompleted, split.Status)
	require.True(t, split.AllPaid())
	require.Equal(t, "tx-b", split.Participants[1].TransactionSignature)

	records, err := f.engine.PaymentHistory(ctx, f.split.ID, f.wallets[0])
	require.NoError(t, err)
	require.Len(t, records, 2)

	progress := Progress(split)
	require.Equal(t, 2, progress.PaidCount)
	require.Equal(t, 100.0, progress.Percent)
	f.requireAuditOK(t)
}

func TestRecordPaymentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.engine.RecordPayment(ctx, f.payment(0, "tx-1"))
	require.NoError(t, err)

	_, err = f.engine.RecordPayment(ctx, f.payment(0, "tx-1"))
	require.ErrorIs(t, err, ErrAlreadyRecorded)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.engine.RecordPayment(ctx, f.payment(0, "tx-2"))
	require.ErrorIs(t, err, ErrAlreadyPaid)

	records, err := f.engine.PaymentHistory(ctx, f.split.ID, f.creator)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "tx-1", f.reload(t).Participants[0].TransactionSignature)
	f.requireAuditOK(t)
}

func TestRecordPaymentRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(f *fixture, p *Payment)
		wantErr error
	}{
		{
			name:    "payer mismatch",
			mutate:  func(f *fixture, p *Payment) { p.WalletAddress = f.wallets[1] },
			wantErr: ErrPayerMismatch,
		},
		{
			name:    "partial amount",
			mutate:  func(_ *fixture, p *Payment) { p.Amount = 0.25 },
			wantErr: ErrAmountMismatch,
		},
		{
			name:    "wrong currency",
			mutate:  func(_ *fixture, p *Payment) { p.Currency = models.CurrencyUSDC },
			wantErr: ErrCurrencyMismatch,
		},
		{
			name:    "unknown participant",
			mutate:  func(_ *fixture, p *Payment) { p.ParticipantID = "nobody" },
			wantErr: apperr.ErrNotFound,
		},
		{
			name:    "unknown split",
			mutate:  func(_ *fixture, p *Payment) { p.SplitID = "missing" },
			wantErr: ErrSplitNotFound,
		},
		{
			name:    "empty transaction",
			mutate:  func(_ *fixture, p *Payment) { p.TransactionID = " " },
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "malformed wallet",
			mutate:  func(_ *fixture, p *Payment) { p.WalletAddress = "0OIl" },
			wantErr: wallet.ErrInvalidAddress,
		},
		{
			name:    "non-positive amount",
			mutate:  func(_ *fixture, p *Payment) { p.Amount = -1 },
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0.5, 0.5)
			p := f.payment(0, "tx")
			tt.mutate(f, &p)

			_, err := f.engine.RecordPayment(ctx, p)
			require.ErrorIs(t, err, tt.wantErr)

			split := f.reload(t)
			require.False(t, split.Participants[0].Paid, "no state may change")
			require.Equal(t, models.StatusActive, split.Status)
			f.requireAuditOK(t)
		})
	}
}

func TestRecordPaymentRejectsReusedTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5, 0.5)

	_, err := f.engine.RecordPayment(ctx, f.payment(0, "tx-shared"))
	require.NoError(t, err)

	_, err = f.engine.RecordPayment(ctx, f.payment(1, "tx-shared"))
	require.ErrorIs(t, err, ErrDuplicateTransaction)
	require.False(t, f.reload(t).Participants[1].Paid)
}

func TestRecordPaymentOnCancelledSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.engine.Cancel(ctx, f.split.ID, f.creator)
	require.NoError(t, err)

	_, err = f.engine.RecordPayment(ctx, f.payment(0, "tx"))
	require.ErrorIs(t, err, ErrSplitNotActive)
}

func TestConcurrentPaymentsCompleteExactlyOnce(t *testing.T) {
	ctx := context.Background()
	const n = 8
	amounts := make([]float64, n)
	for i := range amounts {
		amounts[i] = 0.125
	}
	f := newFixture(t, amounts...)

	completed := make(chan struct{}, n)
	unsubscribe := f.engine.Events().Subscribe(func(ev notify.SplitEvent) {
		if ev.Kind == notify.SplitCompleted {
			completed <- struct{}{}
		}
	})
	defer unsubscribe()

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := f.engine.RecordPayment(ctx, f.payment(i, fmt.Sprintf("tx-%d", i)))
			return err
		})
	}
	require.NoError(t, g.Wait())

	split := f.reload(t)
	require.Equal(t, models.StatusCompleted, split.Status)
	require.Len(t, completed, 1)
	f.requireAuditOK(t)
}

func TestConcurrentDuplicatePaymentsRecordOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	const n = 5
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, errs[i] = f.engine.RecordPayment(ctx, f.payment(0, "same-tx"))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyRecorded)
	}
	require.Equal(t, 1, ok)
	f.requireAuditOK(t)
}

func TestCreateSplitValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	creator, a, b := newWallet(t), newWallet(t), newWallet(t)

	valid := func() NewSplit {
		return NewSplit{
			Title:            "Dinner",
			RecipientAddress: creator,
			Currency:         models.CurrencyUSDC,
			DueDate:          "2026-12-24",
			CreatedBy:        creator,
			Participants: []NewParticipant{
				{WalletAddress: a, Amount: 10.5},
				{WalletAddress: b, Amount: 4.25},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*NewSplit)
		wantErr error
	}{
		{"blank title", func(s *NewSplit) { s.Title = "  " }, ErrInvalidSplit},
		{"bad recipient", func(s *NewSplit) { s.RecipientAddress = "nope" }, wallet.ErrInvalidAddress},
		{"bad currency", func(s *NewSplit) { s.Currency = "EUR" }, ErrInvalidSplit},
		{"bad due date", func(s *NewSplit) { s.DueDate = "24/12/2026" }, ErrInvalidSplit},
		{"no participants", func(s *NewSplit) { s.Participants = nil }, ErrInvalidSplit},
		{"zero share", func(s *NewSplit) { s.Participants[0].Amount = 0 }, ErrInvalidSplit},
		{"too precise", func(s *NewSplit) { s.Participants[0].Amount = 1.0000001 }, ErrInvalidSplit},
		{"duplicate wallet", func(s *NewSplit) { s.Participants[1].WalletAddress = a }, ErrInvalidSplit},
		{"amounts with even total", func(s *NewSplit) { s.EvenTotal = 10 }, ErrInvalidSplit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := engine.CreateSplit(context.Background(), in)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	t.Run("valid", func(t *testing.T) {
		split, err := engine.CreateSplit(context.Background(), valid())
		require.NoError(t, err)
		require.Equal(t, 14.75, split.TotalAmount)
		require.Equal(t, models.StatusActive, split.Status)
		for _, p := range split.Participants {
			require.False(t, p.Paid)
			require.NotEmpty(t, p.ID)
		}
	})

	t.Run("even split", func(t *testing.T) {
		in := valid()
		in.Currency = models.CurrencySOL
		in.Participants[0].Amount = 0
		in.Participants[1].Amount = 0
		in.EvenTotal = 1

		split, err := engine.CreateSplit(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, 1.0, split.TotalAmount)
		require.Equal(t, 0.5, split.Participants[0].Amount)
		require.Equal(t, 0.5, split.Participants[1].Amount)
	})
}

func TestVisibilityAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	stranger := newWallet(t)

	_, err := f.engine.GetSplit(ctx, f.split.ID, stranger)
	require.ErrorIs(t, err, apperr.ErrPermission)
	_, err = f.engine.PaymentHistory(ctx, f.split.ID, stranger)
	require.ErrorIs(t, err, apperr.ErrPermission)

	visible, err := f.engine.ListVisible(ctx, f.wallets[0])
	require.NoError(t, err)
	require.Len(t, visible, 1)

	_, err = f.engine.RecordPayment(ctx, f.payment(0, "tx"))
	require.NoError(t, err)

	visible, err = f.engine.ListVisible(ctx, f.wallets[0])
	require.NoError(t, err)
	require.Empty(t, visible)

	history, err := f.engine.History(ctx, f.wallets[0])
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.StatusCompleted, history[0].Status)
	require.Equal(t, 1, history[0].ParticipantCount)

	history, err = f.engine.History(ctx, stranger)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.engine.Cancel(ctx, f.split.ID, f.wallets[0])
	require.ErrorIs(t, err, ErrNotCreator)

	split, err := f.engine.Cancel(ctx, f.split.ID, f.creator)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, split.Status)

	_, err = f.engine.Cancel(ctx, f.split.ID, f.creator)
	require.ErrorIs(t, err, ErrSplitNotActive)
	f.requireAuditOK(t)
}

func TestMarkReleased(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.engine.MarkReleased(ctx, f.split.ID, f.creator, "release-tx")
	require.ErrorIs(t, err, ErrNotCompleted)

	_, err = f.engine.RecordPayment(ctx, f.payment(0, "tx"))
	require.NoError(t, err)

	_, err = f.engine.MarkReleased(ctx, f.split.ID, f.wallets[0], "release-tx")
	require.ErrorIs(t, err, ErrNotCreator)

	split, err := f.engine.MarkReleased(ctx, f.split.ID, f.creator, "release-tx")
	require.NoError(t, err)
	require.Equal(t, "release-tx", split.ReleaseSignature)

	_, err = f.engine.MarkReleased(ctx, f.split.ID, f.creator, "release-tx-2")
	require.ErrorIs(t, err, ErrAlreadyReleased)
}

func TestAuditDetectsViolations(t *testing.T) {
	f := newFixture(t, 0.5, 0.5)
	split := f.reload(t)

	split.Participants[0].Paid = true
	split.Status = models.StatusCompleted
	split.TotalAmount = 2

	report := f.engine.audit(split, []*models.PaymentRecord{
		{TransactionSignature: "x", ParticipantID: "ghost", Digest: []byte("bogus")},
	})
	require.False(t, report.OK())
	require.GreaterOrEqual(t, len(report.Violations), 4)
}

// failingStore fails every transaction with a driver-level error.
type failingStore struct {
	storage.Store
}

func (failingStore) WithSplitTx(context.Context, string, func(storage.SplitTx) error) error {
	return errors.New("database is locked")
}

func TestRecordPaymentStoreFailureIsInfrastructure(t *testing.T) {
	f := newFixture(t, 1)
	engine := NewEngine(failingStore{Store: f.store}, WithClock(func() time.Time { return time.Unix(0, 0) }))

	_, err := engine.RecordPayment(context.Background(), f.payment(0, "tx"))
	require.ErrorIs(t, err, apperr.ErrInfrastructure)
	require.NotErrorIs(t, err, apperr.ErrConflict)
}

func TestCheckPayable(t *testing.T) {
	f := newFixture(t, 0.5, 0.5)
	split := f.reload(t)
	p0 := split.Participants[0]

	part, err := CheckPayable(split, p0.ID, p0.WalletAddress)
	require.NoError(t, err)
	require.Equal(t, p0.ID, part.ID)

	_, err = CheckPayable(split, p0.ID, f.wallets[1])
	require.ErrorIs(t, err, ErrPayerMismatch)

	_, err = CheckPayable(split, "nobody", p0.WalletAddress)
	require.ErrorIs(t, err, ErrParticipantNotFound)

	_, err = f.engine.RecordPayment(context.Background(), f.payment(0, "tx"))
	require.NoError(t, err)
	_, err = CheckPayable(f.reload(t), p0.ID, p0.WalletAddress)
	require.ErrorIs(t, err, ErrAlreadyPaid)
}
