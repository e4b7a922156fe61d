package calculator

import (
	"errors"
	"math"
	"testing"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		decimals uint8
		want     uint64
		wantErr  error
	}{
		{name: "one SOL", amount: 1, decimals: 9, want: 1_000_000_000},
		{name: "fractional SOL", amount: 0.1, decimals: 9, want: 100_000_000},
		{name: "USDC cents", amount: 10.25, decimals: 6, want: 10_250_000},
		{name: "USDC smallest unit", amount: 0.000001, decimals: 6, want: 1},
		{name: "float noise tolerated", amount: 123.456789, decimals: 6, want: 123_456_789},
		{name: "zero rejected", amount: 0, decimals: 6, wantErr: ErrNonPositive},
		{name: "negative rejected", amount: -5, decimals: 6, wantErr: ErrNonPositive},
		{name: "NaN rejected", amount: math.NaN(), decimals: 6, wantErr: ErrNonPositive},
		{name: "too precise for USDC", amount: 1.0000001, decimals: 6, wantErr: ErrPrecision},
		{name: "below smallest unit", amount: 0.0000001, decimals: 6, wantErr: ErrPrecision},
		{name: "overflow", amount: 1e20, decimals: 9, wantErr: ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.amount, tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ToBaseUnits(%v) error = %v, want %v", tt.amount, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToBaseUnits(%v) unexpected error: %v", tt.amount, err)
			}
			if got != tt.want {
				t.Errorf("ToBaseUnits(%v) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestTotalShares(t *testing.T) {
	total, err := TotalShares([]Share{
		{Participant: "A", Amount: 0.1},
		{Participant: "B", Amount: 0.2},
	}, 9)
	if err != nil {
		t.Fatalf("TotalShares failed: %v", err)
	}
	if total != 0.3 {
		t.Errorf("total = %v, want exactly 0.3", total)
	}

	if _, err := TotalShares(nil, 6); !errors.Is(err, ErrNoParticipants) {
		t.Errorf("expected ErrNoParticipants, got %v", err)
	}

	_, err = TotalShares([]Share{{Participant: "A", Amount: 10}, {Participant: "B", Amount: 0}}, 6)
	if !errors.Is(err, ErrNonPositive) {
		t.Errorf("expected ErrNonPositive for zero share, got %v", err)
	}
}

func TestSplitEvenly(t *testing.T) {
	tests := []struct {
		name         string
		total        float64
		participants []string
		decimals     uint8
		want         []float64
		wantErr      bool
	}{
		{
			name:         "divides exactly",
			total:        25,
			participants: []string{"A", "B"},
			decimals:     6,
			want:         []float64{12.5, 12.5},
		},
		{
			name:         "remainder goes to first participants",
			total:        0.00001,
			participants: []string{"A", "B", "C"},
			decimals:     6,
			want:         []float64{0.000004, 0.000003, 0.000003},
		},
		{
			name:         "no participants",
			total:        10,
			participants: nil,
			decimals:     6,
			wantErr:      true,
		},
		{
			name:         "total smaller than one unit each",
			total:        0.000002,
			participants: []string{"A", "B", "C"},
			decimals:     6,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := SplitEvenly(tt.total, tt.participants, tt.decimals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitEvenly() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(shares) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(shares), len(tt.want))
			}
			for i, s := range shares {
				if math.Abs(s.Amount-tt.want[i]) > 1e-12 {
					t.Errorf("share %d = %v, want %v", i, s.Amount, tt.want[i])
				}
			}
			sum, err := TotalShares(shares, tt.decimals)
			if err != nil {
				t.Fatalf("TotalShares failed: %v", err)
			}
			if math.Abs(sum-tt.total) > 1e-12 {
				t.Errorf("shares sum to %v, want %v", sum, tt.total)
			}
		})
	}
}

func TestCalculateProgress(t *testing.T) {
	p := CalculateProgress([]ShareStatus{
		{Amount: 10, Paid: true},
		{Amount: 15, Paid: false},
	})
	if p.PaidCount != 1 || p.ParticipantCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", p.PaidCount, p.ParticipantCount)
	}
	if p.AmountPaid != 10 || p.AmountOutstanding != 15 {
		t.Errorf("amounts = %v paid, %v outstanding", p.AmountPaid, p.AmountOutstanding)
	}
	if p.Percent != 50 {
		t.Errorf("percent = %v, want 50", p.Percent)
	}
	if p.Complete() {
		t.Error("expected incomplete progress")
	}

	if CalculateProgress(nil).Complete() {
		t.Error("empty progress must not be complete")
	}
	if !CalculateProgress([]ShareStatus{{Amount: 1, Paid: true}}).Complete() {
		t.Error("expected complete progress")
	}
}
