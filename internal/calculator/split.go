package calculator

import (
	"errors"
	"fmt"
	"math"
)

// Share is one participant's owed amount.
type Share struct {
	Participant string
	Amount      float64
}

var (
	ErrNoParticipants = errors.New("must have at least one participant")
	ErrNonPositive    = errors.New("amount must be greater than zero")
	ErrPrecision      = errors.New("amount has more decimal places than the currency supports")
	ErrOverflow       = errors.New("amount exceeds the ledger's range")
)

// ToBaseUnits converts a decimal amount to the ledger's integer base unit
// (lamports for SOL, 10^-6 for USDC). Amounts that would be rounded are
// rejected instead, so a payment is never silently short.
func ToBaseUnits(amount float64, decimals uint8) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, ErrNonPositive
	}
	scaled := amount * math.Pow10(int(decimals))
	if scaled >= math.MaxUint64 {
		return 0, ErrOverflow
	}
	units := math.Round(scaled)
	// Tolerate float noise from the multiplication, nothing more.
	if math.Abs(units-scaled) > math.Max(1e-6, scaled*1e-12) {
		return 0, ErrPrecision
	}
	if units < 1 {
		return 0, ErrPrecision
	}
	return uint64(units), nil
}

// FromBaseUnits converts integer base units back to a decimal amount.
func FromBaseUnits(units uint64, decimals uint8) float64 {
	return float64(units) / math.Pow10(int(decimals))
}

// TotalShares validates every share and returns their sum.
// The sum is computed in base units so 0.1 + 0.2 stays 0.3.
func TotalShares(shares []Share, decimals uint8) (float64, error) {
	if len(shares) == 0 {
		return 0, ErrNoParticipants
	}
	var total uint64
	for _, s := range shares {
		units, err := ToBaseUnits(s.Amount, decimals)
		if err != nil {
			return 0, fmt.Errorf("share for %s: %w", s.Participant, err)
		}
		if total > math.MaxUint64-units {
			return 0, ErrOverflow
		}
		total += units
	}
	return FromBaseUnits(total, decimals), nil
}

// SplitEvenly divides total equally among participants in base units.
// The remainder is handed out one unit at a time to the first participants,
// so the shares always add up to exactly total.
func SplitEvenly(total float64, participants []string, decimals uint8) ([]Share, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	units, err := ToBaseUnits(total, decimals)
	if err != nil {
		return nil, err
	}
	n := uint64(len(participants))
	if units < n {
		return nil, fmt.Errorf("total too small to split among %d participants: %w", n, ErrPrecision)
	}

	per, rem := units/n, units%n
	shares := make([]Share, len(participants))
	for i, p := range participants {
		u := per
		if uint64(i) < rem {
			u++
		}
		shares[i] = Share{Participant: p, Amount: FromBaseUnits(u, decimals)}
	}
	return shares, nil
}
