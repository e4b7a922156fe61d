package models

import (
	"fmt"
	"time"
)

// SplitStatus is the lifecycle state of a Split.
type SplitStatus string

const (
	StatusActive    SplitStatus = "active"
	StatusCompleted SplitStatus = "completed"
	StatusCancelled SplitStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SplitStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the split has left the settlement lifecycle.
func (s SplitStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Currency is the asset a Split is denominated in.
type Currency string

const (
	// CurrencySOL is the ledger's native token.
	CurrencySOL Currency = "SOL"
	// CurrencyUSDC is the stable token.
	CurrencyUSDC Currency = "USDC"
)

// ParseCurrency validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(s); c {
	case CurrencySOL, CurrencyUSDC:
		return c, nil
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}

// DueDateLayout is the calendar-date format of Split.DueDate.
const DueDateLayout = time.DateOnly

// Split represents a shared obligation split among participants.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	ID string

	// Title is the display label (e.g., "October rent").
	Title string

	// RecipientAddress is the wallet that receives every participant's share.
	RecipientAddress string

	// TotalAmount is the sum of participant shares at creation time.
	// It is the commitment, not a running sum, and is never updated.
	TotalAmount float64

	Currency Currency

	// DueDate is a calendar date in DueDateLayout.
	DueDate string

	Status SplitStatus

	// CreatedBy is the creator's wallet address.
	CreatedBy string

	// Participants in creation order.
	Participants []Participant

	// CreatedAt, UpdatedAt and CompletedAt are Unix timestamps.
	// CompletedAt is zero until the split completes.
	CreatedAt   int64
	UpdatedAt   int64
	CompletedAt int64

	// ReleaseSignature is the transaction of the funds-release action.
	// Empty until the creator releases.
	ReleaseSignature string
}

// Participant represents one payer's share of a Split.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	ID string

	SplitID string

	// WalletAddress is the only wallet allowed to pay this share.
	WalletAddress string

	// Amount is the owed share, in Split.Currency. Always > 0.
	Amount float64

	// Paid is true iff TransactionSignature is set.
	Paid bool

	// TransactionSignature is the ledger proof of payment.
	// Empty until the payment is verified and recorded.
	TransactionSignature string

	// PaidAt is the Unix timestamp of recording, set with TransactionSignature.
	PaidAt int64

	// Position is the zero-based creation order within the split.
	Position int
}

// Participant returns the participant with the given ID, or nil.
func (s *Split) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// ParticipantByWallet returns the participant registered for a wallet, or nil.
func (s *Split) ParticipantByWallet(wallet string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].WalletAddress == wallet {
			return &s.Participants[i]
		}
	}
	return nil
}

// AllPaid reports whether every participant has paid.
// A split without participants is never considered paid.
func (s *Split) AllPaid() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.Paid {
			return false
		}
	}
	return true
}

// VisibleTo reports whether wallet created the split or participates in it.
func (s *Split) VisibleTo(wallet string) bool {
	return s.CreatedBy == wallet || s.ParticipantByWallet(wallet) != nil
}
