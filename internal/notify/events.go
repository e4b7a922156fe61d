package notify

import (
	"time"

	"github.com/subodh038/paysplit/internal/models"
)

// SplitEventKind says what happened to a split.
type SplitEventKind string

const (
	SplitCreated   SplitEventKind = "created"
	SplitPaid      SplitEventKind = "participant_paid"
	SplitCompleted SplitEventKind = "completed"
	SplitCancelled SplitEventKind = "cancelled"
	SplitReleased  SplitEventKind = "released"
)

// SplitEvent announces that the state of a split changed. It carries just
// enough for a subscriber to decide whether to re-fetch.
type SplitEvent struct {
	SplitID       string
	Kind          SplitEventKind
	Status        models.SplitStatus
	ParticipantID string
	// Wallets whose visible state changed: creator and participants.
	Wallets []string
	At      time.Time
}

// Concerns reports whether wallet should care about this event.
func (e SplitEvent) Concerns(wallet string) bool {
	for _, w := range e.Wallets {
		if w == wallet {
			return true
		}
	}
	return false
}

// SessionEventKind is a session lifecycle transition.
type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent announces a session change for a wallet.
type SessionEvent struct {
	Kind          SessionEventKind
	SessionID     string
	WalletAddress string
	At            time.Time
}
