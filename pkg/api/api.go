// Package api defines the PaySplit RPC messages. They travel as JSON over
// Connect; see package apiconnect for the services.
//
// Timestamps are Unix seconds. Amounts are decimal currency units.
package api

// TransactionIDHeader carries the ledger transaction of a payment that was
// submitted but not settled, on error responses.
const TransactionIDHeader = "Paysplit-Transaction-Id"

// Identity is a wallet that has signed in.
type Identity struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
}

// Participant is one share of a split.
type Participant struct {
	ID                   string  `json:"id"`
	WalletAddress        string  `json:"walletAddress"`
	Amount               float64 `json:"amount"`
	Paid                 bool    `json:"paid"`
	TransactionSignature string  `json:"transactionSignature,omitempty"`
	PaidAt               int64   `json:"paidAt,omitempty"`
}

// Progress summarizes the payments of a split.
type Progress struct {
	PaidCount         int     `json:"paidCount"`
	ParticipantCount  int     `json:"participantCount"`
	AmountPaid        float64 `json:"amountPaid"`
	AmountOutstanding float64 `json:"amountOutstanding"`
	Percent           float64 `json:"percent"`
}

// Split is a shared obligation and its participants.
type Split struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	RecipientAddress string        `json:"recipientAddress"`
	TotalAmount      float64       `json:"totalAmount"`
	Currency         string        `json:"currency"`
	DueDate          string        `json:"dueDate"`
	Status           string        `json:"status"`
	CreatedBy        string        `json:"createdBy"`
	Participants     []Participant `json:"participants"`
	Progress         Progress      `json:"progress"`
	CreatedAt        int64         `json:"createdAt"`
	UpdatedAt        int64         `json:"updatedAt"`
	CompletedAt      int64         `json:"completedAt,omitempty"`
	ReleaseSignature string        `json:"releaseSignature,omitempty"`
}

// HistoryEntry is a finished split.
type HistoryEntry struct {
	SplitID          string  `json:"splitId"`
	Title            string  `json:"title"`
	TotalAmount      float64 `json:"totalAmount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	CreatedAt        int64   `json:"createdAt"`
	ParticipantCount int     `json:"participantCount"`
}

// PaymentRecord is one entry of a split's payment history.
type PaymentRecord struct {
	ID                   int64   `json:"id"`
	ParticipantID        string  `json:"participantId"`
	WalletAddress        string  `json:"walletAddress"`
	Amount               float64 `json:"amount"`
	Currency             string  `json:"currency"`
	TransactionSignature string  `json:"transactionSignature"`
	Status               string  `json:"status"`
	SplitCompleted       bool    `json:"splitCompleted"`
	RecordedAt           int64   `json:"recordedAt"`
	// Digest is hex encoded.
	Digest string `json:"digest"`
}

// SplitEvent tells a watcher that a split changed.
type SplitEvent struct {
	SplitID       string `json:"splitId"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	ParticipantID string `json:"participantId,omitempty"`
	At            int64  `json:"at"`
}

// AuthService

type GetChallengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type GetChallengeResponse struct {
	Message string `json:"message"`
}

type AuthenticateRequest struct {
	WalletAddress string `json:"walletAddress"`
	// Signature is the base-58 Ed25519 signature of Message.
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

type AuthenticateResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   int64     `json:"expiresAt"`
	Identity    *Identity `json:"identity"`
	NewIdentity bool      `json:"newIdentity"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	Identity         *Identity `json:"identity"`
	SessionExpiresAt int64     `json:"sessionExpiresAt"`
}

// SplitService

type ParticipantInput struct {
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount,omitempty"`
}

type CreateSplitRequest struct {
	Title            string             `json:"title"`
	RecipientAddress string             `json:"recipientAddress"`
	Currency         string             `json:"currency"`
	DueDate          string             `json:"dueDate"`
	Participants     []ParticipantInput `json:"participants"`
	// EvenTotal splits this total evenly instead of using per-participant amounts.
	EvenTotal float64 `json:"evenTotal,omitempty"`
}

type CreateSplitResponse struct {
	Split *Split `json:"split"`
}

type GetSplitRequest struct {
	SplitID string `json:"splitId"`
}

type GetSplitResponse struct {
	Split *Split `json:"split"`
}

type ListSplitsRequest struct{}

type ListSplitsResponse struct {
	Splits []*Split `json:"splits"`
}

type GetHistoryRequest struct{}

type GetHistoryResponse struct {
	Entries []*HistoryEntry `json:"entries"`
}

type GetPaymentHistoryRequest struct {
	SplitID string `json:"splitId"`
}

type GetPaymentHistoryResponse struct {
	Payments []*PaymentRecord `json:"payments"`
}

type CancelSplitRequest struct {
	SplitID string `json:"splitId"`
}

type CancelSplitResponse struct {
	Split *Split `json:"split"`
}

type AuditSplitRequest struct {
	SplitID string `json:"splitId"`
}

type AuditSplitResponse struct {
	OK         bool     `json:"ok"`
	Records    int      `json:"records"`
	Violations []string `json:"violations,omitempty"`
}

type WatchSplitsRequest struct{}

// PaymentService

type PayRequest struct {
	SplitID       string `json:"splitId"`
	ParticipantID string `json:"participantId"`
}

type PayResponse struct {
	TransactionID string `json:"transactionId"`
	Split         *Split `json:"split"`
}

type RecordPaymentRequest struct {
	SplitID       string `json:"splitId"`
	ParticipantID string `json:"participantId"`
	TransactionID string `json:"transactionId"`
}

type RecordPaymentResponse struct {
	Split *Split `json:"split"`
}

type ReleaseFundsRequest struct {
	SplitID string `json:"splitId"`
}

type ReleaseFundsResponse struct {
	TransactionID string `json:"transactionId"`
	Split         *Split `json:"split"`
}
