package models

// PaymentStatus is the status stored on a payment history row.
type PaymentStatus string

const PaymentCompleted PaymentStatus = "completed"

// PaymentRecord is an immutable audit entry appended for each recorded payment.
type PaymentRecord struct {
	// ID is the store-assigned sequence number.
	ID int64

	SplitID       string
	ParticipantID string
	WalletAddress string
	Amount        float64
	Currency      Currency

	// TransactionSignature is unique across the whole history.
	TransactionSignature string

	Status PaymentStatus

	// SplitCompleted is true on the payment that completed its split.
	SplitCompleted bool

	// RecordedAt is the Unix timestamp of recording.
	RecordedAt int64

	// PrevDigest links to the previous record of the same split;
	// Digest covers this record and PrevDigest.
	PrevDigest []byte
	Digest     []byte
}

// HistoryEntry summarizes a finished split for history views.
type HistoryEntry struct {
	SplitID          string
	Title            string
	TotalAmount      float64
	Currency         Currency
	Status           SplitStatus
	CreatedAt        int64
	ParticipantCount int
}
