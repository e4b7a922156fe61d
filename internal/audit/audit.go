/*
Package audit makes the payment history tamper-evident.

Every payment record is encoded with CBOR Core Deterministic Encoding (RFC 8949
§4.2.1) and hashed together with the digest of the previous record of the same
split. Rewriting or deleting any row breaks every digest after it.
*/
package audit

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/subodh038/paysplit/internal/models"
)

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("audit: cbor encoder: %v", err))
	}
}

// ErrChainBroken is returned when a stored digest does not match its record.
var ErrChainBroken = errors.New("payment history digest chain broken")

// entry is the hashed view of a PaymentRecord. The field order is part of the
// format: it is encoded as a CBOR array.
type entry struct {
	_              struct{} `cbor:",toarray"`
	SplitID        string
	ParticipantID  string
	WalletAddress  string
	Amount         float64
	Currency       string
	TxSignature    string
	Status         string
	SplitCompleted bool
	RecordedAt     int64
	PrevDigest     []byte
}

// Encode returns the canonical CBOR encoding of rec, excluding its ID and Digest.
func Encode(rec *models.PaymentRecord) ([]byte, error) {
	prev := rec.PrevDigest
	if len(prev) == 0 {
		// first record of a split; stores may hand back nil or an empty blob
		prev = nil
	}
	return encMode.Marshal(entry{
		SplitID:        rec.SplitID,
		ParticipantID:  rec.ParticipantID,
		WalletAddress:  rec.WalletAddress,
		Amount:         rec.Amount,
		Currency:       string(rec.Currency),
		TxSignature:    rec.TransactionSignature,
		Status:         string(rec.Status),
		SplitCompleted: rec.SplitCompleted,
		RecordedAt:     rec.RecordedAt,
		PrevDigest:     prev,
	})
}

// Seal links rec to prev and sets rec.Digest.
func Seal(rec *models.PaymentRecord, prev []byte) error {
	rec.PrevDigest = prev
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encoding payment record: %w", err)
	}
	sum := sha256.Sum256(data)
	rec.Digest = sum[:]
	return nil
}

// VerifyChain checks records of one split, oldest first.
func VerifyChain(records []*models.PaymentRecord) error {
	var prev []byte
	for i, rec := range records {
		if !bytes.Equal(rec.PrevDigest, prev) {
			return fmt.Errorf("%w: record %d does not link to its predecessor", ErrChainBroken, i)
		}
		data, err := Encode(rec)
		if err != nil {
			return fmt.Errorf("encoding payment record %d: %w", i, err)
		}
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], rec.Digest) {
			return fmt.Errorf("%w: record %d (%s) digest mismatch", ErrChainBroken, i, rec.TransactionSignature)
		}
		prev = rec.Digest
	}
	return nil
}
