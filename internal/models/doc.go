// Package models defines the core domain models for PaySplit.
//
// # Models
//
//   - Split: a shared obligation owed to one recipient wallet
//   - Participant: one payer's fixed share of a Split
//   - Identity: the durable identity bound to a wallet address
//   - PaymentRecord: an append-only audit entry for a recorded payment
//   - HistoryEntry: a finished Split summarized for history views
//
// # Invariants
//
//  1. A Participant is paid iff it carries a transaction signature.
//  2. A Split is completed iff every Participant is paid; only the settlement
//     engine's aggregation step sets it.
//  3. Split.TotalAmount and Participant.Amount never change after creation.
//  4. Nothing returns to StatusActive.
//
// Relationships use ID strings rather than pointers. Participants are owned by
// their Split and are never stored on their own.
package models
