package service

import (
	"encoding/hex"

	"github.com/subodh038/paysplit/internal/auth"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/settlement"
	"github.com/subodh038/paysplit/pkg/api"
)

func splitToAPI(s *models.Split) *api.Split {
	if s == nil {
		return nil
	}
	participants := make([]api.Participant, len(s.Participants))
	for i, p := range s.Participants {
		participants[i] = api.Participant{
			ID:                   p.ID,
			WalletAddress:        p.WalletAddress,
			Amount:               p.Amount,
			Paid:                 p.Paid,
			TransactionSignature: p.TransactionSignature,
			PaidAt:               p.PaidAt,
		}
	}

	progress := settlement.Progress(s)
	return &api.Split{
		ID:               s.ID,
		Title:            s.Title,
		RecipientAddress: s.RecipientAddress,
		TotalAmount:      s.TotalAmount,
		Currency:         string(s.Currency),
		DueDate:          s.DueDate,
		Status:           string(s.Status),
		CreatedBy:        s.CreatedBy,
		Participants:     participants,
		Progress: api.Progress{
			PaidCount:         progress.PaidCount,
			ParticipantCount:  progress.ParticipantCount,
			AmountPaid:        progress.AmountPaid,
			AmountOutstanding: progress.AmountOutstanding,
			Percent:           progress.Percent,
		},
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		CompletedAt:      s.CompletedAt,
		ReleaseSignature: s.ReleaseSignature,
	}
}

func historyToAPI(h *models.HistoryEntry) *api.HistoryEntry {
	return &api.HistoryEntry{
		SplitID:          h.SplitID,
		Title:            h.Title,
		TotalAmount:      h.TotalAmount,
		Currency:         string(h.Currency),
		Status:           string(h.Status),
		CreatedAt:        h.CreatedAt,
		ParticipantCount: h.ParticipantCount,
	}
}

func paymentToAPI(r *models.PaymentRecord) *api.PaymentRecord {
	return &api.PaymentRecord{
		ID:                   r.ID,
		ParticipantID:        r.ParticipantID,
		WalletAddress:        r.WalletAddress,
		Amount:               r.Amount,
		Currency:             string(r.Currency),
		TransactionSignature: r.TransactionSignature,
		Status:               string(r.Status),
		SplitCompleted:       r.SplitCompleted,
		RecordedAt:           r.RecordedAt,
		Digest:               hex.EncodeToString(r.Digest),
	}
}

func eventToAPI(ev notify.SplitEvent) *api.SplitEvent {
	return &api.SplitEvent{
		SplitID:       ev.SplitID,
		Kind:          string(ev.Kind),
		Status:        string(ev.Status),
		ParticipantID: ev.ParticipantID,
		At:            ev.At.Unix(),
	}
}

func identityFromSession(s *auth.Session) *api.Identity {
	return &api.Identity{
		ID:            s.IdentityID,
		WalletAddress: s.WalletAddress,
	}
}
