package main

import (
	"context"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/payment"
	"github.com/subodh038/paysplit/internal/settlement"
	"github.com/subodh038/paysplit/pkg/api"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
)

var _ payment.Recorder = (*remoteRecorder)(nil)

// remoteRecorder records payments through the server, which checks the
// transaction on the ledger again before accepting it.
type remoteRecorder struct {
	client apiconnect.PaymentServiceClient
}

func (r *remoteRecorder) RecordPayment(ctx context.Context, p settlement.Payment) (*settlement.Result, error) {
	resp, err := r.client.RecordPayment(ctx, connect.NewRequest(&api.RecordPaymentRequest{
		SplitID:       p.SplitID,
		ParticipantID: p.ParticipantID,
		TransactionID: p.TransactionID,
	}))
	if err != nil {
		return nil, err
	}

	split := resp.Msg.Split
	return &settlement.Result{
		Split: &models.Split{
			ID:     split.ID,
			Status: models.SplitStatus(split.Status),
		},
		Completed: split.Status == string(models.StatusCompleted),
	}, nil
}
