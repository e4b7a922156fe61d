package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/payment"
	"github.com/subodh038/paysplit/internal/settlement"
	"github.com/subodh038/paysplit/pkg/api"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
)

var _ apiconnect.PaymentServiceHandler = (*PaymentService)(nil)

// PaymentService moves money on the ledger and records it with the engine.
type PaymentService struct {
	engine   *settlement.Engine
	payments *payment.Orchestrator
}

// NewPaymentService creates a PaymentService. payments must record into engine.
func NewPaymentService(engine *settlement.Engine, payments *payment.Orchestrator) *PaymentService {
	return &PaymentService{engine: engine, payments: payments}
}

// Pay transfers the caller's share from their wallet and records it. It
// needs a ledger client that can sign for the caller.
func (s *PaymentService) Pay(ctx context.Context, req *connect.Request[api.PayRequest]) (*connect.Response[api.PayResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	split, err := s.engine.GetSplit(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}
	part, err := settlement.CheckPayable(split, req.Msg.ParticipantID, wallet)
	if err != nil {
		slog.Warn("Pay rejected", "split_id", split.ID, "participant_id", req.Msg.ParticipantID, "error", err)
		return nil, toConnectError(err)
	}

	txID, err := s.payments.Pay(ctx, payment.RequestFor(split, part))
	if err != nil {
		slog.Error("Pay failed",
			"split_id", split.ID,
			"participant_id", part.ID,
			"tx", txID,
			"outcome", payment.Outcome(err),
			"error", err,
		)
		return nil, toConnectError(err)
	}

	split, err = s.engine.GetSplit(ctx, split.ID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.PayResponse{TransactionID: txID, Split: splitToAPI(split)}), nil
}

// RecordPayment records a transfer the caller submitted themselves, after
// checking it on the ledger. Recording the same transaction twice succeeds.
func (s *PaymentService) RecordPayment(ctx context.Context, req *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.TransactionID == "" {
		return nil, toConnectError(fmt.Errorf("%w: transaction id is required", settlement.ErrInvalidPayment))
	}

	split, err := s.engine.GetSplit(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}

	if p := split.Participant(req.Msg.ParticipantID); p != nil && p.Paid && p.TransactionSignature == req.Msg.TransactionID {
		return connect.NewResponse(&api.RecordPaymentResponse{Split: splitToAPI(split)}), nil
	}
	part, err := settlement.CheckPayable(split, req.Msg.ParticipantID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}

	if err := s.payments.Reconcile(ctx, payment.RequestFor(split, part), req.Msg.TransactionID); err != nil {
		slog.Warn("RecordPayment failed",
			"split_id", split.ID,
			"participant_id", part.ID,
			"tx", req.Msg.TransactionID,
			"error", err,
		)
		return nil, toConnectError(err)
	}

	split, err = s.engine.GetSplit(ctx, split.ID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.RecordPaymentResponse{Split: splitToAPI(split)}), nil
}

// ReleaseFunds performs the creator's release of a completed split.
func (s *PaymentService) ReleaseFunds(ctx context.Context, req *connect.Request[api.ReleaseFundsRequest]) (*connect.Response[api.ReleaseFundsResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	split, err := s.engine.GetSplit(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}

	txID, err := s.payments.Release(ctx, s.engine, split, wallet)
	if err != nil {
		slog.Error("ReleaseFunds failed", "split_id", split.ID, "tx", txID, "error", err)
		return nil, toConnectError(err)
	}

	split, err = s.engine.GetSplit(ctx, split.ID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ReleaseFundsResponse{TransactionID: txID, Split: splitToAPI(split)}), nil
}
