package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/internal/auth"
	"github.com/subodh038/paysplit/internal/middleware"
	"github.com/subodh038/paysplit/internal/models"
	"github.com/subodh038/paysplit/internal/notify"
	"github.com/subodh038/paysplit/internal/settlement"
	"github.com/subodh038/paysplit/pkg/api"
	"github.com/subodh038/paysplit/pkg/api/apiconnect"
)

// watchBuffer is how many events a slow watcher may fall behind before
// events are dropped for it.
const watchBuffer = 32

var _ apiconnect.SplitServiceHandler = (*SplitService)(nil)

// SplitService implements the Connect SplitService
type SplitService struct {
	engine *settlement.Engine
}

// NewSplitService creates a new SplitService backed by the settlement engine.
func NewSplitService(engine *settlement.Engine) *SplitService {
	return &SplitService{engine: engine}
}

// callerWallet returns the authenticated wallet or an Unauthenticated error.
func callerWallet(ctx context.Context) (string, error) {
	wallet := middleware.GetWallet(ctx)
	if wallet == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return wallet, nil
}

// CreateSplit stores a new split created by the caller.
func (s *SplitService) CreateSplit(ctx context.Context, req *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	participants := make([]settlement.NewParticipant, len(req.Msg.Participants))
	for i, p := range req.Msg.Participants {
		participants[i] = settlement.NewParticipant{WalletAddress: p.WalletAddress, Amount: p.Amount}
	}

	split, err := s.engine.CreateSplit(ctx, settlement.NewSplit{
		Title:            req.Msg.Title,
		RecipientAddress: req.Msg.RecipientAddress,
		Currency:         models.Currency(req.Msg.Currency),
		DueDate:          req.Msg.DueDate,
		CreatedBy:        wallet,
		Participants:     participants,
		EvenTotal:        req.Msg.EvenTotal,
	})
	if err != nil {
		slog.Error("CreateSplit failed", "wallet", wallet, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CreateSplitResponse{Split: splitToAPI(split)}), nil
}

// GetSplit returns a split the caller created or participates in.
func (s *SplitService) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	split, err := s.engine.GetSplit(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		slog.Warn("GetSplit failed", "split_id", req.Msg.SplitID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetSplitResponse{Split: splitToAPI(split)}), nil
}

// ListSplits returns the caller's active splits, newest first.
func (s *SplitService) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	splits, err := s.engine.ListVisible(ctx, wallet)
	if err != nil {
		slog.Error("ListSplits failed", "wallet", wallet, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.Split, len(splits))
	for i, split := range splits {
		out[i] = splitToAPI(split)
	}
	return connect.NewResponse(&api.ListSplitsResponse{Splits: out}), nil
}

// GetHistory returns the caller's completed and cancelled splits.
func (s *SplitService) GetHistory(ctx context.Context, req *connect.Request[api.GetHistoryRequest]) (*connect.Response[api.GetHistoryResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.engine.History(ctx, wallet)
	if err != nil {
		slog.Error("GetHistory failed", "wallet", wallet, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = historyToAPI(e)
	}
	return connect.NewResponse(&api.GetHistoryResponse{Entries: out}), nil
}

// GetPaymentHistory returns the recorded payments of a split.
func (s *SplitService) GetPaymentHistory(ctx context.Context, req *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.engine.PaymentHistory(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		slog.Warn("GetPaymentHistory failed", "split_id", req.Msg.SplitID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.PaymentRecord, len(records))
	for i, r := range records {
		out[i] = paymentToAPI(r)
	}
	return connect.NewResponse(&api.GetPaymentHistoryResponse{Payments: out}), nil
}

// CancelSplit cancels an active split. Creator only.
func (s *SplitService) CancelSplit(ctx context.Context, req *connect.Request[api.CancelSplitRequest]) (*connect.Response[api.CancelSplitResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	split, err := s.engine.Cancel(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		slog.Warn("CancelSplit failed", "split_id", req.Msg.SplitID, "wallet", wallet, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CancelSplitResponse{Split: splitToAPI(split)}), nil
}

// AuditSplit checks a split's payment state against its audit trail.
func (s *SplitService) AuditSplit(ctx context.Context, req *connect.Request[api.AuditSplitRequest]) (*connect.Response[api.AuditSplitResponse], error) {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.engine.Audit(ctx, req.Msg.SplitID, wallet)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !report.OK() {
		slog.Error("Split audit found violations",
			"split_id", req.Msg.SplitID,
			"violations", report.Violations,
		)
	}

	return connect.NewResponse(&api.AuditSplitResponse{
		OK:         report.OK(),
		Records:    report.Records,
		Violations: report.Violations,
	}), nil
}

// WatchSplits streams changes to the caller's splits until the client goes away.
func (s *SplitService) WatchSplits(ctx context.Context, req *connect.Request[api.WatchSplitsRequest], stream *connect.ServerStream[api.SplitEvent]) error {
	wallet, err := callerWallet(ctx)
	if err != nil {
		return err
	}

	events, unsubscribe := notify.Channel(s.engine.Events(), watchBuffer)
	defer unsubscribe()

	// Let the client know the subscription is live before the first event.
	if err := stream.Send(&api.SplitEvent{Kind: "subscribed"}); err != nil {
		return err
	}

	slog.Debug("Watcher subscribed", "wallet", wallet)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.Concerns(wallet) {
				continue
			}
			if err := stream.Send(eventToAPI(ev)); err != nil {
				return err
			}
		}
	}
}
