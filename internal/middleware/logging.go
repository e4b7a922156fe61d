package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/pkg/api"
)

// LoggingInterceptor logs every handled RPC: unary calls when they return and
// streams when they end. Lines carry the procedure name, wallet, duration, and
// any error code/message. A failed payment call that left a transaction on
// the ledger also logs its ID so it can be reconciled from the logs.
// Must run inside the auth interceptor to see the wallet.
func LoggingInterceptor(logger *slog.Logger) connect.Interceptor {
	return &loggingInterceptor{logger: logger}
}

type loggingInterceptor struct {
	logger *slog.Logger
}

func (l *loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		resp, err := next(ctx, req)
		l.log(ctx, "RPC", req.Spec().Procedure, start, err)
		return resp, err
	}
}

func (l *loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (l *loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		l.logger.Debug("Stream opened", "procedure", conn.Spec().Procedure, "wallet", GetWallet(ctx))
		err := next(ctx, conn)
		logged := err
		// Streams end when the client goes away; that is not a failure.
		if errors.Is(err, context.Canceled) || connect.CodeOf(err) == connect.CodeCanceled {
			logged = nil
		}
		l.log(ctx, "Stream", conn.Spec().Procedure, start, logged)
		return err
	}
}

func (l *loggingInterceptor) log(ctx context.Context, kind, procedure string, start time.Time, err error) {
	attrs := []any{
		"procedure", procedure,
		"wallet", GetWallet(ctx), // empty if pre-auth
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err == nil {
		l.logger.Info(kind+" ok", attrs...)
		return
	}

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		l.logger.Error(kind+" error", append(attrs, "error", err)...)
		return
	}

	attrs = append(attrs, "code", connectErr.Code(), "error", connectErr.Message())
	if tx := connectErr.Meta().Get(api.TransactionIDHeader); tx != "" {
		attrs = append(attrs, "tx", tx)
	}
	switch connectErr.Code() {
	case connect.CodeInternal, connect.CodeUnavailable, connect.CodeDataLoss, connect.CodeUnknown:
		l.logger.Error(kind+" error", attrs...)
	default:
		l.logger.Warn(kind+" error", attrs...)
	}
}
