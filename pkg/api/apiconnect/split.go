package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/pkg/api"
)

const SplitServiceName = "paysplit.v1.SplitService"

const (
	SplitServiceCreateSplitProcedure       = "/paysplit.v1.SplitService/CreateSplit"
	SplitServiceGetSplitProcedure          = "/paysplit.v1.SplitService/GetSplit"
	SplitServiceListSplitsProcedure        = "/paysplit.v1.SplitService/ListSplits"
	SplitServiceGetHistoryProcedure        = "/paysplit.v1.SplitService/GetHistory"
	SplitServiceGetPaymentHistoryProcedure = "/paysplit.v1.SplitService/GetPaymentHistory"
	SplitServiceCancelSplitProcedure       = "/paysplit.v1.SplitService/CancelSplit"
	SplitServiceAuditSplitProcedure        = "/paysplit.v1.SplitService/AuditSplit"
	SplitServiceWatchSplitsProcedure       = "/paysplit.v1.SplitService/WatchSplits"
)

// SplitServiceHandler is implemented by the server.
type SplitServiceHandler interface {
	CreateSplit(context.Context, *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error)
	GetSplit(context.Context, *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error)
	ListSplits(context.Context, *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error)
	GetHistory(context.Context, *connect.Request[api.GetHistoryRequest]) (*connect.Response[api.GetHistoryResponse], error)
	GetPaymentHistory(context.Context, *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error)
	CancelSplit(context.Context, *connect.Request[api.CancelSplitRequest]) (*connect.Response[api.CancelSplitResponse], error)
	AuditSplit(context.Context, *connect.Request[api.AuditSplitRequest]) (*connect.Response[api.AuditSplitResponse], error)
	WatchSplits(context.Context, *connect.Request[api.WatchSplitsRequest], *connect.ServerStream[api.SplitEvent]) error
}

// NewSplitServiceHandler builds an HTTP handler from the service implementation.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createSplit := connect.NewUnaryHandler(SplitServiceCreateSplitProcedure, svc.CreateSplit, opts...)
	getSplit := connect.NewUnaryHandler(SplitServiceGetSplitProcedure, svc.GetSplit, opts...)
	listSplits := connect.NewUnaryHandler(SplitServiceListSplitsProcedure, svc.ListSplits, opts...)
	getHistory := connect.NewUnaryHandler(SplitServiceGetHistoryProcedure, svc.GetHistory, opts...)
	getPaymentHistory := connect.NewUnaryHandler(SplitServiceGetPaymentHistoryProcedure, svc.GetPaymentHistory, opts...)
	cancelSplit := connect.NewUnaryHandler(SplitServiceCancelSplitProcedure, svc.CancelSplit, opts...)
	auditSplit := connect.NewUnaryHandler(SplitServiceAuditSplitProcedure, svc.AuditSplit, opts...)
	watchSplits := connect.NewServerStreamHandler(SplitServiceWatchSplitsProcedure, svc.WatchSplits, opts...)

	return "/" + SplitServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SplitServiceCreateSplitProcedure:
			createSplit.ServeHTTP(w, r)
		case SplitServiceGetSplitProcedure:
			getSplit.ServeHTTP(w, r)
		case SplitServiceListSplitsProcedure:
			listSplits.ServeHTTP(w, r)
		case SplitServiceGetHistoryProcedure:
			getHistory.ServeHTTP(w, r)
		case SplitServiceGetPaymentHistoryProcedure:
			getPaymentHistory.ServeHTTP(w, r)
		case SplitServiceCancelSplitProcedure:
			cancelSplit.ServeHTTP(w, r)
		case SplitServiceAuditSplitProcedure:
			auditSplit.ServeHTTP(w, r)
		case SplitServiceWatchSplitsProcedure:
			watchSplits.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SplitServiceClient is a client for paysplit.v1.SplitService.
type SplitServiceClient interface {
	CreateSplit(context.Context, *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error)
	GetSplit(context.Context, *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error)
	ListSplits(context.Context, *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error)
	GetHistory(context.Context, *connect.Request[api.GetHistoryRequest]) (*connect.Response[api.GetHistoryResponse], error)
	GetPaymentHistory(context.Context, *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error)
	CancelSplit(context.Context, *connect.Request[api.CancelSplitRequest]) (*connect.Response[api.CancelSplitResponse], error)
	AuditSplit(context.Context, *connect.Request[api.AuditSplitRequest]) (*connect.Response[api.AuditSplitResponse], error)
	WatchSplits(context.Context, *connect.Request[api.WatchSplitsRequest]) (*connect.ServerStreamForClient[api.SplitEvent], error)
}

// NewSplitServiceClient constructs a client.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &splitServiceClient{
		createSplit:       connect.NewClient[api.CreateSplitRequest, api.CreateSplitResponse](httpClient, baseURL+SplitServiceCreateSplitProcedure, opts...),
		getSplit:          connect.NewClient[api.GetSplitRequest, api.GetSplitResponse](httpClient, baseURL+SplitServiceGetSplitProcedure, opts...),
		listSplits:        connect.NewClient[api.ListSplitsRequest, api.ListSplitsResponse](httpClient, baseURL+SplitServiceListSplitsProcedure, opts...),
		getHistory:        connect.NewClient[api.GetHistoryRequest, api.GetHistoryResponse](httpClient, baseURL+SplitServiceGetHistoryProcedure, opts...),
		getPaymentHistory: connect.NewClient[api.GetPaymentHistoryRequest, api.GetPaymentHistoryResponse](httpClient, baseURL+SplitServiceGetPaymentHistoryProcedure, opts...),
		cancelSplit:       connect.NewClient[api.CancelSplitRequest, api.CancelSplitResponse](httpClient, baseURL+SplitServiceCancelSplitProcedure, opts...),
		auditSplit:        connect.NewClient[api.AuditSplitRequest, api.AuditSplitResponse](httpClient, baseURL+SplitServiceAuditSplitProcedure, opts...),
		watchSplits:       connect.NewClient[api.WatchSplitsRequest, api.SplitEvent](httpClient, baseURL+SplitServiceWatchSplitsProcedure, opts...),
	}
}

type splitServiceClient struct {
	createSplit       *connect.Client[api.CreateSplitRequest, api.CreateSplitResponse]
	getSplit          *connect.Client[api.GetSplitRequest, api.GetSplitResponse]
	listSplits        *connect.Client[api.ListSplitsRequest, api.ListSplitsResponse]
	getHistory        *connect.Client[api.GetHistoryRequest, api.GetHistoryResponse]
	getPaymentHistory *connect.Client[api.GetPaymentHistoryRequest, api.GetPaymentHistoryResponse]
	cancelSplit       *connect.Client[api.CancelSplitRequest, api.CancelSplitResponse]
	auditSplit        *connect.Client[api.AuditSplitRequest, api.AuditSplitResponse]
	watchSplits       *connect.Client[api.WatchSplitsRequest, api.SplitEvent]
}

func (c *splitServiceClient) CreateSplit(ctx context.Context, req *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error) {
	return c.createSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	return c.getSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	return c.listSplits.CallUnary(ctx, req)
}

func (c *splitServiceClient) GetHistory(ctx context.Context, req *connect.Request[api.GetHistoryRequest]) (*connect.Response[api.GetHistoryResponse], error) {
	return c.getHistory.CallUnary(ctx, req)
}

func (c *splitServiceClient) GetPaymentHistory(ctx context.Context, req *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error) {
	return c.getPaymentHistory.CallUnary(ctx, req)
}

func (c *splitServiceClient) CancelSplit(ctx context.Context, req *connect.Request[api.CancelSplitRequest]) (*connect.Response[api.CancelSplitResponse], error) {
	return c.cancelSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) AuditSplit(ctx context.Context, req *connect.Request[api.AuditSplitRequest]) (*connect.Response[api.AuditSplitResponse], error) {
	return c.auditSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) WatchSplits(ctx context.Context, req *connect.Request[api.WatchSplitsRequest]) (*connect.ServerStreamForClient[api.SplitEvent], error) {
	return c.watchSplits.CallServerStream(ctx, req)
}
