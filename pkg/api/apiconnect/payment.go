package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/subodh038/paysplit/pkg/api"
)

const PaymentServiceName = "paysplit.v1.PaymentService"

const (
	PaymentServicePayProcedure           = "/paysplit.v1.PaymentService/Pay"
	PaymentServiceRecordPaymentProcedure = "/paysplit.v1.PaymentService/RecordPayment"
	PaymentServiceReleaseFundsProcedure  = "/paysplit.v1.PaymentService/ReleaseFunds"
)

// PaymentServiceHandler is implemented by the server.
type PaymentServiceHandler interface {
	Pay(context.Context, *connect.Request[api.PayRequest]) (*connect.Response[api.PayResponse], error)
	RecordPayment(context.Context, *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error)
	ReleaseFunds(context.Context, *connect.Request[api.ReleaseFundsRequest]) (*connect.Response[api.ReleaseFundsResponse], error)
}

// NewPaymentServiceHandler builds an HTTP handler from the service implementation.
func NewPaymentServiceHandler(svc PaymentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	pay := connect.NewUnaryHandler(PaymentServicePayProcedure, svc.Pay, opts...)
	recordPayment := connect.NewUnaryHandler(PaymentServiceRecordPaymentProcedure, svc.RecordPayment, opts...)
	releaseFunds := connect.NewUnaryHandler(PaymentServiceReleaseFundsProcedure, svc.ReleaseFunds, opts...)

	return "/" + PaymentServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PaymentServicePayProcedure:
			pay.ServeHTTP(w, r)
		case PaymentServiceRecordPaymentProcedure:
			recordPayment.ServeHTTP(w, r)
		case PaymentServiceReleaseFundsProcedure:
			releaseFunds.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// PaymentServiceClient is a client for paysplit.v1.PaymentService.
type PaymentServiceClient interface {
	Pay(context.Context, *connect.Request[api.PayRequest]) (*connect.Response[api.PayResponse], error)
	RecordPayment(context.Context, *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error)
	ReleaseFunds(context.Context, *connect.Request[api.ReleaseFundsRequest]) (*connect.Response[api.ReleaseFundsResponse], error)
}

// NewPaymentServiceClient constructs a client.
func NewPaymentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PaymentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &paymentServiceClient{
		pay:           connect.NewClient[api.PayRequest, api.PayResponse](httpClient, baseURL+PaymentServicePayProcedure, opts...),
		recordPayment: connect.NewClient[api.RecordPaymentRequest, api.RecordPaymentResponse](httpClient, baseURL+PaymentServiceRecordPaymentProcedure, opts...),
		releaseFunds:  connect.NewClient[api.ReleaseFundsRequest, api.ReleaseFundsResponse](httpClient, baseURL+PaymentServiceReleaseFundsProcedure, opts...),
	}
}

type paymentServiceClient struct {
	pay           *connect.Client[api.PayRequest, api.PayResponse]
	recordPayment *connect.Client[api.RecordPaymentRequest, api.RecordPaymentResponse]
	releaseFunds  *connect.Client[api.ReleaseFundsRequest, api.ReleaseFundsResponse]
}

func (c *paymentServiceClient) Pay(ctx context.Context, req *connect.Request[api.PayRequest]) (*connect.Response[api.PayResponse], error) {
	return c.pay.CallUnary(ctx, req)
}

func (c *paymentServiceClient) RecordPayment(ctx context.Context, req *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error) {
	return c.recordPayment.CallUnary(ctx, req)
}

func (c *paymentServiceClient) ReleaseFunds(ctx context.Context, req *connect.Request[api.ReleaseFundsRequest]) (*connect.Response[api.ReleaseFundsResponse], error) {
	return c.releaseFunds.CallUnary(ctx, req)
}
