package pulsegrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/pulse/types"
)

const serviceName = "pulse.v1.LedgerService"

// LedgerServiceServer is the server-side interface for the ledger gRPC
// service.
type LedgerServiceServer interface {
	Account(context.Context, *AccountRequest) (*types.Account, error)
	Simulate(context.Context, *types.Envelope) (*types.Simulation, error)
	Send(context.Context, *types.SignedEnvelope) (*types.SendResult, error)
	Transaction(context.Context, *TransactionRequest) (*types.TxRecord, error)
}

// RegisterLedgerServiceServer registers the LedgerServiceServer on a
// gRPC server.
func RegisterLedgerServiceServer(s *grpc.Server, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerAccount(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(AccountRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Account(ctx, req.(*AccountRequest))
	}
	return intercept(ctx, srv, "Account", req, interceptor, h)
}

func handlerSimulate(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.Envelope)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Simulate(ctx, req.(*types.Envelope))
	}
	return intercept(ctx, srv, "Simulate", req, interceptor, h)
}

func handlerSend(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.SignedEnvelope)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Send(ctx, req.(*types.SignedEnvelope))
	}
	return intercept(ctx, srv, "Send", req, interceptor, h)
}

func handlerTransaction(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(TransactionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Transaction(ctx, req.(*TransactionRequest))
	}
	return intercept(ctx, srv, "Transaction", req, interceptor, h)
}

func intercept(ctx context.Context, srv any, method string, req any, interceptor grpc.UnaryServerInterceptor, h grpc.UnaryHandler) (any, error) {
	if interceptor == nil {
		return h(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
	return interceptor(ctx, req, info, h)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for the ledger.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Account", Handler: handlerAccount},
		{MethodName: "Simulate", Handler: handlerSimulate},
		{MethodName: "Send", Handler: handlerSend},
		{MethodName: "Transaction", Handler: handlerTransaction},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pulse/v1/ledger.cram",
}
