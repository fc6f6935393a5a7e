package pulsegrpc

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Compile-time interface check.
var _ LedgerServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a Ledger as a gRPC service. Domain types are
// serialized directly via cramberry.
type GRPCServer struct {
	ledger pulse.Ledger
}

// NewGRPCServer creates a gRPC server wrapping the given ledger.
func NewGRPCServer(ledger pulse.Ledger) *GRPCServer {
	return &GRPCServer{ledger: ledger}
}

// Register adds the ledger service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterLedgerServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

func (s *GRPCServer) Account(ctx context.Context, req *AccountRequest) (*types.Account, error) {
	acct, err := s.ledger.Account(ctx, req.Address)
	if err != nil {
		return nil, toStatus(err)
	}
	return &acct, nil
}

func (s *GRPCServer) Simulate(ctx context.Context, env *types.Envelope) (*types.Simulation, error) {
	sim, err := s.ledger.Simulate(ctx, *env)
	if err != nil {
		return nil, toStatus(err)
	}
	return &sim, nil
}

func (s *GRPCServer) Send(ctx context.Context, env *types.SignedEnvelope) (*types.SendResult, error) {
	res, err := s.ledger.Send(ctx, *env)
	if err != nil {
		return nil, toStatus(err)
	}
	return &res, nil
}

func (s *GRPCServer) Transaction(ctx context.Context, req *TransactionRequest) (*types.TxRecord, error) {
	rec, err := s.ledger.Transaction(ctx, req.Hash)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rec, nil
}

// toStatus maps ledger errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs every ledger RPC with its status code and
// latency.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK, codes.NotFound, codes.Canceled:
			log.Debug("rpc", fields...)
		default:
			log.Warn("rpc failed", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
