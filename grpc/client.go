package pulsegrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Compile-time interface check.
var _ pulse.Connection = (*Client)(nil)

// Client implements pulse.Connection for a remote ledger over gRPC
// using cramberry serialization.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote ledger.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, &pulse.NetworkError{Op: "dial", Err: fmt.Errorf("dial %s: %w", addr, err)}
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) Account(ctx context.Context, addr types.Address) (types.Account, error) {
	resp := new(types.Account)
	if err := c.cc.Invoke(ctx, fullMethod("Account"), &AccountRequest{Address: addr}, resp); err != nil {
		return types.Account{}, fromStatus("account", err)
	}
	return *resp, nil
}

func (c *Client) Simulate(ctx context.Context, env types.Envelope) (types.Simulation, error) {
	resp := new(types.Simulation)
	if err := c.cc.Invoke(ctx, fullMethod("Simulate"), &env, resp); err != nil {
		return types.Simulation{}, fromStatus("simulate", err)
	}
	return *resp, nil
}

func (c *Client) Send(ctx context.Context, env types.SignedEnvelope) (types.SendResult, error) {
	resp := new(types.SendResult)
	if err := c.cc.Invoke(ctx, fullMethod("Send"), &env, resp); err != nil {
		return types.SendResult{}, fromStatus("send", err)
	}
	return *resp, nil
}

func (c *Client) Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error) {
	resp := new(types.TxRecord)
	if err := c.cc.Invoke(ctx, fullMethod("Transaction"), &TransactionRequest{Hash: hash}, resp); err != nil {
		return types.TxRecord{}, fromStatus("transaction", err)
	}
	return *resp, nil
}

// fromStatus maps a gRPC error back to the ledger error model.
func fromStatus(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return &pulse.NetworkError{Op: op, NotFound: true, Err: fmt.Errorf("%w: %s", types.ErrAccountNotFound, status.Convert(err).Message())}
	}
	return &pulse.NetworkError{Op: op, Err: err}
}
