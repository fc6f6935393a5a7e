// Package local provides an in-process ledger connection.
//
// For tools and tests that embed a ledger (typically the devnet) in the
// same binary, this adapter adds what a remote transport would give:
// closed-connection enforcement, a per-call time limit, and conversion
// of ledger panics into errors. No serialization is involved.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Compile-time interface check.
var _ pulse.Connection = (*Connection)(nil)

// ErrClosed is returned by calls on a closed connection.
var ErrClosed = errors.New("local: connection closed")

// Connection wraps an in-process Ledger.
type Connection struct {
	ledger      pulse.Ledger
	callTimeout time.Duration
	closed      atomic.Bool
}

// Option configures a Connection.
type Option func(*Connection)

// WithCallTimeout bounds every ledger call. Zero means no bound beyond
// the caller's context.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Connection) { c.callTimeout = d }
}

// NewConnection creates an in-process connection to ledger.
func NewConnection(ledger pulse.Ledger, opts ...Option) *Connection {
	c := &Connection{ledger: ledger}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Connection) Account(ctx context.Context, addr types.Address) (types.Account, error) {
	return call(c, ctx, "account", func(ctx context.Context) (types.Account, error) {
		return c.ledger.Account(ctx, addr)
	})
}

func (c *Connection) Simulate(ctx context.Context, env types.Envelope) (types.Simulation, error) {
	return call(c, ctx, "simulate", func(ctx context.Context) (types.Simulation, error) {
		return c.ledger.Simulate(ctx, env)
	})
}

func (c *Connection) Send(ctx context.Context, env types.SignedEnvelope) (types.SendResult, error) {
	return call(c, ctx, "send", func(ctx context.Context) (types.SendResult, error) {
		return c.ledger.Send(ctx, env)
	})
}

func (c *Connection) Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error) {
	return call(c, ctx, "transaction", func(ctx context.Context) (types.TxRecord, error) {
		return c.ledger.Transaction(ctx, hash)
	})
}

// Close marks the connection closed. The wrapped ledger is not closed.
func (c *Connection) Close() error {
	c.closed.Store(true)
	return nil
}

// Ledger returns the wrapped ledger for advanced use cases.
func (c *Connection) Ledger() pulse.Ledger {
	return c.ledger
}

func call[T any](c *Connection, ctx context.Context, op string, fn func(context.Context) (T, error)) (out T, err error) {
	if c.closed.Load() {
		return out, &pulse.NetworkError{Op: op, Err: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return out, &pulse.NetworkError{Op: op, Err: err}
	}
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, &pulse.NetworkError{Op: op, Err: fmt.Errorf("local: ledger panicked: %v", r)}
		}
	}()

	out, err = fn(ctx)
	if err == nil && ctx.Err() != nil {
		// The ledger ignored the context; its late answer is dropped.
		var zero T
		return zero, &pulse.NetworkError{Op: op, Err: ctx.Err()}
	}
	return out, err
}
