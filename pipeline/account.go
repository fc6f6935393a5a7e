package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Resolver reads the signer's account record. It never caches: every
// mutating build must start from the ledger's current sequence.
type Resolver struct {
	ledger  pulse.Ledger
	timeout time.Duration
}

// NewResolver creates a resolver over ledger. Each read is bounded by
// timeout, or DefaultCallTimeout when zero.
func NewResolver(ledger pulse.Ledger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Resolver{ledger: ledger, timeout: timeout}
}

// Resolve returns the current account record for addr. A malformed
// address is a *pulse.FormatError and never reaches the ledger; an
// unfunded account is a *pulse.NetworkError with NotFound set.
func (r *Resolver) Resolve(ctx context.Context, addr types.Address) (types.Account, error) {
	if err := addr.Validate(); err != nil {
		return types.Account{}, &pulse.FormatError{Field: "address", Value: string(addr), Reason: err.Error()}
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	acct, err := r.ledger.Account(cctx, addr)
	if err != nil {
		return types.Account{}, callError(ctx, cctx, "account", r.timeout, err)
	}
	if acct.Address == "" {
		acct.Address = addr
	}
	return acct, nil
}

// callError maps the error of a ledger call made under call, a bounded
// child of ctx. Expiry of the bound alone is a NetworkError; the
// caller's own cancellation passes through networkError unchanged.
func callError(ctx, call context.Context, op string, timeout time.Duration, err error) error {
	if expired(ctx, call) {
		return &pulse.NetworkError{Op: op, Err: fmt.Errorf("no answer within %s: %w", timeout, context.DeadlineExceeded)}
	}
	return networkError(op, err)
}

// expired reports whether call hit its own deadline while ctx is still
// live.
func expired(ctx, call context.Context) bool {
	return ctx.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded)
}

// networkError wraps a transport error, leaving typed pulse errors as
// they are.
func networkError(op string, err error) error {
	if _, ok := pulse.IsNetwork(err); ok {
		return err
	}
	if errors.Is(err, types.ErrAccountNotFound) {
		return &pulse.NetworkError{Op: op, NotFound: true, Err: err}
	}
	if pulse.Category(err) != pulse.CategoryUnknown {
		return err
	}
	return &pulse.NetworkError{Op: op, Err: err}
}
