// Package pulsetest provides test utilities for code built on the
// pulse client, including configurable ledger and signer mocks, a
// harness wired to an in-memory devnet, and a ledger compliance suite.
package pulsetest

import (
	"context"
	"crypto/sha256"
	"sync"
	"sync/atomic"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Compile-time checks.
var (
	_ pulse.Ledger = (*MockLedger)(nil)
	_ pulse.Signer = (*MockSigner)(nil)
)

// MockLedger is a configurable mock ledger. All methods are
// configurable via function fields. Unconfigured methods return
// sensible defaults: every account exists, every simulation succeeds
// with a void result, every send is PENDING and every transaction is
// SUCCESS.
type MockLedger struct {
	mu sync.Mutex

	// Configurable handlers. If nil, defaults are used.
	AccountFn     func(context.Context, types.Address) (types.Account, error)
	SimulateFn    func(context.Context, types.Envelope) (types.Simulation, error)
	SendFn        func(context.Context, types.SignedEnvelope) (types.SendResult, error)
	TransactionFn func(context.Context, types.Hash) (types.TxRecord, error)

	// Call counters (atomic for concurrent access).
	AccountCalls     atomic.Int64
	SimulateCalls    atomic.Int64
	SendCalls        atomic.Int64
	TransactionCalls atomic.Int64

	sent []types.SignedEnvelope
}

// NetworkCalls returns the total number of ledger calls made.
func (m *MockLedger) NetworkCalls() int64 {
	return m.AccountCalls.Load() + m.SimulateCalls.Load() + m.SendCalls.Load() + m.TransactionCalls.Load()
}

// Sent returns the envelopes passed to Send, in order.
func (m *MockLedger) Sent() []types.SignedEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SignedEnvelope(nil), m.sent...)
}

func (m *MockLedger) Account(ctx context.Context, addr types.Address) (types.Account, error) {
	m.AccountCalls.Add(1)
	if m.AccountFn != nil {
		return m.AccountFn(ctx, addr)
	}
	return types.Account{Address: addr, Sequence: 1}, nil
}

func (m *MockLedger) Simulate(ctx context.Context, env types.Envelope) (types.Simulation, error) {
	m.SimulateCalls.Add(1)
	if m.SimulateFn != nil {
		return m.SimulateFn(ctx, env)
	}
	v := types.Void()
	return types.Simulation{Result: &v, MinResourceFee: 1000}, nil
}

func (m *MockLedger) Send(ctx context.Context, env types.SignedEnvelope) (types.SendResult, error) {
	m.SendCalls.Add(1)
	m.mu.Lock()
	m.sent = append(m.sent, env)
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, env)
	}
	return types.SendResult{Hash: HashOf(env), Status: types.SendPending}, nil
}

func (m *MockLedger) Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error) {
	m.TransactionCalls.Add(1)
	if m.TransactionFn != nil {
		return m.TransactionFn(ctx, hash)
	}
	v := types.Void()
	return types.TxRecord{Hash: hash, Status: types.TxSuccess, ReturnValue: &v, Ledger: 1}, nil
}

// HashOf returns a deterministic hash for a signed envelope.
func HashOf(env types.SignedEnvelope) types.Hash {
	data, err := types.EncodeSignedEnvelope(env)
	if err != nil {
		return types.Hash{}
	}
	return sha256.Sum256(data)
}

// MockSigner is a configurable wallet agent. By default it signs every
// envelope with a fixed marker signature for Addr.
type MockSigner struct {
	Addr types.Address

	AddressFn func(context.Context) (types.Address, error)
	SignFn    func(context.Context, []byte, string) ([]byte, error)

	AddressCalls atomic.Int64
	SignCalls    atomic.Int64
}

func (s *MockSigner) Address(ctx context.Context) (types.Address, error) {
	s.AddressCalls.Add(1)
	if s.AddressFn != nil {
		return s.AddressFn(ctx)
	}
	return s.Addr, nil
}

func (s *MockSigner) Sign(ctx context.Context, envelope []byte, networkID string) ([]byte, error) {
	s.SignCalls.Add(1)
	if s.SignFn != nil {
		return s.SignFn(ctx, envelope, networkID)
	}
	return SignWith(envelope, networkID, s.Addr, func(payload []byte) []byte { return payload })
}

// Rejecting returns a SignFn that declines every request the way a
// wallet whose user pressed "reject" does.
func Rejecting() func(context.Context, []byte, string) ([]byte, error) {
	return func(context.Context, []byte, string) ([]byte, error) {
		return nil, &pulse.SigningError{Reason: "user declined", Rejected: true}
	}
}

// SignWith decodes envelope, signs its payload with sign and returns
// the encoded signed envelope.
func SignWith(envelope []byte, networkID string, signer types.Address, sign func(payload []byte) []byte) ([]byte, error) {
	env, err := types.DecodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	payload, err := env.SigningPayload(networkID)
	if err != nil {
		return nil, err
	}
	return types.EncodeSignedEnvelope(types.SignedEnvelope{
		Envelope:   env,
		Signatures: []types.Signature{{Signer: signer, Data: sign(payload)}},
	})
}
