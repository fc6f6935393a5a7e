package pulsetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/client"
	"github.com/blockberries/pulse/devnet"
	"github.com/blockberries/pulse/pipeline"
	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

// Epoch is the harness clock's starting time.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock shared by a harness, its devnet
// and its clients.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock reading t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Harness wires an in-memory devnet, a keyring and clients together
// so that application code can be tested against real contract rules.
// The devnet closes ledgers automatically while transactions are
// polled.
type Harness struct {
	t *testing.T

	Clock  *Clock
	Devnet *devnet.Devnet
	Keys   *devnet.Keyring
	// Reader is the funded read account used for queries.
	Reader types.Address
	// Token is the betting token passed to Initialize.
	Token types.Address
	// Admin is the signer that initializes the contract.
	Admin *devnet.KeySigner
}

// NewHarness creates a harness. opts are applied to the devnet after
// the harness clock and auto-close.
func NewHarness(t *testing.T, opts ...devnet.Option) *Harness {
	t.Helper()
	clock := NewClock(Epoch)
	net := devnet.New(append([]devnet.Option{
		devnet.WithClock(clock.Now),
		devnet.WithAutoClose(true),
	}, opts...)...)

	h := &Harness{t: t, Clock: clock, Devnet: net, Keys: devnet.NewKeyring()}
	h.Reader = h.Account("reader", 0).addr
	h.Admin = h.Account("admin", 0).KeySigner

	tok, err := types.ContractAddress(make([]byte, 32))
	if err != nil {
		t.Fatalf("token address: %v", err)
	}
	h.Token = tok
	return h
}

// User is a funded devnet account with its signer.
type User struct {
	*devnet.KeySigner
	addr types.Address
}

// Addr returns the user's address.
func (u User) Addr() types.Address { return u.addr }

// Account derives the named account, funds it with tokens of the
// betting token and returns it with its signer.
func (h *Harness) Account(name string, tokens int64) User {
	h.t.Helper()
	addr, err := h.Keys.Derive(name)
	if err != nil {
		h.t.Fatalf("derive %q: %v", name, err)
	}
	if _, err := h.Devnet.Fund(addr, tokens); err != nil {
		h.t.Fatalf("fund %q: %v", name, err)
	}
	s, ok := h.Keys.Signer(addr)
	if !ok {
		h.t.Fatalf("no key for %q", name)
	}
	return User{KeySigner: s, addr: addr}
}

// Config returns a client configuration for the harness devnet with
// fast polling.
func (h *Harness) Config() client.Config {
	return client.Config{Config: pipeline.Config{
		Contract:          h.Devnet.Contract(),
		NetworkPassphrase: h.Devnet.Passphrase(),
		PollInterval:      time.Millisecond,
		FinalityDeadline:  2 * time.Second,
		ReadAccount:       h.Reader,
	}}
}

// Client returns a client for signer over the devnet. signer may be
// nil for a read-only client.
func (h *Harness) Client(signer pulse.Signer, opts ...client.Option) *client.Client {
	h.t.Helper()
	return h.ClientWith(h.Config(), h.Devnet, signer, opts...)
}

// ClientWith returns a client with an explicit configuration and
// ledger, e.g. a mock wrapping the devnet.
func (h *Harness) ClientWith(cfg client.Config, ledger pulse.Ledger, signer pulse.Signer, opts ...client.Option) *client.Client {
	h.t.Helper()
	c, err := client.New(cfg, ledger, signer, append([]client.Option{client.WithClock(h.Clock.Now)}, opts...)...)
	if err != nil {
		h.t.Fatalf("client.New: %v", err)
	}
	return c
}

// Initialize initializes the contract with the harness admin and
// token.
func (h *Harness) Initialize() {
	h.t.Helper()
	if _, err := h.Client(h.Admin).Initialize(context.Background(), h.Token.String()); err != nil {
		h.t.Fatalf("Initialize: %v", err)
	}
}

// CreateRound opens round id for d, committed to seed.
func (h *Harness) CreateRound(id uint32, d time.Duration, seed round.Digest) {
	h.t.Helper()
	_, err := h.Client(h.Admin).CreateRound(context.Background(), id, h.Clock.Now().Add(d), Commit(seed))
	if err != nil {
		h.t.Fatalf("CreateRound(%d): %v", id, err)
	}
}

// FinalizeRound reveals seed for round id.
func (h *Harness) FinalizeRound(id uint32, seed round.Digest) {
	h.t.Helper()
	if _, err := h.Client(h.Admin).FinalizeRound(context.Background(), id, seed.String()); err != nil {
		h.t.Fatalf("FinalizeRound(%d): %v", id, err)
	}
}

// Seed returns a seed with every byte set to b.
func Seed(b byte) round.Digest {
	var d round.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

// Commit returns the hex SHA-256 commitment to seed.
func Commit(seed round.Digest) string {
	return round.CommitmentOf(seed).String()
}
