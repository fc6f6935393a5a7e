package client_test

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/client"
	"github.com/blockberries/pulse/devnet"
	"github.com/blockberries/pulse/pipeline"
	"github.com/blockberries/pulse/round"
	pulsetest "github.com/blockberries/pulse/testing"
	"github.com/blockberries/pulse/types"
)

var ctx = context.Background()

// Seed(0x01) selects bin 3.
var seed = pulsetest.Seed(0x01)

func openRound(t *testing.T) *pulsetest.Harness {
	t.Helper()
	h := pulsetest.NewHarness(t)
	h.Initialize()
	h.CreateRound(1, 10*time.Minute, seed)
	return h
}

func mockClient(t *testing.T, l *pulsetest.MockLedger, s pulse.Signer) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{Config: pipeline.Config{
		Contract:          "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4",
		NetworkPassphrase: "test",
		ReadAccount:       "GAAACAQDAQCQMBYIBEFAWDANBYHRAEISCMKBKFQXDAMRUGY4DUPB7JZX",
		PollInterval:      time.Millisecond,
	}}, l, s)
	require.NoError(t, err)
	return c
}

func TestPlaceBet_EmptyRound(t *testing.T) {
	h := openRound(t)
	alice := h.Account("alice", 1000)
	c := h.Client(alice)

	est, err := c.EstimateBet(ctx, 1, 0, big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, est.Share.Equal(decimal.NewFromInt(100)), "share = %s", est.Share)
	assert.Equal(t, round.StatusOpen, est.Status)
	assert.True(t, est.BettingOpen)
	assert.Equal(t, "100", est.Payout.String())

	out, err := c.PlaceBet(ctx, 1, 0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, types.TxSuccess, out.Status)

	r, err := c.GetRound(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, r)
	want := []string{"100", "0", "0", "0", "0"}
	for i, b := range r.BinTotals {
		assert.Equal(t, want[i], b.String(), "bin %d", i)
	}
	assert.Equal(t, "100", r.TotalPool.String())
	assert.Equal(t, "900", h.Devnet.TokenBalance(alice.Addr()).String())
}

func TestEstimateBet_ShareOfWholePool(t *testing.T) {
	h := openRound(t)
	alice := h.Account("alice", 1000)
	bob := h.Account("bob", 1000)
	_, err := h.Client(alice).PlaceBet(ctx, 1, 0, big.NewInt(300))
	require.NoError(t, err)

	// Bin 1 is empty, so the stake would hold all of its bin but a
	// quarter of the pool: 100 / (300 + 100).
	est, err := h.Client(bob).EstimateBet(ctx, 1, 1, big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, est.Share.Equal(decimal.NewFromInt(25)), "share = %s", est.Share)
	// 400 * 97 / 100 = 388 to the only bin 1 stake.
	assert.Equal(t, "388", est.Payout.String())
}

func TestFullRound(t *testing.T) {
	h := openRound(t)
	alice := h.Account("alice", 1000)
	bob := h.Account("bob", 1000)
	ca, cb := h.Client(alice), h.Client(bob)

	_, err := ca.PlaceBet(ctx, 1, 3, big.NewInt(100))
	require.NoError(t, err)
	_, err = cb.PlaceBet(ctx, 1, 0, big.NewInt(200))
	require.NoError(t, err)

	stake, err := ca.GetUserBet(ctx, 1, 3, alice.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, "100", stake.String())

	h.Clock.Advance(11 * time.Minute)
	status, err := ca.RoundStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, round.StatusClosed, status)

	h.FinalizeRound(1, seed)
	status, err = ca.RoundStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, round.StatusFinalized, status)

	res, err := ca.Claim(ctx, alice.Addr().String(), 1)
	require.NoError(t, err)
	require.NotNil(t, res.Payout)
	assert.Equal(t, "291", res.Payout.String())
	assert.Equal(t, "1191", h.Devnet.TokenBalance(alice.Addr()).String())

	claimed, err := ca.HasClaimed(ctx, 1, alice.Addr().String())
	require.NoError(t, err)
	assert.True(t, claimed)

	_, err = ca.Claim(ctx, alice.Addr().String(), 1)
	ce, ok := pulse.IsContract(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "already_claimed", ce.Code)

	_, err = cb.Claim(ctx, bob.Addr().String(), 1)
	ce, ok = pulse.IsContract(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "no_winning_bet", ce.Code)
}

func TestPlaceBet_ClosedByClientClock(t *testing.T) {
	h := openRound(t)
	alice := h.Account("alice", 1000)
	c := h.Client(alice)

	h.Clock.Advance(9 * time.Minute)
	_, err := c.PlaceBet(ctx, 1, 0, big.NewInt(100))
	ve, ok := pulse.IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, ve.Reason, "betting_closed")
	assert.Zero(t, alice.Signed.Load())
	assert.Equal(t, "1000", h.Devnet.TokenBalance(alice.Addr()).String())
}

func TestPlaceBet_MissingRound(t *testing.T) {
	h := pulsetest.NewHarness(t)
	h.Initialize()
	alice := h.Account("alice", 1000)

	_, err := h.Client(alice).PlaceBet(ctx, 7, 0, big.NewInt(100))
	_, ok := pulse.IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Zero(t, alice.Signed.Load())
}

func TestFormatChecksPrecedeNetwork(t *testing.T) {
	const user = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
	tests := []struct {
		name string
		run  func(c *client.Client) error
	}{
		{"short seed", func(c *client.Client) error {
			_, err := c.FinalizeRound(ctx, 1, strings.Repeat("a", 63))
			return err
		}},
		{"non-hex seed", func(c *client.Client) error {
			_, err := c.FinalizeRound(ctx, 1, strings.Repeat("g", 64))
			return err
		}},
		{"short commit", func(c *client.Client) error {
			_, err := c.CreateRound(ctx, 1, time.Now().Add(time.Hour), "abcd")
			return err
		}},
		{"claim address", func(c *client.Client) error {
			_, err := c.Claim(ctx, "GNOTANADDRESS", 1)
			return err
		}},
		{"contract as user", func(c *client.Client) error {
			_, err := c.Claim(ctx, "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4", 1)
			return err
		}},
		{"user bet address", func(c *client.Client) error {
			_, err := c.GetUserBet(ctx, 1, 0, "nope")
			return err
		}},
		{"transaction hash", func(c *client.Client) error {
			_, err := c.TransactionStatus(ctx, "xyz")
			return err
		}},
		{"initialize token", func(c *client.Client) error {
			_, err := c.Initialize(ctx, user+"X")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &pulsetest.MockLedger{}
			s := &pulsetest.MockSigner{Addr: user}
			err := tt.run(mockClient(t, l, s))
			_, ok := pulse.IsFormat(err)
			require.True(t, ok, "expected FormatError, got %v", err)
			assert.Zero(t, l.NetworkCalls())
			assert.Zero(t, s.SignCalls.Load())
		})
	}
}

func TestValidationChecksPrecedeNetwork(t *testing.T) {
	commit := pulsetest.Commit(seed)
	tests := []struct {
		name string
		run  func(c *client.Client) error
	}{
		{"zero amount", func(c *client.Client) error {
			_, err := c.PlaceBet(ctx, 1, 0, big.NewInt(0))
			return err
		}},
		{"nil amount", func(c *client.Client) error {
			_, err := c.EstimateBet(ctx, 1, 0, nil)
			return err
		}},
		{"bin out of range", func(c *client.Client) error {
			_, err := c.PlaceBet(ctx, 1, 5, big.NewInt(10))
			return err
		}},
		{"end time in past", func(c *client.Client) error {
			_, err := c.CreateRound(ctx, 1, time.Now().Add(-time.Minute), commit)
			return err
		}},
		{"zero round id", func(c *client.Client) error {
			_, err := c.CreateRound(ctx, 0, time.Now().Add(time.Hour), commit)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &pulsetest.MockLedger{}
			err := tt.run(mockClient(t, l, &pulsetest.MockSigner{}))
			_, ok := pulse.IsValidation(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Zero(t, l.NetworkCalls())
		})
	}
}

func TestStuckPendingTimesOut(t *testing.T) {
	h := pulsetest.NewHarness(t, devnet.WithAutoClose(false))
	cfg := h.Config()
	cfg.FinalityDeadline = 30 * time.Millisecond
	c := h.ClientWith(cfg, h.Devnet, h.Admin)

	_, err := c.Initialize(ctx, h.Token.String())
	te, ok := pulse.IsFinalityTimeout(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, types.TxPending, te.LastStatus)

	rec, err := c.TransactionStatus(ctx, te.Hash.String())
	require.NoError(t, err)
	assert.Equal(t, types.TxPending, rec.Status)

	h.Devnet.Close()
	out, err := c.AwaitTransaction(ctx, te.Hash.String(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.TxSuccess, out.Status)

	admin, ok, err := c.GetAdmin(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), h.Admin.Signed.Load())
	assert.NotEmpty(t, admin)
}

func TestGetRound_Missing(t *testing.T) {
	h := pulsetest.NewHarness(t)
	r, err := h.Client(nil).GetRound(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, r)

	cfg := h.Config()
	cfg.DevMode = true
	r, err = h.ClientWith(cfg, h.Devnet, nil).GetRound(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, uint32(42), r.ID)
	assert.Equal(t, round.StatusOpen, round.DeriveStatus(*r, h.Clock.Now()))
}

func TestGetRounds(t *testing.T) {
	h := openRound(t)
	h.CreateRound(2, time.Hour, seed)

	rs, err := h.Client(nil).GetRounds(ctx, 1, 2, 3)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	require.NotNil(t, rs[0])
	require.NotNil(t, rs[1])
	assert.Nil(t, rs[2])
	assert.Equal(t, uint32(1), rs[0].ID)
	assert.Equal(t, uint32(2), rs[1].ID)
}

func TestAdminAndToken(t *testing.T) {
	h := pulsetest.NewHarness(t)
	c := h.Client(nil)

	_, ok, err := c.GetAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	h.Initialize()
	admin, ok, err := c.GetAdmin(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	want, _ := h.Admin.Address(ctx)
	assert.Equal(t, want, admin)

	tok, ok, err := c.GetToken(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.Token, tok)

	_, err = h.Client(h.Admin).Initialize(ctx, h.Token.String())
	ce, ok := pulse.IsContract(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "already_initialized", ce.Code)
}

func TestReadOnlyClientCannotSign(t *testing.T) {
	h := pulsetest.NewHarness(t)
	_, err := h.Client(nil).Initialize(ctx, h.Token.String())
	_, ok := pulse.IsSigning(err)
	assert.True(t, ok, "got %v", err)
}

func TestSignerRejection(t *testing.T) {
	h := pulsetest.NewHarness(t)
	h.Admin.Reject(true)
	_, err := h.Client(h.Admin).Initialize(ctx, h.Token.String())
	se, ok := pulse.IsSigning(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, se.Rejected)

	_, ok, err = h.Client(nil).GetAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

type memStore struct {
	addr types.Address
}

func (m memStore) Load() (types.Address, bool, error) {
	return m.addr, m.addr != "", nil
}

func TestResume(t *testing.T) {
	h := pulsetest.NewHarness(t)
	alice := h.Account("alice", 0)
	c := h.Client(nil)

	acct, ok, err := c.Resume(ctx, memStore{addr: alice.Addr()})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice.Addr(), acct.Address)

	_, ok, err = c.Resume(ctx, memStore{})
	require.NoError(t, err)
	assert.False(t, ok)

	ghost, err := h.Keys.Derive("ghost")
	require.NoError(t, err)
	_, ok, err = c.Resume(ctx, memStore{addr: ghost})
	assert.True(t, ok)
	ne, isNet := pulse.IsNetwork(err)
	require.True(t, isNet, "got %v", err)
	assert.True(t, ne.NotFound)
}
