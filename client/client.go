// Package client is the application-facing API of pulse: one method
// per contract operation, with the format, range and betting-window
// checks that can be done before touching the network.
//
// A Client holds only immutable configuration. The wallet agent is
// supplied at construction and may be nil for read-only use.
package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/metrics"
	"github.com/blockberries/pulse/pipeline"
	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

// maxParallelReads bounds GetRounds fan-out.
const maxParallelReads = 8

// Config is the client configuration.
type Config struct {
	pipeline.Config

	// DevMode substitutes a placeholder OPEN round when the ledger has
	// no record for a requested id. Never enable it against a real
	// network.
	DevMode bool
}

// Client runs contract operations through a pipeline.
type Client struct {
	cfg     Config
	pipe    *pipeline.Pipeline
	signer  pulse.Signer
	tracker *round.Tracker
	log     *zap.Logger
	metrics *metrics.Pipeline
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock sets the clock used for envelope validity windows and
// round status.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client over ledger. signer may be nil; mutating calls
// then fail with *pulse.SigningError.
func New(cfg Config, ledger pulse.Ledger, signer pulse.Signer, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, signer: signer, tracker: round.NewTracker(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("component", "client"))

	pipe, err := pipeline.New(ledger, cfg.Config,
		pipeline.WithLogger(c.log),
		pipeline.WithMetrics(c.metrics),
		pipeline.WithClock(c.now),
	)
	if err != nil {
		return nil, err
	}
	c.pipe = pipe
	c.cfg.Config = pipe.Config()
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Pipeline returns the underlying pipeline.
func (c *Client) Pipeline() *pipeline.Pipeline { return c.pipe }

// Address returns the connected signer's address.
func (c *Client) Address(ctx context.Context) (types.Address, error) {
	if c.signer == nil {
		return "", &pulse.SigningError{Reason: "no signer connected"}
	}
	addr, err := c.signer.Address(ctx)
	if err != nil {
		if _, ok := pulse.IsSigning(err); ok {
			return "", err
		}
		return "", &pulse.SigningError{Reason: "signer unavailable", Err: err}
	}
	return addr, nil
}

func (c *Client) execute(ctx context.Context, call contract.Call) (pipeline.Outcome, error) {
	return c.pipe.Execute(ctx, pipeline.Request{Signer: c.signer, Call: call})
}

// Initialize sets the signer as contract admin and token as the betting
// token. It succeeds once per contract.
func (c *Client) Initialize(ctx context.Context, token string) (pipeline.Outcome, error) {
	tok, err := parseAddress("token", token)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	admin, err := c.Address(ctx)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	call, err := contract.Initialize(admin, tok)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return c.execute(ctx, call)
}

// CreateRound opens round id, closing at endTime, committed to the
// SHA-256 digest commitHex. The digest format is checked before any
// network call; its relation to the later seed is the ledger's concern.
func (c *Client) CreateRound(ctx context.Context, id uint32, endTime time.Time, commitHex string) (pipeline.Outcome, error) {
	commit, err := round.ParseDigest(commitHex)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if id == 0 {
		return pipeline.Outcome{}, &pulse.ValidationError{Field: "round id", Reason: "must be positive"}
	}
	if !endTime.After(c.now()) {
		return pipeline.Outcome{}, &pulse.ValidationError{Field: "end time", Reason: "must be in the future"}
	}
	admin, err := c.Address(ctx)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	call, err := contract.CreateRound(admin, id, types.LedgerSeconds(endTime), commit)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return c.execute(ctx, call)
}

// PlaceBet stakes amount on bin of round roundID for the signer. The
// round is read first: a missing round or one past its betting cutoff
// by the client's clock fails with *pulse.ValidationError without
// signing. The ledger remains authoritative for the cutoff.
func (c *Client) PlaceBet(ctx context.Context, roundID, bin uint32, amount *big.Int) (pipeline.Outcome, error) {
	if err := checkBet(bin, amount); err != nil {
		return pipeline.Outcome{}, err
	}
	user, err := c.Address(ctx)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	call, err := contract.PlaceBet(user, roundID, bin, amount)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	r, err := c.GetRound(ctx, roundID)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if r == nil {
		return pipeline.Outcome{}, &pulse.ValidationError{Field: "round", Reason: fmt.Sprintf("round %d does not exist", roundID)}
	}
	if now := c.now(); !round.BettingOpen(*r, now) {
		return pipeline.Outcome{}, &pulse.ValidationError{
			Field:  "round",
			Reason: fmt.Sprintf("%s: round %d is %s", contract.ErrCodeBettingClosed, roundID, round.DeriveStatus(*r, now)),
		}
	}
	return c.execute(ctx, call)
}

// FinalizeRound reveals seedHex for round roundID. The seed format is
// checked before any network call.
func (c *Client) FinalizeRound(ctx context.Context, roundID uint32, seedHex string) (pipeline.Outcome, error) {
	seed, err := round.ParseSeed(seedHex)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	call, err := contract.FinalizeRound(roundID, seed)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return c.execute(ctx, call)
}

// ClaimResult is the outcome of a claim.
type ClaimResult struct {
	pipeline.Outcome
	// Payout is the amount paid, or nil when the ledger reported none.
	Payout *big.Int
}

// Claim withdraws user's winnings from round roundID. user is checked
// for address format before any network call; the signer must be user.
func (c *Client) Claim(ctx context.Context, user string, roundID uint32) (ClaimResult, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return ClaimResult{}, err
	}
	if !addr.IsAccount() {
		return ClaimResult{}, &pulse.FormatError{Field: "user", Value: user, Reason: "not an account address"}
	}
	call, err := contract.Claim(addr, roundID)
	if err != nil {
		return ClaimResult{}, err
	}
	out, err := c.execute(ctx, call)
	if err != nil {
		return ClaimResult{Outcome: out}, err
	}
	payout, err := contract.DecodeClaim(out.ReturnValue)
	if err != nil {
		return ClaimResult{Outcome: out}, err
	}
	return ClaimResult{Outcome: out, Payout: payout}, nil
}

// GetRound reads round id. A round that does not exist is nil, unless
// DevMode substitutes a placeholder. Every record read is checked
// against the last one seen for the same id.
func (c *Client) GetRound(ctx context.Context, id uint32) (*round.Round, error) {
	v, err := c.pipe.Query(ctx, contract.GetRound(id))
	if err != nil {
		return nil, err
	}
	r, err := contract.DecodeRound(v)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if r == nil {
		if !c.cfg.DevMode {
			return nil, nil
		}
		p := round.Placeholder(id, now)
		c.log.Warn("round not found, using dev-mode placeholder", zap.Uint32("round", id))
		return &p, nil
	}
	if _, err := c.tracker.Observe(*r, now); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRounds reads several rounds in parallel. The result is in ids
// order; missing rounds are nil entries.
func (c *Client) GetRounds(ctx context.Context, ids ...uint32) ([]*round.Round, error) {
	out := make([]*round.Round, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, id := range ids {
		g.Go(func() error {
			r, err := c.GetRound(gctx, id)
			if err != nil {
				return fmt.Errorf("round %d: %w", id, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RoundStatus derives the status of round id from a fresh read.
func (c *Client) RoundStatus(ctx context.Context, id uint32) (round.Status, error) {
	r, err := c.GetRound(ctx, id)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", &pulse.ValidationError{Field: "round", Reason: fmt.Sprintf("round %d does not exist", id)}
	}
	return round.DeriveStatus(*r, c.now()), nil
}

// GetAdmin returns the contract admin, ok=false before initialization.
func (c *Client) GetAdmin(ctx context.Context) (types.Address, bool, error) {
	v, err := c.pipe.Query(ctx, contract.GetAdmin())
	if err != nil {
		return "", false, err
	}
	return contract.DecodeOptionalAddress(contract.FnGetAdmin, v)
}

// GetToken returns the betting token, ok=false before initialization.
func (c *Client) GetToken(ctx context.Context) (types.Address, bool, error) {
	v, err := c.pipe.Query(ctx, contract.GetToken())
	if err != nil {
		return "", false, err
	}
	return contract.DecodeOptionalAddress(contract.FnGetToken, v)
}

// GetUserBet returns user's stake on bin of round roundID.
func (c *Client) GetUserBet(ctx context.Context, roundID, bin uint32, user string) (*big.Int, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return nil, err
	}
	if bin >= round.NumBins {
		return nil, binError(bin)
	}
	call, err := contract.GetUserBet(roundID, bin, addr)
	if err != nil {
		return nil, err
	}
	v, err := c.pipe.Query(ctx, call)
	if err != nil {
		return nil, err
	}
	return contract.DecodeI128(contract.FnGetUserBet, v)
}

// HasClaimed reports whether user already claimed round roundID.
func (c *Client) HasClaimed(ctx context.Context, roundID uint32, user string) (bool, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return false, err
	}
	call, err := contract.HasClaimed(roundID, addr)
	if err != nil {
		return false, err
	}
	v, err := c.pipe.Query(ctx, call)
	if err != nil {
		return false, err
	}
	return contract.DecodeBool(contract.FnHasClaimed, v)
}

// Estimate is an advisory projection for a prospective bet.
type Estimate struct {
	Round round.Round
	// Share is the stake's percentage of the whole pool after the bet.
	Share decimal.Decimal
	// Payout is what the stake would pay if its bin won with no
	// further bets.
	Payout      *big.Int
	Status      round.Status
	BettingOpen bool
}

// EstimateBet projects a bet of stake on bin against the current state
// of round roundID. Invalid stakes and bins fail before any network
// call.
func (c *Client) EstimateBet(ctx context.Context, roundID, bin uint32, stake *big.Int) (Estimate, error) {
	if err := checkBet(bin, stake); err != nil {
		return Estimate{}, err
	}
	r, err := c.GetRound(ctx, roundID)
	if err != nil {
		return Estimate{}, err
	}
	if r == nil {
		return Estimate{}, &pulse.ValidationError{Field: "round", Reason: fmt.Sprintf("round %d does not exist", roundID)}
	}
	share, err := round.EstimateShare(r.BinTotals, bin, stake)
	if err != nil {
		return Estimate{}, err
	}
	payout, err := round.ProjectPayout(*r, bin, stake)
	if err != nil {
		return Estimate{}, err
	}
	now := c.now()
	return Estimate{
		Round:       *r,
		Share:       share,
		Payout:      payout,
		Status:      round.DeriveStatus(*r, now),
		BettingOpen: round.BettingOpen(*r, now),
	}, nil
}

// TransactionStatus returns the ledger's current record for a
// transaction hash in hex, e.g. one whose wait timed out.
func (c *Client) TransactionStatus(ctx context.Context, hashHex string) (types.TxRecord, error) {
	h, err := types.ParseHash(hashHex)
	if err != nil {
		return types.TxRecord{}, &pulse.FormatError{Field: "transaction hash", Value: hashHex, Reason: err.Error()}
	}
	return c.pipe.Transaction(ctx, h)
}

// AwaitTransaction resumes polling a submitted transaction.
func (c *Client) AwaitTransaction(ctx context.Context, hashHex string, deadline time.Duration) (pipeline.Outcome, error) {
	h, err := types.ParseHash(hashHex)
	if err != nil {
		return pipeline.Outcome{}, &pulse.FormatError{Field: "transaction hash", Value: hashHex, Reason: err.Error()}
	}
	return c.pipe.Await(ctx, h, deadline)
}

// SessionStore loads a previously connected address.
type SessionStore interface {
	Load() (types.Address, bool, error)
}

// Resume loads the last connected address from store and re-validates
// it with a live account read. ok is false when nothing was stored.
func (c *Client) Resume(ctx context.Context, store SessionStore) (acct types.Account, ok bool, err error) {
	addr, ok, err := store.Load()
	if err != nil || !ok {
		return types.Account{}, false, err
	}
	acct, err = c.pipe.Account(ctx, addr)
	if err != nil {
		return types.Account{}, true, err
	}
	return acct, true, nil
}

func parseAddress(field, s string) (types.Address, error) {
	addr, err := types.ParseAddress(s)
	if err != nil {
		return "", &pulse.FormatError{Field: field, Value: s, Reason: err.Error()}
	}
	return addr, nil
}

func checkBet(bin uint32, amount *big.Int) error {
	if amount == nil || amount.Cmp(big.NewInt(round.MinBet)) < 0 {
		return &pulse.ValidationError{Field: "amount", Reason: fmt.Sprintf("must be at least %d", round.MinBet)}
	}
	if bin >= round.NumBins {
		return binError(bin)
	}
	return nil
}

func binError(bin uint32) error {
	return &pulse.ValidationError{Field: "bin", Reason: fmt.Sprintf("%d is outside [0,%d)", bin, round.NumBins)}
}
