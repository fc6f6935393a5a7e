// Package pipeline runs contract calls through the ledger: resolve the
// signer's account, build, simulate, prepare, sign, submit and poll to
// finality. Read-only queries stop after simulation.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/metrics"
	"github.com/blockberries/pulse/types"
)

// Defaults applied to zero Config fields.
const (
	DefaultBaseFee          = 100
	DefaultTxTimeout        = 30 * time.Second
	DefaultPollInterval     = 2 * time.Second
	DefaultFinalityDeadline = 60 * time.Second
	DefaultCallTimeout      = 15 * time.Second
	// DefaultSignTimeout leaves the user time to review a wallet prompt.
	DefaultSignTimeout = 2 * time.Minute
)

// Config is the immutable pipeline configuration.
type Config struct {
	Contract          types.Address
	NetworkPassphrase string
	BaseFee           uint32
	// TxTimeout bounds the validity window of built envelopes.
	TxTimeout    time.Duration
	PollInterval time.Duration
	// FinalityDeadline bounds how long Execute polls after submission.
	FinalityDeadline time.Duration
	// ReadAccount is a funded account used as the source of read-only
	// simulations. Its sequence is never consumed.
	ReadAccount types.Address
	// CallTimeout bounds each ledger call: account reads, simulations,
	// submissions and status reads.
	CallTimeout time.Duration
	// SignTimeout bounds each request to the signer.
	SignTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseFee == 0 {
		c.BaseFee = DefaultBaseFee
	}
	if c.TxTimeout == 0 {
		c.TxTimeout = DefaultTxTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FinalityDeadline == 0 {
		c.FinalityDeadline = DefaultFinalityDeadline
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.SignTimeout == 0 {
		c.SignTimeout = DefaultSignTimeout
	}
	return c
}

// Request is one state-mutating contract call.
type Request struct {
	Signer pulse.Signer
	Call   contract.Call
	// Timeout overrides Config.TxTimeout for this envelope.
	Timeout time.Duration
	// Deadline overrides Config.FinalityDeadline.
	Deadline time.Duration
}

// Pipeline executes contract calls. It holds no per-call state and is
// safe for concurrent use; mutating calls for one signer are
// serialized.
type Pipeline struct {
	ledger   pulse.Ledger
	cfg      Config
	resolver *Resolver
	builder  Builder
	poller   *Poller
	seq      *Sequencer
	log      *zap.Logger
	metrics  *metrics.Pipeline
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock sets the clock used for validity windows.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithSequencer shares a sequencer between pipelines, so that two
// pipelines over the same ledger still serialize per signer.
func WithSequencer(s *Sequencer) Option {
	return func(p *Pipeline) { p.seq = s }
}

// New creates a pipeline over ledger.
func New(ledger pulse.Ledger, cfg Config, opts ...Option) (*Pipeline, error) {
	if ledger == nil {
		return nil, errors.New("pulse: pipeline needs a ledger")
	}
	cfg = cfg.withDefaults()
	if !cfg.Contract.IsContract() {
		return nil, &pulse.FormatError{Field: "contract id", Value: string(cfg.Contract), Reason: "not a contract address"}
	}
	if cfg.ReadAccount != "" && !cfg.ReadAccount.IsAccount() {
		return nil, &pulse.FormatError{Field: "read account", Value: string(cfg.ReadAccount), Reason: "not an account address"}
	}
	if cfg.TxTimeout < 0 || cfg.PollInterval < 0 || cfg.FinalityDeadline < 0 || cfg.CallTimeout < 0 || cfg.SignTimeout < 0 {
		return nil, &pulse.ValidationError{Field: "durations", Reason: "must not be negative"}
	}

	p := &Pipeline{ledger: ledger, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.seq == nil {
		p.seq = NewSequencer()
	}
	p.log = p.log.With(zap.String("component", "pipeline"))
	p.resolver = NewResolver(ledger, cfg.CallTimeout)
	p.builder = Builder{Contract: cfg.Contract, BaseFee: cfg.BaseFee, Timeout: cfg.TxTimeout, Now: p.now}
	p.poller = NewPoller(ledger, cfg.PollInterval, p.log, p.metrics)
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Execute runs one mutating call to finality.
func (p *Pipeline) Execute(ctx context.Context, req Request) (Outcome, error) {
	call := req.Call.Function
	log := p.log.With(zap.String("op", uuid.NewString()), zap.String("call", call))

	out, err := p.execute(ctx, log, req)
	result := metrics.ResultSuccess
	if err != nil {
		result = pulse.Category(err).String()
		log.Info("execution failed", zap.String("category", result), zap.Error(err))
	} else {
		log.Info("execution succeeded", zap.Stringer("hash", out.Hash), zap.Uint32("ledger", out.Ledger))
	}
	p.metrics.Execution(call, result)
	return out, err
}

func (p *Pipeline) execute(ctx context.Context, log *zap.Logger, req Request) (Outcome, error) {
	if req.Signer == nil {
		return Outcome{}, &pulse.SigningError{Reason: "no signer connected"}
	}
	if !req.Call.Mutating() {
		return Outcome{}, &pulse.ValidationError{Field: "call", Reason: fmt.Sprintf("%s is read-only; use Query", req.Call.Function)}
	}
	if _, err := contract.ParseArgs(req.Call.Function, req.Call.Args); err != nil {
		return Outcome{}, err
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.SignTimeout)
	addr, err := req.Signer.Address(actx)
	cancel()
	if err != nil {
		return Outcome{}, p.signerError(ctx, actx, "signer unavailable", err)
	}
	log = log.With(zap.Stringer("signer", addr))

	release, err := p.seq.Acquire(ctx, addr)
	if err != nil {
		return Outcome{}, fmt.Errorf("pulse: waiting for earlier %s transaction: %w", addr, err)
	}
	defer release()

	acct, err := p.resolver.Resolve(ctx, addr)
	if err != nil {
		return Outcome{}, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = p.cfg.TxTimeout
	}
	env, err := p.builder.BuildWithTimeout(acct, req.Call, timeout)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("built envelope", zap.Uint64("sequence", env.Sequence), zap.Uint32("fee", env.Fee))

	sim, err := p.simulate(ctx, env)
	if err != nil {
		return Outcome{}, err
	}
	prepared, err := Prepare(env, sim)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("prepared envelope", zap.Uint32("fee", prepared.Fee), zap.Int64("resource_fee", sim.MinResourceFee))

	signed, err := p.sign(ctx, req.Signer, prepared)
	if err != nil {
		return Outcome{}, err
	}

	sctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	res, err := p.ledger.Send(sctx, signed)
	cancel()
	if err != nil {
		return Outcome{}, callError(ctx, sctx, "send", p.cfg.CallTimeout, err)
	}
	if !res.Status.Accepted() {
		return Outcome{Hash: res.Hash}, &pulse.SubmissionError{Hash: res.Hash, Status: res.Status, Detail: res.ErrorResult}
	}
	log.Debug("submitted", zap.Stringer("hash", res.Hash))

	deadline := req.Deadline
	if deadline == 0 {
		deadline = p.cfg.FinalityDeadline
	}
	return p.poller.Await(ctx, res.Hash, deadline)
}

// Query simulates a call from the configured read account and returns
// its result. No signature, sequence or submission is involved.
func (p *Pipeline) Query(ctx context.Context, call contract.Call) (types.Value, error) {
	v, err := p.query(ctx, call)
	result := metrics.ResultSuccess
	if err != nil {
		result = pulse.Category(err).String()
	}
	p.metrics.Query(call.Function, result)
	return v, err
}

func (p *Pipeline) query(ctx context.Context, call contract.Call) (types.Value, error) {
	if p.cfg.ReadAccount == "" {
		return types.Value{}, &pulse.ValidationError{Field: "read account", Reason: "not configured"}
	}
	acct, err := p.resolver.Resolve(ctx, p.cfg.ReadAccount)
	if err != nil {
		return types.Value{}, err
	}
	env, err := p.builder.Build(acct, call)
	if err != nil {
		return types.Value{}, err
	}
	sim, err := p.simulate(ctx, env)
	if err != nil {
		return types.Value{}, err
	}
	if !sim.OK() {
		return types.Value{}, simulationError(call.Function, sim)
	}
	return *sim.Result, nil
}

// Transaction returns the ledger's current record for hash.
func (p *Pipeline) Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error) {
	tctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	rec, err := p.ledger.Transaction(tctx, hash)
	if err != nil {
		return types.TxRecord{}, callError(ctx, tctx, "transaction", p.cfg.CallTimeout, err)
	}
	if rec.Hash.IsZero() {
		rec.Hash = hash
	}
	return rec, nil
}

// Await polls an already submitted transaction, e.g. one whose earlier
// wait timed out.
func (p *Pipeline) Await(ctx context.Context, hash types.Hash, deadline time.Duration) (Outcome, error) {
	if deadline == 0 {
		deadline = p.cfg.FinalityDeadline
	}
	return p.poller.Await(ctx, hash, deadline)
}

// Account resolves addr against the ledger.
func (p *Pipeline) Account(ctx context.Context, addr types.Address) (types.Account, error) {
	return p.resolver.Resolve(ctx, addr)
}

func (p *Pipeline) simulate(ctx context.Context, env types.Envelope) (types.Simulation, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	sim, err := p.ledger.Simulate(sctx, env)
	if err != nil {
		return types.Simulation{}, callError(ctx, sctx, "simulate", p.cfg.CallTimeout, err)
	}
	if !sim.OK() {
		return sim, simulationError(env.Operation.Function, sim)
	}
	return sim, nil
}

func (p *Pipeline) sign(ctx context.Context, s pulse.Signer, prepared types.Envelope) (types.SignedEnvelope, error) {
	enc, err := types.EncodeEnvelope(prepared)
	if err != nil {
		return types.SignedEnvelope{}, err
	}
	sctx, cancel := context.WithTimeout(ctx, p.cfg.SignTimeout)
	defer cancel()
	raw, err := s.Sign(sctx, enc, p.cfg.NetworkPassphrase)
	if err != nil {
		return types.SignedEnvelope{}, p.signerError(ctx, sctx, "wallet did not sign", err)
	}
	signed, err := types.DecodeSignedEnvelope(raw)
	if err != nil {
		return types.SignedEnvelope{}, &pulse.SigningError{Reason: "malformed signed envelope", Err: err}
	}
	if len(signed.Signatures) == 0 {
		return types.SignedEnvelope{}, &pulse.SigningError{Reason: "signed envelope carries no signature"}
	}
	if !sameEnvelope(enc, signed.Envelope) {
		return types.SignedEnvelope{}, &pulse.SigningError{Reason: "wallet altered the envelope"}
	}
	return signed, nil
}

// sameEnvelope compares in decoded-then-encoded form so that encoder
// choices such as nil versus empty slices do not matter.
func sameEnvelope(enc []byte, env types.Envelope) bool {
	want, err := types.DecodeEnvelope(enc)
	if err != nil {
		return false
	}
	a, err := types.EncodeEnvelope(want)
	if err != nil {
		return false
	}
	b, err := types.EncodeEnvelope(env)
	return err == nil && bytes.Equal(a, b)
}

// signerError reports a signer call that outlived SignTimeout as a
// signer that did not answer. call is the bounded child of ctx.
func (p *Pipeline) signerError(ctx, call context.Context, reason string, err error) error {
	if expired(ctx, call) {
		return &pulse.SigningError{Reason: "signer did not answer", Err: fmt.Errorf("no answer within %s: %w", p.cfg.SignTimeout, context.DeadlineExceeded)}
	}
	return signingError(reason, err)
}

func signingError(reason string, err error) error {
	if _, ok := pulse.IsSigning(err); ok {
		return err
	}
	return &pulse.SigningError{Reason: reason, Err: err}
}
