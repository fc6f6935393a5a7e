package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/metrics"
	"github.com/blockberries/pulse/types"
)

// PollState is a state of a finality poll.
type PollState uint32

const (
	// PollSubmitted: the hash is known, no status query issued yet.
	PollSubmitted PollState = iota
	// PollPolling: status queries are in progress.
	PollPolling
	// PollFinalized: the ledger reported SUCCESS or FAILED.
	PollFinalized
	// PollTimedOut: the deadline passed without a terminal status. The
	// transaction's outcome is unknown.
	PollTimedOut
	// PollCancelled: the caller stopped polling. The transaction is
	// unaffected.
	PollCancelled
)

func (s PollState) String() string {
	switch s {
	case PollSubmitted:
		return "Submitted"
	case PollPolling:
		return "Polling"
	case PollFinalized:
		return "Finalized"
	case PollTimedOut:
		return "TimedOut"
	case PollCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Terminal reports whether no further transition is possible.
func (s PollState) Terminal() bool { return s >= PollFinalized }

// Outcome is the terminal result of a submitted transaction.
type Outcome struct {
	Hash   types.Hash
	Status types.TxStatus
	// ReturnValue is the decoded return value on SUCCESS.
	ReturnValue types.Value
	Ledger      uint32
	Diagnostics []types.Diagnostic
}

// Poller waits for submitted transactions to reach finality.
type Poller struct {
	ledger   pulse.Ledger
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Pipeline
}

// NewPoller creates a poller querying ledger every interval. A nil log
// discards output; nil metrics record nothing.
func NewPoller(ledger pulse.Ledger, interval time.Duration, log *zap.Logger, m *metrics.Pipeline) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{ledger: ledger, interval: interval, log: log, metrics: m}
}

// Poll tracks one transaction's progress to finality.
type Poll struct {
	p     *Poller
	hash  types.Hash
	state atomic.Uint32
}

// Start returns a poll for hash in the Submitted state.
func (p *Poller) Start(hash types.Hash) *Poll {
	return &Poll{p: p, hash: hash}
}

// Await polls hash until it is final, the deadline passes or ctx is
// cancelled.
func (p *Poller) Await(ctx context.Context, hash types.Hash, deadline time.Duration) (Outcome, error) {
	return p.Start(hash).Wait(ctx, deadline)
}

// State returns the current state.
func (w *Poll) State() PollState { return PollState(w.state.Load()) }

// Hash returns the polled transaction hash.
func (w *Poll) Hash() types.Hash { return w.hash }

func (w *Poll) transition(from, to PollState) {
	if !w.state.CompareAndSwap(uint32(from), uint32(to)) {
		panic(fmt.Sprintf("pulse: poll %s moved to %s from %s (expected %s)", w.hash, to, w.State(), from))
	}
}

// Wait runs the poll. It queries once immediately and then every
// interval. PENDING, NOT_FOUND and transient query errors keep it
// polling. SUCCESS returns the outcome; FAILED returns the outcome and
// a *pulse.ContractError or *pulse.ExecutionFailedError; the deadline
// returns *pulse.FinalityTimeoutError. Cancelling ctx stops polling and
// returns ctx's error; nothing is rolled back.
//
// Wait may be called once per Poll.
func (w *Poll) Wait(ctx context.Context, deadline time.Duration) (Outcome, error) {
	if deadline <= 0 {
		return Outcome{Hash: w.hash}, &pulse.ValidationError{Field: "finality deadline", Reason: "must be positive"}
	}
	w.transition(PollSubmitted, PollPolling)

	log := w.p.log.With(zap.Stringer("hash", w.hash))
	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(w.p.interval)
	defer ticker.Stop()

	last := types.TxNotFound
	for attempt := 1; ; attempt++ {
		w.p.metrics.PollAttempt()
		rec, err := w.p.ledger.Transaction(dctx, w.hash)
		switch {
		case err != nil:
			if dctx.Err() == nil {
				log.Debug("status query failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			}
		case rec.Status.Terminal():
			w.transition(PollPolling, PollFinalized)
			w.p.metrics.Finality(time.Since(start))
			out := outcome(w.hash, rec)
			log.Debug("transaction final", zap.String("status", string(rec.Status)), zap.Int("attempts", attempt))
			if rec.Status == types.TxFailed {
				if rec.Hash.IsZero() {
					rec.Hash = w.hash
				}
				return out, contract.FailureError(rec)
			}
			return out, nil
		default:
			last = rec.Status
		}

		if ctx.Err() != nil {
			return w.cancelled(ctx)
		}
		select {
		case <-ctx.Done():
			return w.cancelled(ctx)
		case <-dctx.Done():
			if ctx.Err() != nil {
				return w.cancelled(ctx)
			}
			w.transition(PollPolling, PollTimedOut)
			waited := time.Since(start)
			log.Warn("transaction not final before deadline", zap.Duration("waited", waited), zap.String("last_status", string(last)))
			return Outcome{Hash: w.hash, Status: last}, &pulse.FinalityTimeoutError{Hash: w.hash, Waited: waited, LastStatus: last}
		case <-ticker.C:
		}
	}
}

func (w *Poll) cancelled(ctx context.Context) (Outcome, error) {
	w.transition(PollPolling, PollCancelled)
	return Outcome{Hash: w.hash}, fmt.Errorf("pulse: polling %s stopped: %w", w.hash, ctx.Err())
}

func outcome(hash types.Hash, rec types.TxRecord) Outcome {
	out := Outcome{
		Hash:        hash,
		Status:      rec.Status,
		ReturnValue: types.Void(),
		Ledger:      rec.Ledger,
		Diagnostics: rec.Diagnostics,
	}
	if rec.ReturnValue != nil {
		out.ReturnValue = *rec.ReturnValue
	}
	return out
}
