// Package round holds the client-side view of a betting round and the
// pure functions derived from it: status, payout share estimates and
// commit-reveal digest format checks.
//
// Nothing here talks to the ledger. Records arrive already decoded by
// package contract, and every function is deterministic in its inputs.
package round

import (
	"fmt"
	"math/big"
	"time"

	"github.com/blockberries/pulse"
)

const (
	// NumBins is the fixed number of outcome bins per round.
	NumBins = 5

	// NoWinner is the ledger's winning-bin sentinel for a round that
	// has not been finalized. It is never a valid bin index.
	NoWinner uint32 = 99

	// SnipingWindow is how long before EndTime the contract stops
	// accepting bets.
	SnipingWindow = 180 * time.Second

	// MinBet is the smallest stake the contract accepts.
	MinBet = 1

	// FeePercent is the share of the pool the contract keeps on payout.
	FeePercent = 3
)

// Round is one betting epoch as last read from the ledger.
type Round struct {
	ID        uint32
	EndTime   time.Time
	TotalPool *big.Int
	BinTotals [NumBins]*big.Int
	Finalized bool
	// WinningBin is nil until the round is finalized.
	WinningBin *uint32
}

// Winner returns the winning bin and whether one has been decided.
func (r Round) Winner() (uint32, bool) {
	if r.WinningBin == nil {
		return 0, false
	}
	return *r.WinningBin, true
}

// Sum returns the sum of the bin totals. Nil entries count as zero.
func (r Round) Sum() *big.Int {
	return sumBins(r.BinTotals)
}

// Validate checks the read-time invariants of a decoded record. It
// never repairs a record: any violation is a *pulse.DecodeInvariantError.
func (r Round) Validate() error {
	if r.ID == 0 {
		return invariant(r.ID, "round id must be positive")
	}
	if r.TotalPool == nil {
		return invariant(r.ID, "total pool missing")
	}
	if r.TotalPool.Sign() < 0 {
		return invariant(r.ID, fmt.Sprintf("negative total pool %s", r.TotalPool))
	}
	for i, b := range r.BinTotals {
		if b == nil {
			return invariant(r.ID, fmt.Sprintf("bin %d total missing", i))
		}
		if b.Sign() < 0 {
			return invariant(r.ID, fmt.Sprintf("negative bin %d total %s", i, b))
		}
	}
	if sum := r.Sum(); sum.Cmp(r.TotalPool) != 0 {
		return invariant(r.ID, fmt.Sprintf("bin totals sum to %s, total pool is %s", sum, r.TotalPool))
	}
	switch {
	case r.Finalized && r.WinningBin == nil:
		return invariant(r.ID, "finalized without a winning bin")
	case !r.Finalized && r.WinningBin != nil:
		return invariant(r.ID, fmt.Sprintf("winning bin %d set before finalization", *r.WinningBin))
	case r.WinningBin != nil && *r.WinningBin >= NumBins:
		return invariant(r.ID, fmt.Sprintf("winning bin %d out of range", *r.WinningBin))
	}
	return nil
}

// Clone returns a deep copy.
func (r Round) Clone() Round {
	out := r
	if r.TotalPool != nil {
		out.TotalPool = new(big.Int).Set(r.TotalPool)
	}
	for i, b := range r.BinTotals {
		if b != nil {
			out.BinTotals[i] = new(big.Int).Set(b)
		}
	}
	if r.WinningBin != nil {
		w := *r.WinningBin
		out.WinningBin = &w
	}
	return out
}

// Placeholder returns an empty OPEN round ending one hour after now.
// It stands in for an unreadable round only in development mode and
// must never be returned on a production path.
func Placeholder(id uint32, now time.Time) Round {
	r := Round{
		ID:        id,
		EndTime:   now.Add(time.Hour).Truncate(time.Second),
		TotalPool: new(big.Int),
	}
	for i := range r.BinTotals {
		r.BinTotals[i] = new(big.Int)
	}
	return r
}

func sumBins(bins [NumBins]*big.Int) *big.Int {
	sum := new(big.Int)
	for _, b := range bins {
		if b != nil {
			sum.Add(sum, b)
		}
	}
	return sum
}

func invariant(id uint32, detail string) error {
	return &pulse.DecodeInvariantError{What: fmt.Sprintf("round %d", id), Detail: detail}
}
