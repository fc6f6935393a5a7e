package round

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/blockberries/pulse"
)

// Status is the derived lifecycle state of a round.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
	StatusFinalized Status = "FINALIZED"
)

func (s Status) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusClosed:
		return 1
	case StatusFinalized:
		return 2
	}
	return -1
}

// DeriveStatus computes a round's status from its finalized flag, its
// end time and now. The finalized flag wins regardless of time.
func DeriveStatus(r Round, now time.Time) Status {
	if r.Finalized {
		return StatusFinalized
	}
	if !now.Before(r.EndTime) {
		return StatusClosed
	}
	return StatusOpen
}

// BettingOpen reports whether the contract would still accept a bet at
// now: the round is open and outside the sniping window. The ledger
// clock is authoritative; this is an advisory pre-check.
func BettingOpen(r Round, now time.Time) bool {
	if DeriveStatus(r, now) != StatusOpen {
		return false
	}
	return now.Before(r.EndTime.Add(-SnipingWindow))
}

type observation struct {
	status  Status
	endTime time.Time
	pool    *big.Int
	winner  *uint32
}

// Tracker remembers the last status observed per round and reports
// reads that move a round backwards. It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	seen map[uint32]observation
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[uint32]observation)}
}

// Observe derives the status of r at now and checks it against earlier
// observations of the same round. A snapshot that regresses status,
// changes the end time or winning bin, or shrinks an open pool is a
// *pulse.DecodeInvariantError, and the earlier observation is kept.
func (t *Tracker) Observe(r Round, now time.Time) (Status, error) {
	status := DeriveStatus(r, now)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.seen[r.ID]
	if ok {
		if err := checkProgress(r, status, prev); err != nil {
			return status, err
		}
		// A later read may arrive with an earlier clock; keep the
		// furthest status reached.
		if status.rank() < prev.status.rank() {
			status = prev.status
		}
	}

	obs := observation{status: status, endTime: r.EndTime, winner: r.WinningBin}
	if r.TotalPool != nil {
		obs.pool = new(big.Int).Set(r.TotalPool)
	}
	t.seen[r.ID] = obs
	return status, nil
}

// Last returns the furthest status recorded for id.
func (t *Tracker) Last(id uint32) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.seen[id]
	return o.status, ok
}

// Forget drops the history for id.
func (t *Tracker) Forget(id uint32) {
	t.mu.Lock()
	delete(t.seen, id)
	t.mu.Unlock()
}

func checkProgress(r Round, status Status, prev observation) error {
	regress := func(detail string) error {
		return &pulse.DecodeInvariantError{What: fmt.Sprintf("round %d", r.ID), Detail: detail}
	}
	if prev.status == StatusFinalized && !r.Finalized {
		return regress(fmt.Sprintf("observed %s after %s", status, StatusFinalized))
	}
	if !prev.endTime.IsZero() && !prev.endTime.Equal(r.EndTime) {
		return regress(fmt.Sprintf("end time changed from %s to %s", prev.endTime, r.EndTime))
	}
	if prev.winner != nil {
		if r.WinningBin == nil || *r.WinningBin != *prev.winner {
			return regress("winning bin changed after finalization")
		}
	}
	if prev.pool != nil && r.TotalPool != nil && !r.Finalized && r.TotalPool.Cmp(prev.pool) < 0 {
		return regress(fmt.Sprintf("total pool decreased from %s to %s", prev.pool, r.TotalPool))
	}
	return nil
}
