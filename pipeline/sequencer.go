package pipeline

import (
	"context"
	"sync"

	"github.com/blockberries/pulse/types"
)

// Sequencer serializes mutating pipelines per signer address. Each
// address has at most one holder; waiters are served in arrival order.
// No sequence number is kept here: holders always re-read it from the
// ledger.
type Sequencer struct {
	mu    sync.Mutex
	lanes map[types.Address]*lane
}

type lane struct {
	waiters []chan struct{}
}

// NewSequencer returns an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{lanes: make(map[types.Address]*lane)}
}

// Acquire blocks until addr is free or ctx is done. The returned
// release function must be called exactly once when the operation
// reaches a terminal outcome; extra calls are ignored.
func (s *Sequencer) Acquire(ctx context.Context, addr types.Address) (func(), error) {
	s.mu.Lock()
	l, busy := s.lanes[addr]
	if !busy {
		s.lanes[addr] = &lane{}
		s.mu.Unlock()
		return s.releaser(addr), nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return s.releaser(addr), nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range l.waiters {
			if w == ch {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				s.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		s.mu.Unlock()
		// Handed the lane while giving up: pass it on.
		s.releaser(addr)()
		return nil, ctx.Err()
	}
}

// Busy reports whether a mutating operation holds addr.
func (s *Sequencer) Busy(addr types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lanes[addr]
	return ok
}

func (s *Sequencer) releaser(addr types.Address) func() {
	var once sync.Once
	return func() {
		once.Do(func() { s.release(addr) })
	}
}

func (s *Sequencer) release(addr types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[addr]
	if !ok {
		return
	}
	if len(l.waiters) == 0 {
		delete(s.lanes, addr)
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	close(next)
}
