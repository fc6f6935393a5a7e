package round_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/round"
)

func TestDeriveStatus(t *testing.T) {
	end := t0.Add(time.Hour)
	open := mkRound(1, end)
	cases := []struct {
		name string
		r    round.Round
		now  time.Time
		want round.Status
	}{
		{"before end", open, t0, round.StatusOpen},
		{"at end", open, end, round.StatusClosed},
		{"after end", open, end.Add(time.Second), round.StatusClosed},
		{"finalized before end", finalize(open, 1), t0, round.StatusFinalized},
		{"finalized after end", finalize(open, 1), end.Add(time.Hour), round.StatusFinalized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, round.DeriveStatus(c.r, c.now))
			// Pure: repeated calls agree.
			assert.Equal(t, c.want, round.DeriveStatus(c.r, c.now))
		})
	}
}

func TestDeriveStatus_MonotonicInTime(t *testing.T) {
	end := t0.Add(10 * time.Minute)
	r := mkRound(1, end)
	prev := round.StatusOpen
	rank := map[round.Status]int{round.StatusOpen: 0, round.StatusClosed: 1, round.StatusFinalized: 2}
	for now := t0; now.Before(end.Add(10 * time.Minute)); now = now.Add(37 * time.Second) {
		s := round.DeriveStatus(r, now)
		require.GreaterOrEqual(t, rank[s], rank[prev], "status went from %s to %s at %s", prev, s, now)
		prev = s
	}
}

func TestBettingOpen(t *testing.T) {
	end := t0.Add(time.Hour)
	r := mkRound(1, end)
	assert.True(t, round.BettingOpen(r, t0))
	assert.True(t, round.BettingOpen(r, end.Add(-round.SnipingWindow-time.Second)))
	assert.False(t, round.BettingOpen(r, end.Add(-round.SnipingWindow)))
	assert.False(t, round.BettingOpen(r, end))
	assert.False(t, round.BettingOpen(finalize(r, 0), t0))
}

func TestTracker_FinalizedNeverRegresses(t *testing.T) {
	tr := round.NewTracker()
	end := t0.Add(time.Hour)
	r := mkRound(1, end, 10)

	s, err := tr.Observe(r, t0)
	require.NoError(t, err)
	assert.Equal(t, round.StatusOpen, s)

	s, err = tr.Observe(finalize(r, 0), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, round.StatusFinalized, s)

	_, err = tr.Observe(r, t0)
	_, ok := pulse.IsDecodeInvariant(err)
	require.True(t, ok, "expected DecodeInvariantError, got %v", err)

	last, ok := tr.Last(1)
	require.True(t, ok)
	assert.Equal(t, round.StatusFinalized, last)
}

func TestTracker_KeepsFurthestStatusOnClockSkew(t *testing.T) {
	tr := round.NewTracker()
	end := t0.Add(time.Minute)
	r := mkRound(1, end)

	s, err := tr.Observe(r, end.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, round.StatusClosed, s)

	// Same snapshot, earlier local clock.
	s, err = tr.Observe(r, t0)
	require.NoError(t, err)
	assert.Equal(t, round.StatusClosed, s)
}

func TestTracker_ImmutableFields(t *testing.T) {
	end := t0.Add(time.Hour)

	t.Run("end time", func(t *testing.T) {
		tr := round.NewTracker()
		_, err := tr.Observe(mkRound(1, end), t0)
		require.NoError(t, err)
		_, err = tr.Observe(mkRound(1, end.Add(time.Second)), t0)
		_, ok := pulse.IsDecodeInvariant(err)
		assert.True(t, ok)
	})

	t.Run("winning bin", func(t *testing.T) {
		tr := round.NewTracker()
		_, err := tr.Observe(finalize(mkRound(1, end, 1, 1), 0), t0)
		require.NoError(t, err)
		_, err = tr.Observe(finalize(mkRound(1, end, 1, 1), 1), t0)
		_, ok := pulse.IsDecodeInvariant(err)
		assert.True(t, ok)
	})

	t.Run("pool shrinks while open", func(t *testing.T) {
		tr := round.NewTracker()
		_, err := tr.Observe(mkRound(1, end, 50), t0)
		require.NoError(t, err)
		_, err = tr.Observe(mkRound(1, end, 40), t0)
		_, ok := pulse.IsDecodeInvariant(err)
		assert.True(t, ok)
	})

	t.Run("pool grows", func(t *testing.T) {
		tr := round.NewTracker()
		_, err := tr.Observe(mkRound(1, end, 50), t0)
		require.NoError(t, err)
		r := mkRound(1, end, 50)
		r.BinTotals[1] = big.NewInt(7)
		r.TotalPool = big.NewInt(57)
		_, err = tr.Observe(r, t0)
		assert.NoError(t, err)
	})
}

func TestTracker_Forget(t *testing.T) {
	tr := round.NewTracker()
	_, err := tr.Observe(mkRound(4, t0), t0)
	require.NoError(t, err)
	tr.Forget(4)
	_, ok := tr.Last(4)
	assert.False(t, ok)
}
