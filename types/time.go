package types

import "time"

// Timestamp is a wire-safe representation of a point in time.
// Uses seconds since Unix epoch plus a nanosecond offset,
// ensuring deterministic serialization across languages.
type Timestamp struct {
	Seconds int64 `cramberry:"1"`
	Nanos   int32 `cramberry:"2"`
}

// TimeToTimestamp converts a time.Time to a Timestamp.
func TimeToTimestamp(t time.Time) Timestamp {
	return Timestamp{
		Seconds: t.Unix(),
		Nanos:   int32(t.Nanosecond()),
	}
}

// ToTime converts a Timestamp to a time.Time (UTC).
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// IsZero reports whether the timestamp was never set.
func (ts Timestamp) IsZero() bool { return ts.Seconds == 0 && ts.Nanos == 0 }

// LedgerSeconds converts t to the ledger's unsigned seconds clock.
// Instants before the epoch clamp to zero.
func LedgerSeconds(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}

// FromLedgerSeconds converts ledger seconds to a UTC time.
func FromLedgerSeconds(s uint64) time.Time {
	return time.Unix(int64(s), 0).UTC()
}
