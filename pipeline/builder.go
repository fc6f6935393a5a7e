package pipeline

import (
	"math"
	"time"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/types"
)

// Builder assembles unsigned envelopes. The zero Now uses time.Now.
type Builder struct {
	Contract types.Address
	BaseFee  uint32
	Timeout  time.Duration
	Now      func() time.Time
}

// Build creates an envelope spending the account's next sequence with
// one invocation of call and a validity window ending Timeout from now.
func (b Builder) Build(acct types.Account, call contract.Call) (types.Envelope, error) {
	return b.BuildWithTimeout(acct, call, b.Timeout)
}

// BuildWithTimeout is Build with an explicit validity window.
func (b Builder) BuildWithTimeout(acct types.Account, call contract.Call, timeout time.Duration) (types.Envelope, error) {
	if _, err := contract.ParseArgs(call.Function, call.Args); err != nil {
		return types.Envelope{}, err
	}
	if timeout <= 0 {
		return types.Envelope{}, &pulse.ValidationError{Field: "timeout", Reason: "must be positive"}
	}
	if acct.Sequence == math.MaxUint64 {
		return types.Envelope{}, &pulse.ValidationError{Field: "sequence", Reason: "account sequence exhausted"}
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return types.Envelope{
		Source:   acct.Address,
		Sequence: acct.NextSequence(),
		Fee:      b.BaseFee,
		TimeBounds: types.TimeBounds{
			MaxTime: types.LedgerSeconds(now().Add(timeout)),
		},
		Operation: call.Invocation(b.Contract),
	}, nil
}
