package pipeline

import (
	"fmt"
	"math"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/types"
)

// Prepare applies a successful simulation to env: the resource
// footprint is attached and the resource fee is added to the inclusion
// fee. env is not modified.
func Prepare(env types.Envelope, sim types.Simulation) (types.Envelope, error) {
	if !sim.OK() {
		return types.Envelope{}, simulationError(env.Operation.Function, sim)
	}
	if sim.MinResourceFee < 0 {
		return types.Envelope{}, &pulse.ValidationError{Field: "resource fee", Reason: fmt.Sprintf("negative (%d)", sim.MinResourceFee)}
	}
	fee := uint64(env.Fee) + uint64(sim.MinResourceFee)
	if fee > math.MaxUint32 {
		return types.Envelope{}, &pulse.ValidationError{Field: "fee", Reason: fmt.Sprintf("%d exceeds the ledger maximum", fee)}
	}

	res := sim.Resources
	res.ReadOnly = append([]string(nil), sim.Resources.ReadOnly...)
	res.ReadWrite = append([]string(nil), sim.Resources.ReadWrite...)
	res.ResourceFee = sim.MinResourceFee

	out := env
	out.Operation.Args = append([]types.Value(nil), env.Operation.Args...)
	out.Fee = uint32(fee)
	out.Resources = &res
	return out, nil
}

func simulationError(call string, sim types.Simulation) error {
	reason := sim.Error
	if reason == "" {
		reason = "no result returned"
	}
	return &pulse.SimulationError{
		Call:        call,
		Reason:      reason,
		Code:        contract.ErrorCode(sim.Diagnostics, sim.Error),
		Diagnostics: sim.Diagnostics,
	}
}
