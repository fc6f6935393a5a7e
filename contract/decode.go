package contract

import (
	"fmt"
	"math/big"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

// Field names of the ledger's round record.
const (
	fieldID         = "id"
	fieldEndTime    = "end_time"
	fieldTotalPool  = "total_pool"
	fieldBinTotals  = "bin_totals"
	fieldFinalized  = "finalized"
	fieldWinningBin = "winning_bin"
)

// DecodeRound maps a get_round return value to a round. Void means the
// round does not exist and yields nil with no error. The decoded record
// is validated; a record that breaks an invariant is rejected, never
// repaired.
func DecodeRound(v types.Value) (*round.Round, error) {
	if v.Kind == types.KindVoid {
		return nil, nil
	}
	if v.Kind != types.KindMap {
		return nil, shapeError(FnGetRound, "map", v)
	}

	var r round.Round
	var err error
	if r.ID, err = u32Field(v, fieldID); err != nil {
		return nil, err
	}
	end, err := u64Field(v, fieldEndTime)
	if err != nil {
		return nil, err
	}
	r.EndTime = types.FromLedgerSeconds(end)
	if r.TotalPool, err = i128Field(v, fieldTotalPool); err != nil {
		return nil, err
	}

	bins, ok := v.Field(fieldBinTotals)
	if !ok {
		return nil, missingField(fieldBinTotals)
	}
	if bins.Kind != types.KindVec {
		return nil, shapeError(FnGetRound, fieldBinTotals+" vec", bins)
	}
	if len(bins.Vec) != round.NumBins {
		return nil, &pulse.DecodeInvariantError{
			What:   fmt.Sprintf("round %d", r.ID),
			Detail: fmt.Sprintf("want %d bin totals, got %d", round.NumBins, len(bins.Vec)),
		}
	}
	for i, b := range bins.Vec {
		x, err := DecodeI128(FnGetRound, b)
		if err != nil {
			return nil, err
		}
		r.BinTotals[i] = x
	}

	fin, ok := v.Field(fieldFinalized)
	if !ok {
		return nil, missingField(fieldFinalized)
	}
	if r.Finalized, err = DecodeBool(FnGetRound, fin); err != nil {
		return nil, err
	}

	win, err := u32Field(v, fieldWinningBin)
	if err != nil {
		return nil, err
	}
	if win != round.NoWinner {
		r.WinningBin = &win
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// EncodeRound is the inverse of DecodeRound, used by ledgers that serve
// round records.
func EncodeRound(r round.Round) (types.Value, error) {
	pool, err := types.Int128FromBig(r.TotalPool)
	if err != nil {
		return types.Value{}, err
	}
	bins := make([]types.Value, round.NumBins)
	for i, b := range r.BinTotals {
		p, err := types.Int128FromBig(b)
		if err != nil {
			return types.Value{}, err
		}
		bins[i] = types.I128(p)
	}
	win := round.NoWinner
	if w, ok := r.Winner(); ok {
		win = w
	}
	return types.Map(
		types.MapEntry{Key: types.Symbol(fieldBinTotals), Val: types.Vec(bins...)},
		types.MapEntry{Key: types.Symbol(fieldEndTime), Val: types.U64(types.LedgerSeconds(r.EndTime))},
		types.MapEntry{Key: types.Symbol(fieldFinalized), Val: types.Bool(r.Finalized)},
		types.MapEntry{Key: types.Symbol(fieldID), Val: types.U32(r.ID)},
		types.MapEntry{Key: types.Symbol(fieldTotalPool), Val: types.I128(pool)},
		types.MapEntry{Key: types.Symbol(fieldWinningBin), Val: types.U32(win)},
	), nil
}

// DecodeOptionalAddress decodes an option<address>. Void yields ok=false.
func DecodeOptionalAddress(call string, v types.Value) (types.Address, bool, error) {
	switch v.Kind {
	case types.KindVoid:
		return "", false, nil
	case types.KindAddress:
		addr, err := types.ParseAddress(v.Str)
		if err != nil {
			return "", false, &pulse.EncodingError{Call: call, Position: -1, Want: "address", Got: v.Str, Err: err}
		}
		return addr, true, nil
	}
	return "", false, shapeError(call, "address or void", v)
}

// DecodeI128 decodes an i128 into an arbitrary-precision integer.
func DecodeI128(call string, v types.Value) (*big.Int, error) {
	if v.Kind != types.KindI128 || v.I128 == nil {
		return nil, shapeError(call, "i128", v)
	}
	return v.I128.Big(), nil
}

// DecodeClaim decodes a claim return value. Ledgers that report the
// payout return an i128; ones that do not return void, decoded as nil.
func DecodeClaim(v types.Value) (*big.Int, error) {
	if v.Kind == types.KindVoid {
		return nil, nil
	}
	return DecodeI128(FnClaim, v)
}

// DecodeBool decodes a bool.
func DecodeBool(call string, v types.Value) (bool, error) {
	if v.Kind != types.KindBool {
		return false, shapeError(call, "bool", v)
	}
	return v.Bool, nil
}

// DecodeVoid checks that a mutating call returned nothing.
func DecodeVoid(call string, v types.Value) error {
	if v.Kind != types.KindVoid {
		return shapeError(call, "void", v)
	}
	return nil
}

func u32Field(v types.Value, name string) (uint32, error) {
	f, ok := v.Field(name)
	if !ok {
		return 0, missingField(name)
	}
	if f.Kind != types.KindU32 {
		return 0, shapeError(FnGetRound, name+" u32", f)
	}
	return f.U32, nil
}

func u64Field(v types.Value, name string) (uint64, error) {
	f, ok := v.Field(name)
	if !ok {
		return 0, missingField(name)
	}
	if f.Kind != types.KindU64 {
		return 0, shapeError(FnGetRound, name+" u64", f)
	}
	return f.U64, nil
}

func i128Field(v types.Value, name string) (*big.Int, error) {
	f, ok := v.Field(name)
	if !ok {
		return nil, missingField(name)
	}
	return DecodeI128(FnGetRound, f)
}

func missingField(name string) error {
	return &pulse.EncodingError{Call: FnGetRound, Position: -1, Want: "field " + name, Got: "nothing"}
}

func shapeError(call, want string, v types.Value) error {
	return &pulse.EncodingError{Call: call, Position: -1, Want: want, Got: v.Kind.String()}
}
