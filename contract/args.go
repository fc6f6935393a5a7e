package contract

import (
	"math/big"

	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

// Args is a schema-checked argument list with typed accessors. Indexes
// follow the schema; accessors do not re-check kinds.
type Args struct {
	Schema Schema
	vals   []types.Value
}

// ParseArgs checks an invocation against its schema.
func ParseArgs(function string, vals []types.Value) (Args, error) {
	s, ok := Schemas[function]
	if !ok {
		return Args{}, unknownFunction(function)
	}
	if err := s.Check(vals); err != nil {
		return Args{}, err
	}
	return Args{Schema: s, vals: vals}, nil
}

func (a Args) Address(i int) types.Address { return types.Address(a.vals[i].Str) }
func (a Args) U32(i int) uint32            { return a.vals[i].U32 }
func (a Args) U64(i int) uint64            { return a.vals[i].U64 }
func (a Args) I128(i int) *big.Int         { return a.vals[i].I128.Big() }

// Digest returns a bytes32 argument.
func (a Args) Digest(i int) round.Digest {
	var d round.Digest
	copy(d[:], a.vals[i].Bytes)
	return d
}

// PlaceBetArgs is the decoded argument list of place_bet.
type PlaceBetArgs struct {
	User    types.Address
	RoundID uint32
	BinID   uint32
	Amount  *big.Int
}

// ParsePlaceBet decodes a place_bet call.
func ParsePlaceBet(c Call) (PlaceBetArgs, error) {
	if c.Function != FnPlaceBet {
		return PlaceBetArgs{}, unknownFunction(c.Function)
	}
	a, err := ParseArgs(FnPlaceBet, c.Args)
	if err != nil {
		return PlaceBetArgs{}, err
	}
	return PlaceBetArgs{User: a.Address(0), RoundID: a.U32(1), BinID: a.U32(2), Amount: a.I128(3)}, nil
}
