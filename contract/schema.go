// Package contract encodes calls to the round contract and decodes its
// return values.
//
// Every contract function has a fixed positional schema. Encoding
// checks arity and argument kinds and fails with *pulse.EncodingError
// instead of coercing. Decoders turn loosely shaped ledger values into
// strict domain types at the boundary.
package contract

import (
	"fmt"

	"github.com/blockberries/pulse/types"
)

// Contract function names.
const (
	FnInitialize    = "initialize"
	FnCreateRound   = "create_round"
	FnPlaceBet      = "place_bet"
	FnFinalizeRound = "finalize_round"
	FnClaim         = "claim"
	FnGetRound      = "get_round"
	FnGetAdmin      = "get_admin"
	FnGetUserBet    = "get_user_bet"
	FnHasClaimed    = "has_claimed"
	FnGetToken      = "get_token"
)

// Param is one positional argument of a contract function.
type Param struct {
	Name string
	Kind types.Kind
	// Len is the required byte length for KindBytes, 0 for any.
	Len int
}

func (p Param) String() string {
	if p.Kind == types.KindBytes && p.Len > 0 {
		return fmt.Sprintf("bytes%d", p.Len)
	}
	return p.Kind.String()
}

// Schema is the fixed signature of a contract function.
type Schema struct {
	Name   string
	Params []Param
	// Returns describes the return shape, for help output.
	Returns string
	// Mutating functions need a signed transaction; the rest are
	// answered by simulation alone.
	Mutating bool
}

var (
	address = func(name string) Param { return Param{Name: name, Kind: types.KindAddress} }
	u32     = func(name string) Param { return Param{Name: name, Kind: types.KindU32} }
	u64     = func(name string) Param { return Param{Name: name, Kind: types.KindU64} }
	i128    = func(name string) Param { return Param{Name: name, Kind: types.KindI128} }
	bytes32 = func(name string) Param { return Param{Name: name, Kind: types.KindBytes, Len: 32} }
)

// Schemas holds the signature of every contract function, keyed by name.
var Schemas = map[string]Schema{
	FnInitialize: {
		Name:     FnInitialize,
		Params:   []Param{address("admin"), address("token")},
		Returns:  "void",
		Mutating: true,
	},
	FnCreateRound: {
		Name:     FnCreateRound,
		Params:   []Param{address("admin"), u32("id"), u64("end_time"), bytes32("commit")},
		Returns:  "void",
		Mutating: true,
	},
	FnPlaceBet: {
		Name:     FnPlaceBet,
		Params:   []Param{address("user"), u32("round_id"), u32("bin_id"), i128("amount")},
		Returns:  "void",
		Mutating: true,
	},
	FnFinalizeRound: {
		Name:     FnFinalizeRound,
		Params:   []Param{u32("round_id"), bytes32("seed")},
		Returns:  "void",
		Mutating: true,
	},
	FnClaim: {
		Name:     FnClaim,
		Params:   []Param{address("user"), u32("round_id")},
		Returns:  "i128 | void",
		Mutating: true,
	},
	FnGetRound: {
		Name:    FnGetRound,
		Params:  []Param{u32("id")},
		Returns: "option<round>",
	},
	FnGetAdmin: {
		Name:    FnGetAdmin,
		Returns: "option<address>",
	},
	FnGetUserBet: {
		Name:    FnGetUserBet,
		Params:  []Param{u32("round_id"), u32("bin_id"), address("user")},
		Returns: "i128",
	},
	FnHasClaimed: {
		Name:    FnHasClaimed,
		Params:  []Param{u32("round_id"), address("user")},
		Returns: "bool",
	},
	FnGetToken: {
		Name:    FnGetToken,
		Returns: "option<address>",
	},
}

// Lookup returns the schema for name.
func Lookup(name string) (Schema, bool) {
	s, ok := Schemas[name]
	return s, ok
}

// Check verifies that args match the schema exactly.
func (s Schema) Check(args []types.Value) error {
	if len(args) != len(s.Params) {
		return arityError(s, len(args))
	}
	for i, p := range s.Params {
		a := args[i]
		if a.Kind != p.Kind {
			return kindError(s.Name, i, p, a.Kind.String(), nil)
		}
		switch p.Kind {
		case types.KindBytes:
			if p.Len > 0 && len(a.Bytes) != p.Len {
				return kindError(s.Name, i, p, fmt.Sprintf("bytes%d", len(a.Bytes)), nil)
			}
		case types.KindI128:
			if a.I128 == nil {
				return kindError(s.Name, i, p, "i128(nil)", nil)
			}
		case types.KindAddress:
			if err := types.Address(a.Str).Validate(); err != nil {
				return kindError(s.Name, i, p, "malformed address", err)
			}
		}
	}
	return nil
}
