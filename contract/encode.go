package contract

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

// Call is an encoded contract invocation, not yet bound to a contract
// address.
type Call struct {
	Function string
	Args     []types.Value
}

// Mutating reports whether the call changes ledger state.
func (c Call) Mutating() bool {
	s, ok := Schemas[c.Function]
	return ok && s.Mutating
}

// Invocation binds the call to a contract.
func (c Call) Invocation(contract types.Address) types.Invocation {
	return types.Invocation{Contract: contract, Function: c.Function, Args: c.Args}
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Function, c.Args)
}

// Encode builds a call from Go values, checked against the schema for
// name. Accepted Go types per kind:
//
//	address  types.Address, string
//	u32      uint32, int
//	u64      uint64, uint32, int
//	i128     *big.Int, int64, int, types.Int128Parts
//	bytes32  round.Digest, [32]byte, []byte of length 32
func Encode(name string, args ...any) (Call, error) {
	s, ok := Schemas[name]
	if !ok {
		return Call{}, unknownFunction(name)
	}
	if len(args) != len(s.Params) {
		return Call{}, arityError(s, len(args))
	}
	vals := make([]types.Value, len(args))
	for i, p := range s.Params {
		v, err := encodeArg(s.Name, i, p, args[i])
		if err != nil {
			return Call{}, err
		}
		vals[i] = v
	}
	return Call{Function: name, Args: vals}, nil
}

func encodeArg(call string, pos int, p Param, arg any) (types.Value, error) {
	got := fmt.Sprintf("%T", arg)
	switch p.Kind {
	case types.KindAddress:
		var s string
		switch a := arg.(type) {
		case types.Address:
			s = string(a)
		case string:
			s = a
		default:
			return types.Value{}, kindError(call, pos, p, got, nil)
		}
		addr, err := types.ParseAddress(s)
		if err != nil {
			return types.Value{}, kindError(call, pos, p, got, err)
		}
		return types.AddressValue(addr), nil

	case types.KindU32:
		switch a := arg.(type) {
		case uint32:
			return types.U32(a), nil
		case int:
			if a < 0 || uint64(a) > math.MaxUint32 {
				return types.Value{}, kindError(call, pos, p, fmt.Sprintf("int %d", a), errRange)
			}
			return types.U32(uint32(a)), nil
		}

	case types.KindU64:
		switch a := arg.(type) {
		case uint64:
			return types.U64(a), nil
		case uint32:
			return types.U64(uint64(a)), nil
		case int:
			if a < 0 {
				return types.Value{}, kindError(call, pos, p, fmt.Sprintf("int %d", a), errRange)
			}
			return types.U64(uint64(a)), nil
		}

	case types.KindI128:
		var x *big.Int
		switch a := arg.(type) {
		case *big.Int:
			if a == nil {
				return types.Value{}, kindError(call, pos, p, "nil *big.Int", nil)
			}
			x = a
		case int64:
			return types.I128(types.Int128FromInt64(a)), nil
		case int:
			return types.I128(types.Int128FromInt64(int64(a))), nil
		case types.Int128Parts:
			return types.I128(a), nil
		default:
			return types.Value{}, kindError(call, pos, p, got, nil)
		}
		parts, err := types.Int128FromBig(x)
		if err != nil {
			return types.Value{}, kindError(call, pos, p, x.String(), err)
		}
		return types.I128(parts), nil

	case types.KindBytes:
		var b []byte
		switch a := arg.(type) {
		case round.Digest:
			b = a[:]
		case [32]byte:
			b = a[:]
		case []byte:
			b = a
		default:
			return types.Value{}, kindError(call, pos, p, got, nil)
		}
		if p.Len > 0 && len(b) != p.Len {
			return types.Value{}, kindError(call, pos, p, fmt.Sprintf("bytes%d", len(b)), nil)
		}
		return types.Bytes(b), nil
	}
	return types.Value{}, kindError(call, pos, p, got, nil)
}

var errRange = errors.New("out of range")

func arityError(s Schema, got int) error {
	return &pulse.EncodingError{
		Call:     s.Name,
		Position: -1,
		Want:     fmt.Sprintf("%d args", len(s.Params)),
		Got:      fmt.Sprintf("%d", got),
	}
}

func kindError(call string, pos int, p Param, got string, err error) error {
	return &pulse.EncodingError{
		Call:     call,
		Position: pos,
		Want:     fmt.Sprintf("%s %s", p.Name, p),
		Got:      got,
		Err:      err,
	}
}

// Initialize encodes initialize(admin, token).
func Initialize(admin, token types.Address) (Call, error) {
	return Encode(FnInitialize, admin, token)
}

// CreateRound encodes create_round(admin, id, end_time, commit).
func CreateRound(admin types.Address, id uint32, endTime uint64, commit round.Digest) (Call, error) {
	return Encode(FnCreateRound, admin, id, endTime, commit)
}

// PlaceBet encodes place_bet(user, round_id, bin_id, amount).
func PlaceBet(user types.Address, roundID, binID uint32, amount *big.Int) (Call, error) {
	return Encode(FnPlaceBet, user, roundID, binID, amount)
}

// FinalizeRound encodes finalize_round(round_id, seed).
func FinalizeRound(roundID uint32, seed round.Digest) (Call, error) {
	return Encode(FnFinalizeRound, roundID, seed)
}

// Claim encodes claim(user, round_id).
func Claim(user types.Address, roundID uint32) (Call, error) {
	return Encode(FnClaim, user, roundID)
}

// GetRound encodes get_round(id).
func GetRound(id uint32) Call {
	return Call{Function: FnGetRound, Args: []types.Value{types.U32(id)}}
}

// GetAdmin encodes get_admin().
func GetAdmin() Call { return Call{Function: FnGetAdmin} }

// GetToken encodes get_token().
func GetToken() Call { return Call{Function: FnGetToken} }

// GetUserBet encodes get_user_bet(round_id, bin_id, user).
func GetUserBet(roundID, binID uint32, user types.Address) (Call, error) {
	return Encode(FnGetUserBet, roundID, binID, user)
}

// HasClaimed encodes has_claimed(round_id, user).
func HasClaimed(roundID uint32, user types.Address) (Call, error) {
	return Encode(FnHasClaimed, roundID, user)
}
