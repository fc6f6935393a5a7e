package types

import (
	"errors"
	"math/big"
)

// Int128Parts is a signed 128-bit integer split into its high (signed)
// and low (unsigned) 64-bit halves, the ledger's native i128 layout.
type Int128Parts struct {
	Hi int64  `cramberry:"1"`
	Lo uint64 `cramberry:"2"`
}

// ErrInt128Range is returned when a value does not fit in 128 bits.
var ErrInt128Range = errors.New("value out of i128 range")

var (
	two64     = new(big.Int).Lsh(big.NewInt(1), 64)
	two128    = new(big.Int).Lsh(big.NewInt(1), 128)
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Int128FromBig converts x to its i128 parts. No precision is lost:
// every integer in [-2^127, 2^127) is representable and anything
// outside that range is rejected.
func Int128FromBig(x *big.Int) (Int128Parts, error) {
	if x == nil {
		return Int128Parts{}, errors.New("nil integer")
	}
	if x.Cmp(maxInt128) > 0 || x.Cmp(minInt128) < 0 {
		return Int128Parts{}, ErrInt128Range
	}
	u := new(big.Int).Set(x)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	lo := new(big.Int).And(u, new(big.Int).Sub(two64, big.NewInt(1)))
	hi := new(big.Int).Rsh(u, 64)
	return Int128Parts{Hi: int64(hi.Uint64()), Lo: lo.Uint64()}, nil
}

// Int128FromInt64 converts a machine integer to i128 parts.
func Int128FromInt64(v int64) Int128Parts {
	if v < 0 {
		return Int128Parts{Hi: -1, Lo: uint64(v)}
	}
	return Int128Parts{Lo: uint64(v)}
}

// Big returns the value as an arbitrary-precision integer.
func (p Int128Parts) Big() *big.Int {
	x := new(big.Int).SetInt64(p.Hi)
	x.Lsh(x, 64)
	return x.Add(x, new(big.Int).SetUint64(p.Lo))
}
