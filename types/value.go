package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindU32
	KindU64
	KindI128
	KindBytes
	KindAddress
	KindSymbol
	KindVec
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindI128:
		return "i128"
	case KindBytes:
		return "bytes"
	case KindAddress:
		return "address"
	case KindSymbol:
		return "symbol"
	case KindVec:
		return "vec"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the ledger's native typed value: a tagged union where Kind
// selects which of the payload fields is meaningful. Contract
// arguments, return values and diagnostic data all travel as Values.
type Value struct {
	Kind  Kind         `cramberry:"1"`
	Bool  bool         `cramberry:"2"`
	U32   uint32       `cramberry:"3"`
	U64   uint64       `cramberry:"4"`
	I128  *Int128Parts `cramberry:"5"`
	Bytes []byte       `cramberry:"6"`
	// Str holds the address or symbol text.
	Str string     `cramberry:"7"`
	Vec []Value    `cramberry:"8"`
	Map []MapEntry `cramberry:"9"`
}

// MapEntry is a single key/value pair of a map Value. Contract
// structs are encoded as maps keyed by field-name symbols.
type MapEntry struct {
	Key Value `cramberry:"1"`
	Val Value `cramberry:"2"`
}

func Void() Value                  { return Value{Kind: KindVoid} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func U32(v uint32) Value           { return Value{Kind: KindU32, U32: v} }
func U64(v uint64) Value           { return Value{Kind: KindU64, U64: v} }
func I128(p Int128Parts) Value     { return Value{Kind: KindI128, I128: &p} }
func Symbol(s string) Value        { return Value{Kind: KindSymbol, Str: s} }
func AddressValue(a Address) Value { return Value{Kind: KindAddress, Str: string(a)} }
func Vec(vs ...Value) Value        { return Value{Kind: KindVec, Vec: vs} }
func Map(es ...MapEntry) Value     { return Value{Kind: KindMap, Map: es} }

// Bytes copies b into a bytes Value.
func Bytes(b []byte) Value {
	return Value{Kind: KindBytes, Bytes: append([]byte(nil), b...)}
}

// Field looks up a symbol-keyed entry of a map Value.
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.Map {
		if e.Key.Kind == KindSymbol && e.Key.Str == name {
			return e.Val, true
		}
	}
	return Value{}, false
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindU32:
		return fmt.Sprintf("%du32", v.U32)
	case KindU64:
		return fmt.Sprintf("%du64", v.U64)
	case KindI128:
		if v.I128 == nil {
			return "i128(nil)"
		}
		return v.I128.Big().String() + "i128"
	case KindBytes:
		return "0x" + hex.EncodeToString(v.Bytes)
	case KindAddress:
		return v.Str
	case KindSymbol:
		return ":" + v.Str
	case KindVec:
		parts := make([]string, len(v.Vec))
		for i, e := range v.Vec {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.Map))
		for i, e := range v.Map {
			parts[i] = e.Key.String() + " " + e.Val.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.Kind.String()
	}
}
