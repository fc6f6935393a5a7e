// Package types defines the wire-level data types exchanged with the
// round ledger: addresses, accounts, typed contract values, transaction
// envelopes and the records returned by simulation and finality queries.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration, JSON-RPC framing) are handled in the
// transport packages.
package types

import (
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte transaction hash.
type Hash [32]byte

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool { return h == Hash{} }

// ParseHash decodes a 64-character hex transaction hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*len(h) {
		return h, fmt.Errorf("types: hash must be %d hex characters, got %d", 2*len(h), len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("types: hash: %w", err)
	}
	return h, nil
}
