package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Invocation is a single contract call: the operation carried by every
// envelope this client builds.
type Invocation struct {
	Contract Address `cramberry:"1"`
	Function string  `cramberry:"2"`
	Args     []Value `cramberry:"3"`
}

// TimeBounds is the validity window of a transaction in ledger
// seconds. MaxTime 0 means unbounded.
type TimeBounds struct {
	MinTime uint64 `cramberry:"1"`
	MaxTime uint64 `cramberry:"2"`
}

// Resources is the execution footprint and resource fee a ledger
// reports from simulation. It is attached by the preparer.
type Resources struct {
	ReadOnly     []string `cramberry:"1"`
	ReadWrite    []string `cramberry:"2"`
	Instructions uint32   `cramberry:"3"`
	ReadBytes    uint32   `cramberry:"4"`
	WriteBytes   uint32   `cramberry:"5"`
	ResourceFee  int64    `cramberry:"6"`
}

// Envelope is an unsigned transaction.
type Envelope struct {
	Source     Address    `cramberry:"1"`
	Sequence   uint64     `cramberry:"2"`
	Fee        uint32     `cramberry:"3"`
	TimeBounds TimeBounds `cramberry:"4"`
	Operation  Invocation `cramberry:"5"`
	// Resources is nil until the envelope has been prepared.
	Resources *Resources `cramberry:"6"`
}

// Prepared reports whether simulation data has been applied.
func (e Envelope) Prepared() bool { return e.Resources != nil }

// Signature is one signer's signature over the envelope payload.
type Signature struct {
	Signer Address `cramberry:"1"`
	Data   []byte  `cramberry:"2"`
}

// SignedEnvelope is an envelope plus the signatures of its authorizers.
type SignedEnvelope struct {
	Envelope   Envelope    `cramberry:"1"`
	Signatures []Signature `cramberry:"2"`
}

// SigningPayload returns the digest signers sign: the network id hash
// followed by the envelope encoding, hashed again. Binding the network
// id prevents replay of a signature on another network.
func (e Envelope) SigningPayload(networkID string) ([]byte, error) {
	enc, err := EncodeEnvelope(e)
	if err != nil {
		return nil, err
	}
	nid := sha256.Sum256([]byte(networkID))
	buf := make([]byte, 0, len(nid)+len(enc))
	buf = append(buf, nid[:]...)
	buf = append(buf, enc...)
	sum := sha256.Sum256(buf)
	return sum[:], nil
}

// EncodeEnvelope serializes an unsigned envelope.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	data, err := cramberry.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("types: encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses an unsigned envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := cramberry.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("types: decode envelope: %w", err)
	}
	return e, nil
}

// EncodeSignedEnvelope serializes a signed envelope.
func EncodeSignedEnvelope(e SignedEnvelope) ([]byte, error) {
	data, err := cramberry.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("types: encode signed envelope: %w", err)
	}
	return data, nil
}

// DecodeSignedEnvelope parses a signed envelope.
func DecodeSignedEnvelope(data []byte) (SignedEnvelope, error) {
	var e SignedEnvelope
	if err := cramberry.Unmarshal(data, &e); err != nil {
		return SignedEnvelope{}, fmt.Errorf("types: decode signed envelope: %w", err)
	}
	return e, nil
}

// EncodeValue serializes a single Value.
func EncodeValue(v Value) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("types: encode value: %w", err)
	}
	return data, nil
}

// DecodeValue parses a single Value.
func DecodeValue(data []byte) (Value, error) {
	var v Value
	if err := cramberry.Unmarshal(data, &v); err != nil {
		return Value{}, fmt.Errorf("types: decode value: %w", err)
	}
	return v, nil
}
