package round

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/blockberries/pulse"
)

// DigestLen is the byte length of a commit digest or reveal seed.
const DigestLen = 32

// Digest is a commit digest or reveal seed.
type Digest [DigestLen]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// CommitmentOf returns the SHA-256 digest of seed, the value a round is
// created with and checked against at finalization.
func CommitmentOf(seed Digest) Digest { return Digest(sha256.Sum256(seed[:])) }

// ValidateDigest checks that s is exactly 64 hexadecimal characters.
// It never looks at what the bytes mean.
func ValidateDigest(s string) error {
	return validateHex("digest", s)
}

// ParseDigest validates s and decodes it.
func ParseDigest(s string) (Digest, error) {
	return parseHex("digest", s)
}

// ParseSeed is ParseDigest for reveal seeds; errors name the seed.
func ParseSeed(s string) (Digest, error) {
	return parseHex("seed", s)
}

func parseHex(field, s string) (Digest, error) {
	var d Digest
	if err := validateHex(field, s); err != nil {
		return d, err
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, &pulse.FormatError{Field: field, Value: s, Reason: err.Error()}
	}
	return d, nil
}

func validateHex(field, s string) error {
	if len(s) != 2*DigestLen {
		return &pulse.FormatError{Field: field, Value: s, Reason: fmt.Sprintf("want %d hex characters, got %d", 2*DigestLen, len(s))}
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return &pulse.FormatError{Field: field, Value: s, Reason: fmt.Sprintf("non-hex character %q at %d", s[i], i)}
		}
	}
	return nil
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
