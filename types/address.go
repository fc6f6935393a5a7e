package types

import (
	"encoding/base32"
	"errors"
	"fmt"
)

// Address is a strkey-encoded ledger address: 56 base32 characters
// holding a version byte, a 32-byte payload and a CRC16 checksum.
// Accounts start with 'G', contracts with 'C'.
type Address string

const (
	versionAccount  byte = 6 << 3 // 'G'
	versionContract byte = 2 << 3 // 'C'

	addressLen = 56
)

// ErrInvalidAddress is returned when a string is not a well-formed
// account or contract address.
var ErrInvalidAddress = errors.New("invalid address")

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// AccountAddress encodes a 32-byte public key as an account address.
func AccountAddress(pub []byte) (Address, error) {
	return encodeAddress(versionAccount, pub)
}

// ContractAddress encodes a 32-byte contract hash as a contract address.
func ContractAddress(id []byte) (Address, error) {
	return encodeAddress(versionContract, id)
}

// ParseAddress validates s and returns it as an Address.
func ParseAddress(s string) (Address, error) {
	if _, _, err := decodeAddress(s); err != nil {
		return "", err
	}
	return Address(s), nil
}

// Validate checks the encoding, version byte and checksum.
func (a Address) Validate() error {
	_, _, err := decodeAddress(string(a))
	return err
}

// IsAccount reports whether a is a valid account ('G') address.
func (a Address) IsAccount() bool {
	v, _, err := decodeAddress(string(a))
	return err == nil && v == versionAccount
}

// IsContract reports whether a is a valid contract ('C') address.
func (a Address) IsContract() bool {
	v, _, err := decodeAddress(string(a))
	return err == nil && v == versionContract
}

// Payload returns the 32 raw bytes behind the address.
func (a Address) Payload() ([]byte, error) {
	_, p, err := decodeAddress(string(a))
	return p, err
}

func (a Address) String() string { return string(a) }

func encodeAddress(version byte, payload []byte) (Address, error) {
	if len(payload) != 32 {
		return "", fmt.Errorf("%w: payload must be 32 bytes, got %d", ErrInvalidAddress, len(payload))
	}
	raw := make([]byte, 0, 35)
	raw = append(raw, version)
	raw = append(raw, payload...)
	sum := crc16(raw)
	raw = append(raw, byte(sum), byte(sum>>8))
	return Address(strkeyEncoding.EncodeToString(raw)), nil
}

func decodeAddress(s string) (byte, []byte, error) {
	if len(s) != addressLen {
		return 0, nil, fmt.Errorf("%w: want %d characters, got %d", ErrInvalidAddress, addressLen, len(s))
	}
	if s[0] != 'G' && s[0] != 'C' {
		return 0, nil, fmt.Errorf("%w: unknown prefix %q", ErrInvalidAddress, s[0])
	}
	raw, err := strkeyEncoding.DecodeString(s)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 35 {
		return 0, nil, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(raw))
	}
	body, check := raw[:33], raw[33:]
	sum := crc16(body)
	if check[0] != byte(sum) || check[1] != byte(sum>>8) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	version := body[0]
	if version != versionAccount && version != versionContract {
		return 0, nil, fmt.Errorf("%w: unknown version byte 0x%02x", ErrInvalidAddress, version)
	}
	return version, append([]byte(nil), body[1:]...), nil
}

// crc16 is CRC-16/XMODEM.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
