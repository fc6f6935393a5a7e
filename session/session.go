// Package session persists the last connected wallet address so that a
// later invocation can resume without reconnecting the wallet agent.
// Only the public address is stored.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/blockberries/pulse/types"
)

// record is the on-disk form.
type record struct {
	Address string `cbor:"address"`
	SavedAt int64  `cbor:"saved_at"`
}

// Store is a session file.
type Store struct {
	Path string
	// Now stamps saves; nil uses time.Now.
	Now func() time.Time
}

// Open returns a store at path.
func Open(path string) *Store {
	return &Store{Path: path}
}

// Save records addr as the connected address.
func (s *Store) Save(addr types.Address) error {
	if err := addr.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	data, err := cbor.Marshal(record{Address: addr.String(), SavedAt: now().Unix()})
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// Load returns the saved address. ok is false when no session exists.
func (s *Store) Load() (addr types.Address, ok bool, err error) {
	info, err := s.Info()
	if err != nil || info == nil {
		return "", false, err
	}
	return info.Address, true, nil
}

// Info describes a saved session.
type Info struct {
	Address types.Address
	SavedAt time.Time
}

// Info returns the saved session, or nil when there is none.
func (s *Store) Info() (*Info, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: corrupt file %s: %w", s.Path, err)
	}
	addr, err := types.ParseAddress(rec.Address)
	if err != nil {
		return nil, fmt.Errorf("session: corrupt file %s: %w", s.Path, err)
	}
	return &Info{Address: addr, SavedAt: time.Unix(rec.SavedAt, 0)}, nil
}

// Clear removes the session. Clearing a missing session is not an
// error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
