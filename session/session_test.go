package session_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse/session"
	"github.com/blockberries/pulse/types"
)

const alice types.Address = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

func newStore(t *testing.T) *session.Store {
	s := session.Open(filepath.Join(t.TempDir(), "nested", "session.cbor"))
	s.Now = func() time.Time { return time.Unix(1_750_000_000, 0) }
	return s
}

func TestStore_SaveLoadClear(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(alice))
	addr, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice, addr)

	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, int64(1_750_000_000), info.SavedAt.Unix())

	require.NoError(t, s.Clear())
	_, ok, err = s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Clear())
}

func TestStore_FileFormat(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(alice))

	data, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, cbor.Unmarshal(data, &m))
	assert.Equal(t, string(alice), m["address"])
	assert.Contains(t, m, "saved_at")
}

func TestStore_RejectsBadAddress(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.Save("not-an-address"))
	_, err := os.Stat(s.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Corrupt(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path), 0o700))

	require.NoError(t, os.WriteFile(s.Path, []byte{0xff, 0x00}, 0o600))
	_, _, err := s.Load()
	assert.Error(t, err)

	data, err := cbor.Marshal(map[string]any{"address": "GBAD", "saved_at": 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path, data, 0o600))
	_, _, err = s.Load()
	assert.Error(t, err)
}
