package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/round"
)

const zeroContract = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRoundSeed(t *testing.T) {
	out, err := run(t, "round", "seed")
	require.NoError(t, err)

	var seedHex, commitHex string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		f := strings.Fields(line)
		require.Len(t, f, 2)
		switch f[0] {
		case "seed":
			seedHex = f[1]
		case "commit":
			commitHex = f[1]
		}
	}
	seed, err := round.ParseSeed(seedHex)
	require.NoError(t, err)
	assert.Equal(t, round.CommitmentOf(seed).String(), commitHex)
}

func TestAdmin_InProcessDevnet(t *testing.T) {
	out, err := run(t, "admin", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "not initialized")

	out, err = run(t, "admin", "init", "--token", zeroContract)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized in ledger")
}

func TestRoundFinalize_BadSeed(t *testing.T) {
	_, err := run(t, "round", "finalize", "1", "--seed", "zz")
	_, ok := pulse.IsFormat(err)
	assert.True(t, ok, "got %v", err)
}

func TestSession(t *testing.T) {
	t.Setenv("PULSE_SESSION_PATH", filepath.Join(t.TempDir(), "session.cbor"))

	out, err := run(t, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved session")

	out, err = run(t, "session", "connect")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "connected G"), out)
	addr := strings.TrimSpace(strings.TrimPrefix(out, "connected "))

	out, err = run(t, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, addr)
	assert.Contains(t, out, "sequence")

	_, err = run(t, "session", "clear")
	require.NoError(t, err)
	out, err = run(t, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved session")
}

func TestParseFund(t *testing.T) {
	addr, n, err := parseFund("GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF=250")
	require.NoError(t, err)
	assert.Equal(t, "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF", addr.String())
	assert.Equal(t, int64(250), n)

	for _, bad := range []string{"nope", "G123=5", "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF=x"} {
		_, _, err := parseFund(bad)
		assert.Error(t, err, bad)
	}
}
