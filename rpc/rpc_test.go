package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/devnet"
	"github.com/blockberries/pulse/rpc"
	pulsetest "github.com/blockberries/pulse/testing"
	"github.com/blockberries/pulse/types"
)

const alice types.Address = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

func serve(t *testing.T, l pulse.Ledger) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(rpc.NewServer(l, nil))
	t.Cleanup(srv.Close)
	c := rpc.NewClient(srv.URL, 5*time.Second)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRPC_RoundTrip(t *testing.T) {
	ledger := &pulsetest.MockLedger{
		AccountFn: func(_ context.Context, addr types.Address) (types.Account, error) {
			return types.Account{Address: addr, Sequence: 77, Balance: 5}, nil
		},
	}
	c := serve(t, ledger)

	acct, err := c.Account(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), acct.Sequence)
	assert.Equal(t, alice, acct.Address)

	sim, err := c.Simulate(context.Background(), types.Envelope{Source: alice, Sequence: 78})
	require.NoError(t, err)
	assert.True(t, sim.OK())
	assert.Equal(t, int64(1000), sim.MinResourceFee)

	signed := types.SignedEnvelope{
		Envelope:   types.Envelope{Source: alice, Sequence: 78, Resources: &types.Resources{}},
		Signatures: []types.Signature{{Signer: alice, Data: []byte{1, 2, 3}}},
	}
	res, err := c.Send(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, types.SendPending, res.Status)
	require.Len(t, ledger.Sent(), 1)
	assert.Equal(t, pulsetest.HashOf(ledger.Sent()[0]), res.Hash)
	assert.Equal(t, []byte{1, 2, 3}, ledger.Sent()[0].Signatures[0].Data)

	rec, err := c.Transaction(context.Background(), res.Hash)
	require.NoError(t, err)
	assert.Equal(t, types.TxSuccess, rec.Status)
}

func TestRPC_AccountNotFound(t *testing.T) {
	c := serve(t, &pulsetest.MockLedger{
		AccountFn: func(context.Context, types.Address) (types.Account, error) {
			return types.Account{}, types.ErrAccountNotFound
		},
	})
	_, err := c.Account(context.Background(), alice)
	ne, ok := pulse.IsNetwork(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, ne.NotFound)
	assert.True(t, errors.Is(err, types.ErrAccountNotFound))
}

func TestRPC_InternalError(t *testing.T) {
	c := serve(t, &pulsetest.MockLedger{
		SimulateFn: func(context.Context, types.Envelope) (types.Simulation, error) {
			return types.Simulation{}, errors.New("disk on fire")
		},
	})
	_, err := c.Simulate(context.Background(), types.Envelope{Source: alice})
	ne, ok := pulse.IsNetwork(err)
	require.True(t, ok, "got %v", err)
	assert.False(t, ne.NotFound)
	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, rpc.CodeInternal, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "disk on fire")
}

func TestRPC_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := rpc.NewClient(url, time.Second).Account(context.Background(), alice)
	ne, ok := pulse.IsNetwork(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "account", ne.Op)
}

func TestRPC_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := rpc.NewClient(srv.URL, time.Second).Transaction(context.Background(), types.Hash{1})
	_, ok := pulse.IsNetwork(err)
	assert.True(t, ok, "got %v", err)
}

func TestServer_BadRequests(t *testing.T) {
	srv := httptest.NewServer(rpc.NewServer(&pulsetest.MockLedger{}, nil))
	defer srv.Close()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", `{`, rpc.CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","method":"pulse_getAccount","params":["x"],"id":1}`, rpc.CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"pulse_mine","params":["x"],"id":2}`, rpc.CodeMethodNotFound},
		{"no params", `{"jsonrpc":"2.0","method":"pulse_getAccount","params":[],"id":3}`, rpc.CodeInvalidParams},
		{"bad address", `{"jsonrpc":"2.0","method":"pulse_getAccount","params":["G123"],"id":4}`, rpc.CodeInvalidParams},
		{"bad payload", `{"jsonrpc":"2.0","method":"pulse_simulateTransaction","params":["!!"],"id":5}`, rpc.CodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			var out struct {
				Error *rpc.Error `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.code, out.Error.Code)
		})
	}

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRPC_Compliance(t *testing.T) {
	pulsetest.RunLedgerCompliance(t, func(t *testing.T) pulsetest.Fixture {
		net := devnet.New(devnet.WithAutoClose(true))
		return pulsetest.Fixture{Ledger: serve(t, net), Devnet: net}
	})
}
