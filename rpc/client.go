// Package rpc is the JSON-RPC 2.0 ledger transport. Ledger values
// travel as base64 cramberry encodings inside JSON so that envelopes
// are byte-identical on both sides.
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"go.uber.org/zap"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Method names.
const (
	MethodGetAccount     = "pulse_getAccount"
	MethodSimulate       = "pulse_simulateTransaction"
	MethodSend           = "pulse_sendTransaction"
	MethodGetTransaction = "pulse_getTransaction"
)

// Error codes beyond the JSON-RPC 2.0 reserved range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeNotFound       = -32004
)

// maxResponseBytes bounds a response body.
const maxResponseBytes = 8 << 20

var _ pulse.Connection = (*Client)(nil)

// Client implements pulse.Connection over JSON-RPC.
type Client struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64
	log        *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client posting to endpoint. Per-call deadlines
// come from the caller's context; timeout bounds each HTTP exchange
// and defaults to 30s.
func NewClient(endpoint string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("component", "rpc"))
	return c
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, op, method string, params []any, result any) error {
	body, err := json.Marshal(&request{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return fmt.Errorf("rpc: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &pulse.NetworkError{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &pulse.NetworkError{Op: op, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &pulse.NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &pulse.NetworkError{Op: op, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return &pulse.NetworkError{Op: op, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if r.Error != nil {
		if r.Error.Code == CodeNotFound {
			return &pulse.NetworkError{Op: op, NotFound: true, Err: fmt.Errorf("%w: %s", types.ErrAccountNotFound, r.Error.Message)}
		}
		return &pulse.NetworkError{Op: op, Err: r.Error}
	}
	var payload string
	if err := json.Unmarshal(r.Result, &payload); err != nil {
		return &pulse.NetworkError{Op: op, Err: fmt.Errorf("result is not a string: %w", err)}
	}
	if err := decode(payload, result); err != nil {
		return &pulse.NetworkError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) Account(ctx context.Context, addr types.Address) (types.Account, error) {
	var acct types.Account
	err := c.call(ctx, "account", MethodGetAccount, []any{addr.String()}, &acct)
	return acct, err
}

func (c *Client) Simulate(ctx context.Context, env types.Envelope) (types.Simulation, error) {
	p, err := encode(&env)
	if err != nil {
		return types.Simulation{}, err
	}
	var sim types.Simulation
	err = c.call(ctx, "simulate", MethodSimulate, []any{p}, &sim)
	return sim, err
}

func (c *Client) Send(ctx context.Context, env types.SignedEnvelope) (types.SendResult, error) {
	p, err := encode(&env)
	if err != nil {
		return types.SendResult{}, err
	}
	var res types.SendResult
	err = c.call(ctx, "send", MethodSend, []any{p}, &res)
	return res, err
}

func (c *Client) Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error) {
	var rec types.TxRecord
	err := c.call(ctx, "transaction", MethodGetTransaction, []any{hash.String()}, &rec)
	return rec, err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func encode(v any) (string, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("rpc: cramberry marshal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decode(s string, v any) error {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("rpc: payload is not base64: %w", err)
	}
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: cramberry unmarshal: %w", err)
	}
	return nil
}

var errNoParams = errors.New("expected exactly one parameter")
