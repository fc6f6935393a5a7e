package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// maxRequestBytes bounds a request body.
const maxRequestBytes = 1 << 20

// Server exposes a pulse.Ledger as a JSON-RPC 2.0 HTTP handler.
type Server struct {
	ledger pulse.Ledger
	log    *zap.Logger
}

// NewServer returns a handler for ledger. log may be nil.
func NewServer(ledger pulse.Ledger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ledger: ledger, log: log.With(zap.String("component", "rpc"))}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.reply(w, 0, nil, &Error{Code: CodeParseError, Message: err.Error()})
		return
	}
	var req struct {
		JSONRPC string            `json:"jsonrpc"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params"`
		ID      uint64            `json:"id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.reply(w, 0, nil, &Error{Code: CodeParseError, Message: err.Error()})
		return
	}
	if req.JSONRPC != "2.0" {
		s.reply(w, req.ID, nil, &Error{Code: CodeInvalidRequest, Message: "jsonrpc must be 2.0"})
		return
	}
	if len(req.Params) != 1 {
		s.reply(w, req.ID, nil, &Error{Code: CodeInvalidParams, Message: errNoParams.Error()})
		return
	}
	var param string
	if err := json.Unmarshal(req.Params[0], &param); err != nil {
		s.reply(w, req.ID, nil, &Error{Code: CodeInvalidParams, Message: "parameter must be a string"})
		return
	}

	result, rpcErr := s.dispatch(r.Context(), req.Method, param)
	if rpcErr != nil {
		s.log.Debug("call failed", zap.String("method", req.Method), zap.Int("code", rpcErr.Code), zap.String("error", rpcErr.Message))
	}
	s.reply(w, req.ID, result, rpcErr)
}

func (s *Server) dispatch(ctx context.Context, method, param string) (any, *Error) {
	switch method {
	case MethodGetAccount:
		addr, err := types.ParseAddress(param)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		acct, err := s.ledger.Account(ctx, addr)
		return result(&acct, err)
	case MethodSimulate:
		var env types.Envelope
		if err := decode(param, &env); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		sim, err := s.ledger.Simulate(ctx, env)
		return result(&sim, err)
	case MethodSend:
		var env types.SignedEnvelope
		if err := decode(param, &env); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		res, err := s.ledger.Send(ctx, env)
		return result(&res, err)
	case MethodGetTransaction:
		hash, err := types.ParseHash(param)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		rec, err := s.ledger.Transaction(ctx, hash)
		return result(&rec, err)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: "method " + method + " not found"}
	}
}

func result(v any, err error) (any, *Error) {
	if err != nil {
		if errors.Is(err, types.ErrAccountNotFound) {
			return nil, &Error{Code: CodeNotFound, Message: err.Error()}
		}
		return nil, &Error{Code: CodeInternal, Message: err.Error()}
	}
	p, err := encode(v)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: err.Error()}
	}
	return p, nil
}

func (s *Server) reply(w http.ResponseWriter, id uint64, result any, rpcErr *Error) {
	resp := struct {
		JSONRPC string `json:"jsonrpc"`
		Result  any    `json:"result,omitempty"`
		Error   *Error `json:"error,omitempty"`
		ID      uint64 `json:"id"`
	}{JSONRPC: "2.0", Result: result, Error: rpcErr, ID: id}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}
