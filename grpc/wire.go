package pulsegrpc

import "github.com/blockberries/pulse/types"

// Transport-specific request types for RPC methods whose interface
// parameters are not a single struct.

// AccountRequest wraps the parameter for Ledger.Account.
type AccountRequest struct {
	Address types.Address `cramberry:"1"`
}

// TransactionRequest wraps the parameter for Ledger.Transaction.
type TransactionRequest struct {
	Hash types.Hash `cramberry:"1"`
}
