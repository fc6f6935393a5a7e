package types

import "errors"

// ErrAccountNotFound is returned by ledgers when the requested account
// does not exist (has never been funded).
var ErrAccountNotFound = errors.New("account not found")

// Account is the sequence-bearing ledger record of a signer.
type Account struct {
	Address Address `cramberry:"1"`
	// Sequence is the last consumed sequence number. The next
	// transaction from this account must carry Sequence+1.
	Sequence uint64 `cramberry:"2"`
	// Balance of the native asset in stroops, informational only.
	Balance int64 `cramberry:"3"`
}

// NextSequence returns the sequence number the next transaction
// from this account must carry.
func (a Account) NextSequence() uint64 { return a.Sequence + 1 }
