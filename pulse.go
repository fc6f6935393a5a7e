// Package pulse defines the boundary between the round client and the
// two collaborators it never owns: the remote ledger that runs the
// prediction-market contract, and the wallet agent that holds the
// signing key.
//
// The [Ledger] interface is the ledger RPC surface. [Signer] is the
// only place key material is touched. Everything else in this module
// (building, simulating, preparing, submitting and polling
// transactions, and deriving round state) is written against these
// two interfaces.
package pulse

import (
	"context"

	"github.com/blockberries/pulse/types"
)

// Ledger is the remote ledger RPC surface the client consumes.
//
// Implementations must be safe for concurrent use. Read-only calls
// (Account, Simulate, Transaction) may run in parallel with each other
// and with an in-flight Send.
type Ledger interface {
	// Account returns the current sequence-bearing record for addr.
	// An unfunded address returns an error wrapping
	// types.ErrAccountNotFound.
	Account(ctx context.Context, addr types.Address) (types.Account, error)

	// Simulate dry-runs env against current ledger state. A failed
	// simulation is reported in the returned Simulation, not as an
	// error; errors are reserved for transport failures.
	Simulate(ctx context.Context, env types.Envelope) (types.Simulation, error)

	// Send broadcasts a signed envelope and returns its hash and the
	// ledger's immediate acceptance status.
	Send(ctx context.Context, env types.SignedEnvelope) (types.SendResult, error)

	// Transaction returns the current status of a submitted
	// transaction. NOT_FOUND is a normal answer shortly after Send.
	Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error)
}

// Connection is a Ledger that holds a transport resource.
type Connection interface {
	Ledger
	Close() error
}

// Signer is the external wallet agent.
//
// Sign receives the encoded prepared envelope and the network
// passphrase and returns the encoded signed envelope. A user
// rejection is reported as an error; implementations should return
// a *SigningError with Rejected set.
type Signer interface {
	Address(ctx context.Context) (types.Address, error)
	Sign(ctx context.Context, envelope []byte, networkID string) ([]byte, error)
}
