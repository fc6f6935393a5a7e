package local_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/devnet"
	"github.com/blockberries/pulse/local"
	pulsetest "github.com/blockberries/pulse/testing"
	"github.com/blockberries/pulse/types"
)

const alice types.Address = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

func TestLocalConnection_PassThrough(t *testing.T) {
	ledger := &pulsetest.MockLedger{}
	conn := local.NewConnection(ledger)
	defer conn.Close()

	acct, err := conn.Account(context.Background(), alice)
	if err != nil {
		t.Fatalf("account failed: %v", err)
	}
	if acct.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", acct.Sequence)
	}

	sim, err := conn.Simulate(context.Background(), types.Envelope{Source: alice})
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if !sim.OK() {
		t.Error("expected successful simulation")
	}

	res, err := conn.Send(context.Background(), types.SignedEnvelope{})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	rec, err := conn.Transaction(context.Background(), res.Hash)
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if rec.Status != types.TxSuccess {
		t.Errorf("expected SUCCESS, got %s", rec.Status)
	}

	if ledger.NetworkCalls() != 4 {
		t.Errorf("expected 4 ledger calls, got %d", ledger.NetworkCalls())
	}
	if conn.Ledger() != ledger {
		t.Error("Ledger() should return the wrapped ledger")
	}
}

func TestLocalConnection_ErrorsPassThrough(t *testing.T) {
	ledger := &pulsetest.MockLedger{
		AccountFn: func(context.Context, types.Address) (types.Account, error) {
			return types.Account{}, types.ErrAccountNotFound
		},
	}
	conn := local.NewConnection(ledger)

	_, err := conn.Account(context.Background(), alice)
	if !errors.Is(err, types.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLocalConnection_Closed(t *testing.T) {
	ledger := &pulsetest.MockLedger{}
	conn := local.NewConnection(ledger)
	if err := conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	_, err := conn.Account(context.Background(), alice)
	ne, ok := pulse.IsNetwork(err)
	if !ok {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !errors.Is(ne, local.ErrClosed) {
		t.Errorf("expected local.ErrClosed, got %v", ne.Err)
	}
	if ledger.NetworkCalls() != 0 {
		t.Error("closed connection reached the ledger")
	}
}

func TestLocalConnection_CallTimeout(t *testing.T) {
	ledger := &pulsetest.MockLedger{
		TransactionFn: func(ctx context.Context, h types.Hash) (types.TxRecord, error) {
			time.Sleep(30 * time.Millisecond)
			return types.TxRecord{Hash: h, Status: types.TxSuccess}, nil
		},
	}
	conn := local.NewConnection(ledger, local.WithCallTimeout(5*time.Millisecond))

	_, err := conn.Transaction(context.Background(), types.Hash{1})
	ne, ok := pulse.IsNetwork(err)
	if !ok {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !errors.Is(ne, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", ne.Err)
	}
}

func TestLocalConnection_CancelledContext(t *testing.T) {
	ledger := &pulsetest.MockLedger{}
	conn := local.NewConnection(ledger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Account(ctx, alice)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ledger.NetworkCalls() != 0 {
		t.Error("cancelled call reached the ledger")
	}
}

func TestLocalConnection_Panic(t *testing.T) {
	ledger := &pulsetest.MockLedger{
		SimulateFn: func(context.Context, types.Envelope) (types.Simulation, error) {
			panic("nil map")
		},
	}
	conn := local.NewConnection(ledger)

	_, err := conn.Simulate(context.Background(), types.Envelope{})
	ne, ok := pulse.IsNetwork(err)
	if !ok {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Op != "simulate" {
		t.Errorf("expected op simulate, got %s", ne.Op)
	}
}

func TestLocalConnection_Compliance(t *testing.T) {
	pulsetest.RunLedgerCompliance(t, func(t *testing.T) pulsetest.Fixture {
		net := devnet.New()
		conn := local.NewConnection(net, local.WithCallTimeout(5*time.Second))
		t.Cleanup(func() { conn.Close() })
		return pulsetest.Fixture{Ledger: conn, Devnet: net}
	})
}
