package pulsetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/devnet"
	"github.com/blockberries/pulse/pipeline"
	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

// Fixture is a ledger under test together with the devnet it reaches,
// which the suite uses to fund accounts and close ledgers.
type Fixture struct {
	Ledger pulse.Ledger
	Devnet *devnet.Devnet
}

// RunLedgerCompliance runs a standard suite against a pulse.Ledger
// transport to verify it carries every ledger operation faithfully.
//
// The factory function should return a fresh fixture for each test.
func RunLedgerCompliance(t *testing.T, factory func(t *testing.T) Fixture) {
	t.Helper()

	t.Run("account_not_found", func(t *testing.T) {
		f := factory(t)
		keys := devnet.NewKeyring()
		addr, err := keys.Derive("nobody")
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.Ledger.Account(context.Background(), addr)
		if !errors.Is(err, types.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound in chain, got %v", err)
		}
	})

	t.Run("funded_account", func(t *testing.T) {
		f := factory(t)
		u := newSuiteUser(t, f, "funded")
		acct, err := f.Ledger.Account(context.Background(), u.addr)
		if err != nil {
			t.Fatalf("Account: %v", err)
		}
		if acct.Address != u.addr || acct.Sequence != u.acct.Sequence {
			t.Errorf("Account = %+v, want %+v", acct, u.acct)
		}
	})

	t.Run("simulate_read", func(t *testing.T) {
		f := factory(t)
		u := newSuiteUser(t, f, "reader")
		env := u.build(t, contract.GetAdmin())
		sim, err := f.Ledger.Simulate(context.Background(), env)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		if !sim.OK() {
			t.Fatalf("simulation failed: %s", sim.Error)
		}
		if sim.Result.Kind != types.KindVoid {
			t.Errorf("get_admin before initialize = %s, want void", sim.Result)
		}
	})

	t.Run("simulate_failure_is_data", func(t *testing.T) {
		f := factory(t)
		u := newSuiteUser(t, f, "sim-fail")
		call, err := contract.FinalizeRound(1, round.Digest{})
		if err != nil {
			t.Fatal(err)
		}
		env := u.build(t, call)
		sim, err := f.Ledger.Simulate(context.Background(), env)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		if sim.OK() {
			t.Fatal("expected a failed simulation")
		}
		if code := contract.ErrorCode(sim.Diagnostics, sim.Error); code != contract.ErrCodeNotInitialized {
			t.Errorf("code = %q, want %q", code, contract.ErrCodeNotInitialized)
		}
	})

	t.Run("send_and_finalize", func(t *testing.T) {
		f := factory(t)
		u := newSuiteUser(t, f, "sender")
		signed := u.signed(t, f)

		res, err := f.Ledger.Send(context.Background(), signed)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if res.Status != types.SendPending {
			t.Fatalf("Send status = %s (%s), want PENDING", res.Status, res.ErrorResult)
		}
		f.Devnet.Close()

		rec, err := f.Ledger.Transaction(context.Background(), res.Hash)
		if err != nil {
			t.Fatalf("Transaction: %v", err)
		}
		if rec.Status != types.TxSuccess {
			t.Fatalf("status = %s (%s), want SUCCESS", rec.Status, rec.ResultCode)
		}
		if rec.ReturnValue == nil || rec.ReturnValue.Kind != types.KindVoid {
			t.Errorf("return value = %v, want void", rec.ReturnValue)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		f := factory(t)
		u := newSuiteUser(t, f, "dup")
		signed := u.signed(t, f)
		if _, err := f.Ledger.Send(context.Background(), signed); err != nil {
			t.Fatalf("Send: %v", err)
		}
		res, err := f.Ledger.Send(context.Background(), signed)
		if err != nil {
			t.Fatalf("second Send: %v", err)
		}
		if res.Status != types.SendDuplicate {
			t.Errorf("second Send = %s, want DUPLICATE", res.Status)
		}
	})

	t.Run("bad_sequence", func(t *testing.T) {
		f := factory(t)
		u := newSuiteUser(t, f, "badseq")
		u.acct.Sequence += 5
		signed := u.signed(t, f)
		res, err := f.Ledger.Send(context.Background(), signed)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if res.Status != types.SendError || res.ErrorResult != devnet.ErrTxBadSeq {
			t.Errorf("Send = %s %q, want ERROR %q", res.Status, res.ErrorResult, devnet.ErrTxBadSeq)
		}
	})

	t.Run("unknown_transaction", func(t *testing.T) {
		f := factory(t)
		rec, err := f.Ledger.Transaction(context.Background(), types.Hash{0xde, 0xad})
		if err != nil {
			t.Fatalf("Transaction: %v", err)
		}
		if rec.Status != types.TxNotFound {
			t.Errorf("status = %s, want NOT_FOUND", rec.Status)
		}
	})
}

type suiteUser struct {
	addr    types.Address
	acct    types.Account
	signer  *devnet.KeySigner
	builder pipeline.Builder
}

func newSuiteUser(t *testing.T, f Fixture, name string) *suiteUser {
	t.Helper()
	keys := devnet.NewKeyring()
	addr, err := keys.Derive(name)
	if err != nil {
		t.Fatal(err)
	}
	acct, err := f.Devnet.Fund(addr, 0)
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	s, _ := keys.Signer(addr)
	return &suiteUser{
		addr:    addr,
		acct:    acct,
		signer:  s,
		builder: pipeline.Builder{Contract: f.Devnet.Contract(), BaseFee: pipeline.DefaultBaseFee, Timeout: time.Minute},
	}
}

func (u *suiteUser) build(t *testing.T, call contract.Call) types.Envelope {
	t.Helper()
	env, err := u.builder.Build(u.acct, call)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return env
}

// signed builds, simulates, prepares and signs an initialize call
// naming the user as admin.
func (u *suiteUser) signed(t *testing.T, f Fixture) types.SignedEnvelope {
	t.Helper()
	call, err := contract.Initialize(u.addr, u.addr)
	if err != nil {
		t.Fatal(err)
	}
	env := u.build(t, call)
	sim, err := f.Ledger.Simulate(context.Background(), env)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	prepared, err := pipeline.Prepare(env, sim)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	enc, err := types.EncodeEnvelope(prepared)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := u.signer.Sign(context.Background(), enc, f.Devnet.Passphrase())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signed, err := types.DecodeSignedEnvelope(raw)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}
