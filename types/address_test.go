package types_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/blockberries/pulse/types"
)

const (
	zeroAccount  types.Address = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
	zeroContract types.Address = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4"
	zeroKey                    = zeroAccount
)

func TestAccountAddress_KnownVectors(t *testing.T) {
	got, err := types.AccountAddress(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	if got != zeroAccount {
		t.Fatalf("zero key = %s, want %s", got, zeroAccount)
	}

	seq := make([]byte, 32)
	for i := range seq {
		seq[i] = byte(i)
	}
	got, err = types.AccountAddress(seq)
	if err != nil {
		t.Fatal(err)
	}
	const want = "GAAACAQDAQCQMBYIBEFAWDANBYHRAEISCMKBKFQXDAMRUGY4DUPB7JZX"
	if got != want {
		t.Fatalf("sequential key = %s, want %s", got, want)
	}
	payload, err := got.Payload()
	if err != nil || !bytes.Equal(payload, seq) {
		t.Fatalf("Payload() = %x, %v", payload, err)
	}
}

func TestContractAddress_KnownVector(t *testing.T) {
	got, err := types.ContractAddress(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	if got != zeroContract {
		t.Fatalf("zero contract = %s, want %s", got, zeroContract)
	}
	if !got.IsContract() || got.IsAccount() {
		t.Fatal("contract address misclassified")
	}
	if !zeroAccount.IsAccount() || zeroAccount.IsContract() {
		t.Fatal("account address misclassified")
	}
}

func TestParseAddress_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"short":        "GAAAA",
		"bad prefix":   "XAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF",
		"bad checksum": "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHG",
		"bad alphabet": "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAW1F",
		"lowercase":    "gaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaawhf",
	}
	for name, s := range cases {
		if _, err := types.ParseAddress(s); !errors.Is(err, types.ErrInvalidAddress) {
			t.Errorf("%s: expected ErrInvalidAddress, got %v", name, err)
		}
	}
}

func TestParseAddress_Accepts(t *testing.T) {
	for _, s := range []types.Address{zeroAccount, zeroContract} {
		got, err := types.ParseAddress(string(s))
		if err != nil {
			t.Fatalf("ParseAddress(%s): %v", s, err)
		}
		if got.Validate() != nil {
			t.Fatalf("Validate(%s) failed", s)
		}
	}
}

func TestAccountAddress_WrongLength(t *testing.T) {
	if _, err := types.AccountAddress(make([]byte, 31)); !errors.Is(err, types.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}
