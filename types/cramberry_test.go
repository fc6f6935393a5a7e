package types_test

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/blockberries/pulse/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 30, 45, 123456789, time.UTC))
	got := roundTrip(t, ts)
	if got != ts {
		t.Fatalf("Timestamp round-trip failed: got %+v, want %+v", got, ts)
	}
	goTime := got.ToTime()
	if goTime.Year() != 2024 || goTime.Month() != 6 || goTime.Day() != 15 {
		t.Fatalf("Timestamp.ToTime date wrong: %v", goTime)
	}
	if goTime.Nanosecond() != 123456789 {
		t.Fatalf("Timestamp.ToTime nanos wrong: %d", goTime.Nanosecond())
	}
}

func TestLedgerSeconds(t *testing.T) {
	at := time.Unix(1_700_000_000, 999).UTC()
	if got := types.LedgerSeconds(at); got != 1_700_000_000 {
		t.Fatalf("LedgerSeconds = %d", got)
	}
	if got := types.LedgerSeconds(time.Unix(-5, 0)); got != 0 {
		t.Fatalf("pre-epoch LedgerSeconds = %d, want 0", got)
	}
	if !types.FromLedgerSeconds(1_700_000_000).Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatal("FromLedgerSeconds mismatch")
	}
}

func TestAccount_RoundTrip(t *testing.T) {
	v := types.Account{Address: zeroAccount, Sequence: 41, Balance: 10_000_000}
	got := roundTrip(t, v)
	if got != v {
		t.Fatalf("Account round-trip failed: got %+v, want %+v", got, v)
	}
	if got.NextSequence() != 42 {
		t.Fatalf("NextSequence = %d, want 42", got.NextSequence())
	}
}

func TestInt128_BigRoundTrip(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(-1),
		new(big.Int).Lsh(big.NewInt(1), 64),
		max,
		min,
	}
	for _, x := range cases {
		p, err := types.Int128FromBig(x)
		if err != nil {
			t.Fatalf("Int128FromBig(%s): %v", x, err)
		}
		if p.Big().Cmp(x) != 0 {
			t.Fatalf("Int128 round-trip %s: got %s", x, p.Big())
		}
	}
	if _, err := types.Int128FromBig(new(big.Int).Add(max, big.NewInt(1))); err != types.ErrInt128Range {
		t.Fatalf("expected ErrInt128Range, got %v", err)
	}
	if _, err := types.Int128FromBig(new(big.Int).Sub(min, big.NewInt(1))); err != types.ErrInt128Range {
		t.Fatalf("expected ErrInt128Range, got %v", err)
	}
}

func TestInt128FromInt64(t *testing.T) {
	for _, v := range []int64{0, 7, -7, 1 << 62, -1 << 63} {
		if got := types.Int128FromInt64(v).Big().Int64(); got != v {
			t.Fatalf("Int128FromInt64(%d) = %d", v, got)
		}
	}
}

func TestValue_RoundTrip(t *testing.T) {
	v := types.Map(
		types.MapEntry{Key: types.Symbol("id"), Val: types.U32(7)},
		types.MapEntry{Key: types.Symbol("total_pool"), Val: types.I128(types.Int128FromInt64(500))},
		types.MapEntry{Key: types.Symbol("bin_totals"), Val: types.Vec(
			types.I128(types.Int128FromInt64(100)),
			types.I128(types.Int128FromInt64(400)),
		)},
		types.MapEntry{Key: types.Symbol("finalized"), Val: types.Bool(true)},
		types.MapEntry{Key: types.Symbol("seed"), Val: types.Bytes([]byte{1, 2, 3})},
	)
	got := roundTrip(t, v)
	if got.String() != v.String() {
		t.Fatalf("Value round-trip failed:\n got %s\nwant %s", got, v)
	}
	pool, ok := got.Field("total_pool")
	if !ok || pool.I128 == nil || pool.I128.Big().Int64() != 500 {
		t.Fatalf("Field(total_pool) = %v, %v", pool, ok)
	}
	if _, ok := got.Field("missing"); ok {
		t.Fatal("Field(missing) should not be found")
	}
	if _, ok := types.U32(1).Field("id"); ok {
		t.Fatal("Field on non-map should not be found")
	}
}

func TestValue_String(t *testing.T) {
	cases := map[string]types.Value{
		"void":          types.Void(),
		"true":          types.Bool(true),
		"3u32":          types.U32(3),
		"9u64":          types.U64(9),
		"-4i128":        types.I128(types.Int128FromInt64(-4)),
		"0x0aff":        types.Bytes([]byte{0x0a, 0xff}),
		":get_round":    types.Symbol("get_round"),
		"[1u32, 2u32]":  types.Vec(types.U32(1), types.U32(2)),
		"{:k 1u32}":     types.Map(types.MapEntry{Key: types.Symbol("k"), Val: types.U32(1)}),
		string(zeroKey): types.AddressValue(zeroKey),
	}
	for want, v := range cases {
		if got := v.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestBytesValue_Copies(t *testing.T) {
	b := []byte{1, 2, 3}
	v := types.Bytes(b)
	b[0] = 9
	if v.Bytes[0] != 1 {
		t.Fatal("Bytes must copy its input")
	}
}

func sampleEnvelope() types.Envelope {
	return types.Envelope{
		Source:     zeroAccount,
		Sequence:   12,
		Fee:        100,
		TimeBounds: types.TimeBounds{MaxTime: 1_700_000_030},
		Operation: types.Invocation{
			Contract: zeroContract,
			Function: "place_bet",
			Args: []types.Value{
				types.AddressValue(zeroAccount),
				types.U32(1),
				types.U32(2),
				types.I128(types.Int128FromInt64(50)),
			},
		},
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := sampleEnvelope()
	data, err := types.EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	got, err := types.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got.Source != env.Source || got.Sequence != env.Sequence || got.Fee != env.Fee {
		t.Fatalf("Envelope header mismatch: %+v", got)
	}
	if got.Operation.Function != "place_bet" || len(got.Operation.Args) != 4 {
		t.Fatalf("Invocation mismatch: %+v", got.Operation)
	}
	if got.Prepared() {
		t.Fatal("unprepared envelope decoded as prepared")
	}
}

func TestSignedEnvelope_RoundTrip(t *testing.T) {
	env := sampleEnvelope()
	env.Resources = &types.Resources{ReadWrite: []string{"round:1"}, ResourceFee: 9000}
	signed := types.SignedEnvelope{
		Envelope:   env,
		Signatures: []types.Signature{{Signer: zeroAccount, Data: []byte{0xde, 0xad}}},
	}
	data, err := types.EncodeSignedEnvelope(signed)
	if err != nil {
		t.Fatalf("EncodeSignedEnvelope: %v", err)
	}
	got, err := types.DecodeSignedEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeSignedEnvelope: %v", err)
	}
	if !got.Envelope.Prepared() || got.Envelope.Resources.ResourceFee != 9000 {
		t.Fatalf("Resources lost: %+v", got.Envelope.Resources)
	}
	if len(got.Signatures) != 1 || !bytes.Equal(got.Signatures[0].Data, []byte{0xde, 0xad}) {
		t.Fatalf("Signatures mismatch: %+v", got.Signatures)
	}
}

func TestSigningPayload_BindsNetwork(t *testing.T) {
	env := sampleEnvelope()
	a, err := env.SigningPayload("Test Network")
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.SigningPayload("Public Network")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 32 {
		t.Fatalf("payload length %d, want 32", len(a))
	}
	if bytes.Equal(a, b) {
		t.Fatal("payload must depend on the network passphrase")
	}
	again, _ := env.SigningPayload("Test Network")
	if !bytes.Equal(a, again) {
		t.Fatal("payload must be deterministic")
	}
	env.Sequence++
	other, _ := env.SigningPayload("Test Network")
	if bytes.Equal(a, other) {
		t.Fatal("payload must depend on envelope contents")
	}
}

func TestTxRecord_RoundTrip(t *testing.T) {
	rv := types.I128(types.Int128FromInt64(970))
	v := types.TxRecord{
		Hash:        types.Hash{0xAB},
		Status:      types.TxSuccess,
		ReturnValue: &rv,
		Diagnostics: []types.Diagnostic{{Event: "fn_return", Message: "claim"}},
		Ledger:      88,
		CreatedAt:   types.Timestamp{Seconds: 1000},
	}
	got := roundTrip(t, v)
	if got.Hash != v.Hash || got.Status != v.Status || got.Ledger != 88 {
		t.Fatalf("TxRecord round-trip failed: %+v", got)
	}
	if got.ReturnValue == nil || got.ReturnValue.String() != "970i128" {
		t.Fatalf("ReturnValue lost: %v", got.ReturnValue)
	}
	if !got.Status.Terminal() || types.TxPending.Terminal() || types.TxNotFound.Terminal() {
		t.Fatal("Terminal classification wrong")
	}
}

func TestSimulation_RoundTrip(t *testing.T) {
	rv := types.Void()
	v := types.Simulation{Result: &rv, MinResourceFee: 1234, LatestLedger: 5}
	got := roundTrip(t, v)
	if !got.OK() || got.MinResourceFee != 1234 {
		t.Fatalf("Simulation round-trip failed: %+v", got)
	}
	failed := types.Simulation{Error: "HostError: Error(Contract, #5)"}
	if roundTrip(t, failed).OK() {
		t.Fatal("failed simulation reported OK")
	}
}

func TestSendStatus_Accepted(t *testing.T) {
	if !types.SendPending.Accepted() {
		t.Fatal("PENDING is accepted")
	}
	for _, s := range []types.SendStatus{types.SendDuplicate, types.SendError, types.SendTryAgainLater} {
		if s.Accepted() {
			t.Fatalf("%s must not be accepted", s)
		}
	}
}

func TestHash_ParseString(t *testing.T) {
	h := types.Hash{0x01, 0xff}
	got, err := types.ParseHash(h.String())
	if err != nil || got != h {
		t.Fatalf("ParseHash(String()) = %v, %v", got, err)
	}
	if _, err := types.ParseHash("abc"); err == nil {
		t.Fatal("short hash should fail")
	}
	if _, err := types.ParseHash(string(bytes.Repeat([]byte("zz"), 32))); err == nil {
		t.Fatal("non-hex hash should fail")
	}
	if !(types.Hash{}).IsZero() || h.IsZero() {
		t.Fatal("IsZero wrong")
	}
}

// TestDeterminism verifies that the same struct always produces
// the same bytes (cramberry's core guarantee).
func TestDeterminism(t *testing.T) {
	v := sampleEnvelope()
	data1, err := types.EncodeEnvelope(v)
	if err != nil {
		t.Fatal(err)
	}
	data2, err := types.EncodeEnvelope(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(data1) != len(data2) {
		t.Fatalf("non-deterministic: len %d vs %d", len(data1), len(data2))
	}
	for i := range data1 {
		if data1[i] != data2[i] {
			t.Fatalf("non-deterministic at byte %d: 0x%02x vs 0x%02x", i, data1[i], data2[i])
		}
	}
}
