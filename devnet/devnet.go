// Package devnet is an in-memory ledger running the round contract.
//
// It implements pulse.Ledger with the behavior a client can observe on
// a real network: accounts with sequence numbers, simulation against a
// scratch copy of state, submission that queues PENDING transactions,
// and ledger closes that apply them. Transactions are authenticated
// with ed25519 keys from a Keyring.
package devnet

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/types"
)

// Compile-time interface check.
var _ pulse.Ledger = (*Devnet)(nil)

const (
	// DefaultPassphrase is the network passphrase of a devnet.
	DefaultPassphrase = "Pulse Devnet ; 2026"

	// MinInclusionFee is the smallest inclusion fee Send accepts.
	MinInclusionFee = 100

	// DefaultBalance is the native balance of a funded account.
	DefaultBalance int64 = 10_000_000_000

	baseResourceFee  = 5_000
	writeResourceFee = 1_000
	readResourceFee  = 200
)

// ResultFailed is the result code of a transaction whose invocation
// aborted.
const ResultFailed = "tx_failed"

// Send rejection codes.
const (
	ErrTxBadSeq              = "tx_bad_seq"
	ErrTxBadAuth             = "tx_bad_auth"
	ErrTxNoAccount           = "tx_no_account"
	ErrTxTooEarly            = "tx_too_early"
	ErrTxTooLate             = "tx_too_late"
	ErrTxInsufficientFee     = "tx_insufficient_fee"
	ErrTxInsufficientBalance = "tx_insufficient_balance"
	ErrTxMalformed           = "tx_malformed"
)

// Devnet is an in-memory ledger. It is safe for concurrent use.
type Devnet struct {
	mu sync.Mutex

	passphrase    string
	contractID    types.Address
	now           func() time.Time
	autoClose     bool
	pendingPolls  int
	notFoundPolls int
	log           *zap.Logger

	ledgerSeq uint32
	accounts  map[types.Address]*types.Account
	st        *state
	queue     []types.Hash
	txs       map[types.Hash]*entry
}

type entry struct {
	signed types.SignedEnvelope
	rec    types.TxRecord
	polls  int
}

// Option configures a Devnet.
type Option func(*Devnet)

// WithPassphrase sets the network passphrase signatures commit to.
func WithPassphrase(p string) Option {
	return func(d *Devnet) { d.passphrase = p }
}

// WithContract sets the address the round contract is deployed at.
func WithContract(a types.Address) Option {
	return func(d *Devnet) { d.contractID = a }
}

// WithClock sets the ledger clock.
func WithClock(now func() time.Time) Option {
	return func(d *Devnet) { d.now = now }
}

// WithAutoClose closes the ledger when a pending transaction is
// polled, after the number of PENDING answers set by WithPendingPolls.
// Without it, transactions stay pending until Close.
func WithAutoClose(on bool) Option {
	return func(d *Devnet) { d.autoClose = on }
}

// WithPendingPolls sets how many status queries a queued transaction
// answers PENDING before an automatic close.
func WithPendingPolls(n int) Option {
	return func(d *Devnet) { d.pendingPolls = n }
}

// WithNotFoundPolls makes a freshly submitted transaction answer
// NOT_FOUND to its first n status queries, the way a node that has not
// yet seen it would.
func WithNotFoundPolls(n int) Option {
	return func(d *Devnet) { d.notFoundPolls = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Devnet) { d.log = l }
}

// New creates an empty devnet. The contract is deployed but not
// initialized.
func New(opts ...Option) *Devnet {
	d := &Devnet{
		passphrase: DefaultPassphrase,
		now:        time.Now,
		accounts:   make(map[types.Address]*types.Account),
		st:         newState(),
		txs:        make(map[types.Hash]*entry),
		ledgerSeq:  1,
	}
	for _, o := range opts {
		o(d)
	}
	if d.contractID == "" {
		id := blake3.Sum256([]byte("pulse devnet contract"))
		d.contractID, _ = types.ContractAddress(id[:])
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	d.log = d.log.With(zap.String("component", "devnet"))
	return d
}

// Contract returns the round contract's address.
func (d *Devnet) Contract() types.Address { return d.contractID }

// Passphrase returns the network passphrase.
func (d *Devnet) Passphrase() string { return d.passphrase }

// LatestLedger returns the sequence of the last closed ledger.
func (d *Devnet) LatestLedger() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ledgerSeq
}

// Fund creates addr with the default native balance and credits it
// tokens of the contract's token. Funding an existing account only adds
// tokens.
func (d *Devnet) Fund(addr types.Address, tokens int64) (types.Account, error) {
	if !addr.IsAccount() {
		return types.Account{}, fmt.Errorf("devnet: fund %s: not an account address", addr)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[addr]
	if !ok {
		// New accounts start at a sequence derived from the ledger they
		// were created in.
		acct = &types.Account{Address: addr, Sequence: uint64(d.ledgerSeq) << 32, Balance: DefaultBalance}
		d.accounts[addr] = acct
	}
	d.st.tokens[addr] = new(big.Int).Add(d.st.balance(addr), big.NewInt(tokens))
	return *acct, nil
}

// TokenBalance returns addr's balance of the contract's token.
func (d *Devnet) TokenBalance(addr types.Address) *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return new(big.Int).Set(d.st.balance(addr))
}

// Pending returns the number of queued transactions.
func (d *Devnet) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Devnet) Account(ctx context.Context, addr types.Address) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[addr]
	if !ok {
		return types.Account{}, fmt.Errorf("%w: %s", types.ErrAccountNotFound, addr)
	}
	return *acct, nil
}

func (d *Devnet) Simulate(ctx context.Context, env types.Envelope) (types.Simulation, error) {
	if err := ctx.Err(); err != nil {
		return types.Simulation{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	sim := types.Simulation{LatestLedger: d.ledgerSeq}
	if _, ok := d.accounts[env.Source]; !ok {
		sim.Error = fmt.Sprintf("source account %s not found", env.Source)
		return sim, nil
	}
	res := d.run(d.st.clone(), env)
	sim.Diagnostics = res.diags
	if res.err != "" {
		sim.Error = res.err
		return sim, nil
	}
	sim.Result = &res.value
	sim.Resources = res.resources
	sim.MinResourceFee = res.resources.ResourceFee
	return sim, nil
}

func (d *Devnet) Send(ctx context.Context, signed types.SignedEnvelope) (types.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return types.SendResult{}, err
	}
	enc, err := types.EncodeSignedEnvelope(signed)
	if err != nil {
		return types.SendResult{}, fmt.Errorf("devnet: encode envelope: %w", err)
	}
	hash := types.Hash(blake3.Sum256(enc))

	d.mu.Lock()
	defer d.mu.Unlock()
	res := types.SendResult{Hash: hash, LatestLedger: d.ledgerSeq}
	if _, dup := d.txs[hash]; dup {
		res.Status = types.SendDuplicate
		return res, nil
	}
	if code := d.admit(signed); code != "" {
		d.log.Debug("transaction rejected", zap.Stringer("hash", hash), zap.String("code", code))
		res.Status = types.SendError
		res.ErrorResult = code
		return res, nil
	}

	env := signed.Envelope
	acct := d.accounts[env.Source]
	acct.Sequence = env.Sequence
	acct.Balance -= int64(env.Fee)

	d.txs[hash] = &entry{signed: signed, rec: types.TxRecord{Hash: hash, Status: types.TxPending}}
	d.queue = append(d.queue, hash)
	d.log.Debug("transaction queued", zap.Stringer("hash", hash), zap.String("call", env.Operation.Function))
	res.Status = types.SendPending
	return res, nil
}

// admit checks a submission and returns a rejection code, or "".
func (d *Devnet) admit(signed types.SignedEnvelope) string {
	env := signed.Envelope
	acct, ok := d.accounts[env.Source]
	switch {
	case !ok:
		return ErrTxNoAccount
	case !env.Prepared():
		return ErrTxMalformed
	case env.Sequence != acct.NextSequence():
		return ErrTxBadSeq
	}
	now := types.LedgerSeconds(d.now())
	if env.TimeBounds.MinTime != 0 && now < env.TimeBounds.MinTime {
		return ErrTxTooEarly
	}
	if env.TimeBounds.MaxTime != 0 && now > env.TimeBounds.MaxTime {
		return ErrTxTooLate
	}
	if int64(env.Fee) < MinInclusionFee+env.Resources.ResourceFee {
		return ErrTxInsufficientFee
	}
	if acct.Balance < int64(env.Fee) {
		return ErrTxInsufficientBalance
	}
	if !d.verify(signed) {
		return ErrTxBadAuth
	}
	return ""
}

func (d *Devnet) verify(signed types.SignedEnvelope) bool {
	payload, err := signed.Envelope.SigningPayload(d.passphrase)
	if err != nil {
		return false
	}
	for _, sig := range signed.Signatures {
		if sig.Signer != signed.Envelope.Source {
			continue
		}
		pub, err := sig.Signer.Payload()
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub), payload, sig.Data)
	}
	return false
}

func (d *Devnet) Transaction(ctx context.Context, hash types.Hash) (types.TxRecord, error) {
	if err := ctx.Err(); err != nil {
		return types.TxRecord{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.txs[hash]
	if !ok {
		return types.TxRecord{Hash: hash, Status: types.TxNotFound}, nil
	}
	if e.rec.Status == types.TxPending {
		e.polls++
		if e.polls <= d.notFoundPolls {
			return types.TxRecord{Hash: hash, Status: types.TxNotFound}, nil
		}
		if d.autoClose && e.polls > d.notFoundPolls+d.pendingPolls {
			d.close()
		}
	}
	return copyRecord(e.rec), nil
}

// Close closes one ledger: every queued transaction is applied in
// submission order. It returns the new ledger sequence.
func (d *Devnet) Close() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.close()
}

func (d *Devnet) close() uint32 {
	d.ledgerSeq++
	closeTime := d.now()
	for _, h := range d.queue {
		e := d.txs[h]
		env := e.signed.Envelope
		e.rec.Ledger = d.ledgerSeq
		e.rec.CreatedAt = types.TimeToTimestamp(closeTime)

		if env.TimeBounds.MaxTime != 0 && types.LedgerSeconds(closeTime) > env.TimeBounds.MaxTime {
			e.rec.Status = types.TxFailed
			e.rec.ResultCode = ErrTxTooLate
			continue
		}
		scratch := d.st.clone()
		res := d.run(scratch, env)
		e.rec.Diagnostics = res.diags
		if res.err != "" {
			e.rec.Status = types.TxFailed
			e.rec.ResultCode = ResultFailed
			d.log.Debug("transaction failed", zap.Stringer("hash", h), zap.String("error", res.err))
			continue
		}
		if !footprintCovers(env.Resources, res.resources) {
			e.rec.Status = types.TxFailed
			e.rec.ResultCode = "tx_resource_limit_exceeded"
			continue
		}
		d.st = scratch
		v := res.value
		e.rec.Status = types.TxSuccess
		e.rec.ReturnValue = &v
	}
	if len(d.queue) > 0 {
		d.log.Debug("ledger closed", zap.Uint32("ledger", d.ledgerSeq), zap.Int("txs", len(d.queue)))
	}
	d.queue = nil
	return d.ledgerSeq
}

// result is the outcome of running one invocation.
type result struct {
	value     types.Value
	err       string
	diags     []types.Diagnostic
	resources types.Resources
}

// run executes env's invocation against st, which it mutates.
func (d *Devnet) run(st *state, env types.Envelope) (res result) {
	op := env.Operation
	if op.Contract != d.contractID {
		res.err = fmt.Sprintf("HostError: Error(Storage, MissingValue): contract %s not found", op.Contract)
		return res
	}
	args, err := contract.ParseArgs(op.Function, op.Args)
	if err != nil {
		res.err = "HostError: Error(Value, UnexpectedType): " + err.Error()
		return res
	}

	in := &invocation{
		st:       st,
		self:     d.contractID,
		invoker:  env.Source,
		now:      types.LedgerSeconds(d.now()),
		footRead: make(map[string]bool),
		footRW:   make(map[string]bool),
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var msg string
		switch v := r.(type) {
		case abortion:
			msg = v.msg
		case error:
			msg = v.Error()
		default:
			msg = fmt.Sprint(v)
		}
		res = result{
			err:   "HostError: Error(WasmVm, InvalidAction): " + msg,
			diags: append(in.events, types.Diagnostic{Event: "panic", Message: msg}),
		}
	}()

	res.value = in.dispatch(op.Function, args)
	res.diags = in.events
	res.resources = footprint(in)
	return res
}

func footprint(in *invocation) types.Resources {
	var r types.Resources
	for k := range in.footRW {
		r.ReadWrite = append(r.ReadWrite, k)
	}
	for k := range in.footRead {
		if !in.footRW[k] {
			r.ReadOnly = append(r.ReadOnly, k)
		}
	}
	sort.Strings(r.ReadOnly)
	sort.Strings(r.ReadWrite)
	r.Instructions = uint32(100_000 * (1 + len(r.ReadOnly) + len(r.ReadWrite)))
	r.ReadBytes = uint32(256 * (len(r.ReadOnly) + len(r.ReadWrite)))
	r.WriteBytes = uint32(256 * len(r.ReadWrite))
	r.ResourceFee = int64(baseResourceFee + writeResourceFee*len(r.ReadWrite) + readResourceFee*len(r.ReadOnly))
	return r
}

// footprintCovers reports whether the declared footprint includes every
// key the execution touched.
func footprintCovers(declared *types.Resources, used types.Resources) bool {
	if declared == nil {
		return false
	}
	rw := make(map[string]bool, len(declared.ReadWrite))
	for _, k := range declared.ReadWrite {
		rw[k] = true
	}
	ro := make(map[string]bool, len(declared.ReadOnly))
	for _, k := range declared.ReadOnly {
		ro[k] = true
	}
	for _, k := range used.ReadWrite {
		if !rw[k] {
			return false
		}
	}
	for _, k := range used.ReadOnly {
		if !rw[k] && !ro[k] {
			return false
		}
	}
	return true
}

func copyRecord(rec types.TxRecord) types.TxRecord {
	rec.Diagnostics = append([]types.Diagnostic(nil), rec.Diagnostics...)
	if rec.ReturnValue != nil {
		v := *rec.ReturnValue
		rec.ReturnValue = &v
	}
	return rec
}
