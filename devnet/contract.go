package devnet

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/blockberries/pulse/contract"
	"github.com/blockberries/pulse/round"
	"github.com/blockberries/pulse/types"
)

type betKey struct {
	round uint32
	bin   uint32
	user  types.Address
}

type claimKey struct {
	round uint32
	user  types.Address
}

// state is the round contract's storage plus the token balances it
// moves. Simulations run against a clone.
type state struct {
	admin   types.Address
	token   types.Address
	rounds  map[uint32]round.Round
	commits map[uint32]round.Digest
	bets    map[betKey]*big.Int
	claimed map[claimKey]bool
	tokens  map[types.Address]*big.Int
}

func newState() *state {
	return &state{
		rounds:  make(map[uint32]round.Round),
		commits: make(map[uint32]round.Digest),
		bets:    make(map[betKey]*big.Int),
		claimed: make(map[claimKey]bool),
		tokens:  make(map[types.Address]*big.Int),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.admin, c.token = s.admin, s.token
	for k, v := range s.rounds {
		c.rounds[k] = v.Clone()
	}
	for k, v := range s.commits {
		c.commits[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = new(big.Int).Set(v)
	}
	for k, v := range s.claimed {
		c.claimed[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = new(big.Int).Set(v)
	}
	return c
}

func (s *state) balance(a types.Address) *big.Int {
	if b, ok := s.tokens[a]; ok {
		return b
	}
	return new(big.Int)
}

func (s *state) transfer(from, to types.Address, amount *big.Int) {
	fb := s.balance(from)
	if fb.Cmp(amount) < 0 {
		abort("balance is not sufficient to spend: %s < %s", fb, amount)
	}
	s.tokens[from] = new(big.Int).Sub(fb, amount)
	s.tokens[to] = new(big.Int).Add(s.balance(to), amount)
}

// abortion is a contract panic. It fails the invocation and rolls back
// every write.
type abortion struct {
	msg string
}

func abort(format string, args ...any) {
	panic(abortion{msg: fmt.Sprintf(format, args...)})
}

// invocation is one contract call in progress.
type invocation struct {
	st       *state
	self     types.Address
	invoker  types.Address
	now      uint64
	events   []types.Diagnostic
	footRead map[string]bool
	footRW   map[string]bool
}

func (in *invocation) requireAuth(a types.Address) {
	if a != in.invoker {
		abort("%s: %s did not authorize", contract.ErrCodeUnauthorized, a)
	}
}

func (in *invocation) read(key string)  { in.footRead[key] = true }
func (in *invocation) write(key string) { in.footRW[key] = true }

func (in *invocation) emit(topic string, data ...types.Value) {
	in.events = append(in.events, types.Diagnostic{Event: "contract", Message: topic, Data: data})
}

func (in *invocation) needAdmin() types.Address {
	in.read("instance")
	if in.st.admin == "" {
		abort(contract.ErrCodeNotInitialized)
	}
	return in.st.admin
}

func (in *invocation) loadRound(id uint32) round.Round {
	in.read(roundKey(id))
	r, ok := in.st.rounds[id]
	if !ok {
		abort(contract.ErrCodeRoundNotFound)
	}
	return r.Clone()
}

func (in *invocation) storeRound(r round.Round) {
	in.write(roundKey(r.ID))
	in.st.rounds[r.ID] = r
}

// dispatch runs one contract function. Contract panics propagate as
// abortion values.
func (in *invocation) dispatch(fn string, a contract.Args) types.Value {
	switch fn {
	case contract.FnInitialize:
		return in.initialize(a.Address(0), a.Address(1))
	case contract.FnCreateRound:
		return in.createRound(a.Address(0), a.U32(1), a.U64(2), a.Digest(3))
	case contract.FnPlaceBet:
		return in.placeBet(a.Address(0), a.U32(1), a.U32(2), a.I128(3))
	case contract.FnFinalizeRound:
		return in.finalizeRound(a.U32(0), a.Digest(1))
	case contract.FnClaim:
		return in.claim(a.Address(0), a.U32(1))
	case contract.FnGetRound:
		return in.getRound(a.U32(0))
	case contract.FnGetUserBet:
		return in.getUserBet(a.U32(0), a.U32(1), a.Address(2))
	case contract.FnHasClaimed:
		return in.hasClaimed(a.U32(0), a.Address(1))
	case contract.FnGetAdmin:
		in.read("instance")
		return optionalAddress(in.st.admin)
	case contract.FnGetToken:
		in.read("instance")
		return optionalAddress(in.st.token)
	default:
		abort("function %q not found", fn)
		return types.Void()
	}
}

func (in *invocation) initialize(admin, token types.Address) types.Value {
	in.read("instance")
	if in.st.admin != "" {
		abort(contract.ErrCodeAlreadyInitialized)
	}
	in.requireAuth(admin)
	in.write("instance")
	in.st.admin, in.st.token = admin, token
	in.emit("initialize", types.AddressValue(admin), types.AddressValue(token))
	return types.Void()
}

func (in *invocation) createRound(admin types.Address, id uint32, endTime uint64, commit round.Digest) types.Value {
	stored := in.needAdmin()
	if admin != stored {
		abort("%s: %s is not the admin", contract.ErrCodeUnauthorized, admin)
	}
	in.requireAuth(stored)
	if id == 0 {
		abort("round id must be positive")
	}
	if endTime <= in.now {
		abort(contract.MsgEndTimeInPast)
	}

	r := round.Round{
		ID:        id,
		EndTime:   types.FromLedgerSeconds(endTime),
		TotalPool: new(big.Int),
	}
	for i := range r.BinTotals {
		r.BinTotals[i] = new(big.Int)
	}
	in.storeRound(r)
	in.write(commitKey(id))
	in.st.commits[id] = commit
	in.emit("round_created", types.U32(id), types.U64(endTime))
	return types.Void()
}

func (in *invocation) placeBet(user types.Address, id, bin uint32, amount *big.Int) types.Value {
	in.requireAuth(user)
	if amount.Cmp(big.NewInt(round.MinBet)) < 0 {
		abort(contract.ErrCodeInvalidAmount)
	}
	if bin >= round.NumBins {
		abort(contract.ErrCodeInvalidBin)
	}
	r := in.loadRound(id)
	end := types.LedgerSeconds(r.EndTime)
	if in.now >= end {
		abort(contract.ErrCodeRoundClosed)
	}
	if in.now+uint64(round.SnipingWindow.Seconds()) >= end {
		abort(contract.MsgBettingClosed)
	}

	in.needAdmin()
	in.write(tokenKey(user))
	in.write(tokenKey(in.self))
	in.st.transfer(user, in.self, amount)

	r.BinTotals[bin] = new(big.Int).Add(r.BinTotals[bin], amount)
	r.TotalPool = new(big.Int).Add(r.TotalPool, amount)
	in.storeRound(r)

	k := betKey{round: id, bin: bin, user: user}
	in.write(betStorageKey(k))
	prev, ok := in.st.bets[k]
	if !ok {
		prev = new(big.Int)
	}
	in.st.bets[k] = new(big.Int).Add(prev, amount)

	amt, err := types.Int128FromBig(amount)
	if err != nil {
		abort("amount out of range")
	}
	in.emit("bet", types.U32(id), types.AddressValue(user), types.U32(bin), types.I128(amt))
	return types.Void()
}

func (in *invocation) finalizeRound(id uint32, seed round.Digest) types.Value {
	in.requireAuth(in.needAdmin())
	r := in.loadRound(id)
	if r.Finalized {
		abort(contract.ErrCodeAlreadyFinalized)
	}
	in.read(commitKey(id))
	if sha256.Sum256(seed[:]) != [32]byte(in.st.commits[id]) {
		abort(contract.ErrCodeInvalidSeed)
	}

	win := WinningBin(seed)
	r.Finalized = true
	r.WinningBin = &win
	in.storeRound(r)
	in.emit("finalized", types.U32(id), types.U32(win))
	return types.Void()
}

func (in *invocation) claim(user types.Address, id uint32) types.Value {
	in.requireAuth(user)
	ck := claimKey{round: id, user: user}
	in.read(claimedKey(ck))
	if in.st.claimed[ck] {
		abort(contract.ErrCodeAlreadyClaimed)
	}
	r := in.loadRound(id)
	if !r.Finalized {
		abort(contract.ErrCodeNotFinalized)
	}
	win, _ := r.Winner()
	bk := betKey{round: id, bin: win, user: user}
	in.read(betStorageKey(bk))
	stake, ok := in.st.bets[bk]
	if !ok {
		abort(contract.ErrCodeNoWinningBet)
	}
	if r.BinTotals[win].Sign() == 0 {
		abort(contract.ErrCodeNoWinners)
	}

	payout := round.Payout(r.TotalPool, r.BinTotals[win], stake)
	in.needAdmin()
	in.write(tokenKey(in.self))
	in.write(tokenKey(user))
	in.st.transfer(in.self, user, payout)

	in.write(claimedKey(ck))
	in.st.claimed[ck] = true
	in.write(betStorageKey(bk))
	delete(in.st.bets, bk)

	p, err := types.Int128FromBig(payout)
	if err != nil {
		abort("payout out of range")
	}
	in.emit("claim", types.U32(id), types.AddressValue(user), types.I128(p))
	return types.I128(p)
}

func (in *invocation) getRound(id uint32) types.Value {
	in.read(roundKey(id))
	r, ok := in.st.rounds[id]
	if !ok {
		return types.Void()
	}
	v, err := contract.EncodeRound(r)
	if err != nil {
		abort("corrupt round %d: %v", id, err)
	}
	return v
}

func (in *invocation) getUserBet(id, bin uint32, user types.Address) types.Value {
	k := betKey{round: id, bin: bin, user: user}
	in.read(betStorageKey(k))
	amount, ok := in.st.bets[k]
	if !ok {
		return types.I128(types.Int128FromInt64(0))
	}
	p, err := types.Int128FromBig(amount)
	if err != nil {
		abort("bet out of range")
	}
	return types.I128(p)
}

func (in *invocation) hasClaimed(id uint32, user types.Address) types.Value {
	k := claimKey{round: id, user: user}
	in.read(claimedKey(k))
	return types.Bool(in.st.claimed[k])
}

// WinningBin derives the winning bin from a revealed seed.
func WinningBin(seed round.Digest) uint32 {
	return (uint32(seed[0]) + uint32(seed[1])*256 + uint32(seed[2])*65536) % round.NumBins
}

func optionalAddress(a types.Address) types.Value {
	if a == "" {
		return types.Void()
	}
	return types.AddressValue(a)
}

func roundKey(id uint32) string { return fmt.Sprintf("round:%d", id) }
func commitKey(id uint32) string { return fmt.Sprintf("commit:%d", id) }
func tokenKey(a types.Address) string { return "balance:" + string(a) }
func betStorageKey(k betKey) string { return fmt.Sprintf("bet:%d:%d:%s", k.round, k.bin, k.user) }
func claimedKey(k claimKey) string { return fmt.Sprintf("claimed:%d:%s", k.round, k.user) }
