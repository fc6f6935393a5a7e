package devnet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Keyring holds ed25519 keys for devnet accounts. An account's address
// is its public key, so the devnet verifies signatures without a
// registry.
type Keyring struct {
	mu   sync.Mutex
	keys map[types.Address]ed25519.PrivateKey
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[types.Address]ed25519.PrivateKey)}
}

// Generate creates a random key and returns its address.
func (k *Keyring) Generate() (types.Address, error) {
	var seed [ed25519.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("devnet: generate key: %w", err)
	}
	return k.add(seed[:])
}

// Derive returns the address of a key deterministically derived from
// name. The same name always yields the same account.
func (k *Keyring) Derive(name string) (types.Address, error) {
	seed := blake3.Sum256([]byte("pulse devnet key:" + name))
	return k.add(seed[:])
}

func (k *Keyring) add(seed []byte) (types.Address, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	addr, err := types.AccountAddress(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return "", err
	}
	k.mu.Lock()
	k.keys[addr] = priv
	k.mu.Unlock()
	return addr, nil
}

// Signer returns a wallet agent for addr, or false if the keyring has
// no key for it.
func (k *Keyring) Signer(addr types.Address) (*KeySigner, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	priv, ok := k.keys[addr]
	if !ok {
		return nil, false
	}
	return &KeySigner{addr: addr, key: priv}, true
}

// KeySigner signs envelopes with one keyring key.
type KeySigner struct {
	addr   types.Address
	key    ed25519.PrivateKey
	reject atomic.Bool

	// Signed counts completed signatures.
	Signed atomic.Int64
}

// Compile-time interface check.
var _ pulse.Signer = (*KeySigner)(nil)

// Reject makes the signer decline every request until called with
// false, as a wallet whose user presses "reject" would.
func (s *KeySigner) Reject(on bool) { s.reject.Store(on) }

func (s *KeySigner) Address(context.Context) (types.Address, error) {
	return s.addr, nil
}

func (s *KeySigner) Sign(ctx context.Context, envelope []byte, networkID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.reject.Load() {
		return nil, &pulse.SigningError{Reason: "user declined", Rejected: true}
	}
	env, err := types.DecodeEnvelope(envelope)
	if err != nil {
		return nil, &pulse.SigningError{Reason: "unreadable envelope", Err: err}
	}
	if env.Source != s.addr {
		return nil, &pulse.SigningError{Reason: fmt.Sprintf("envelope source %s is not %s", env.Source, s.addr)}
	}
	payload, err := env.SigningPayload(networkID)
	if err != nil {
		return nil, &pulse.SigningError{Reason: "signing payload", Err: err}
	}
	out, err := types.EncodeSignedEnvelope(types.SignedEnvelope{
		Envelope:   env,
		Signatures: []types.Signature{{Signer: s.addr, Data: ed25519.Sign(s.key, payload)}},
	})
	if err != nil {
		return nil, err
	}
	s.Signed.Add(1)
	return out, nil
}
