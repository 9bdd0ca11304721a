package identity

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/burrow/pkg/model"
)

// KeyPair holds an Ed25519 key pair together with the agent ID derived
// from the public key.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	AgentID    model.AgentID
}

// Generate creates a fresh key pair from cryptographically secure
// randomness. Failure here means the entropy source is unavailable and
// is not retried.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate key pair")
	}
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  pub,
		AgentID:    model.NewAgentID(pub),
	}, nil
}

// FromSeed rebuilds a key pair from a raw 32-byte private key seed,
// e.g. one recovered from a phrase.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, goerr.New("seed must be 32 bytes", goerr.V("length", len(seed)))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  pub,
		AgentID:    model.NewAgentID(pub),
	}, nil
}

// Seed returns the raw 32-byte seed of the private key.
func (k *KeyPair) Seed() []byte {
	return k.PrivateKey.Seed()
}

// Sign signs a canonical message with the private key. Used by the CLI
// client side and by tests; the server itself never signs.
func (k *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.PrivateKey, message)
}
