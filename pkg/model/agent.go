package model

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AgentID is the external handle of an agent identity. It is the
// lowercase hex SHA-256 digest of the agent's raw public key bytes,
// so it is stable across recovery and cannot be chosen by a client.
type AgentID string

// NewAgentID derives the AgentID for a public key.
func NewAgentID(pub ed25519.PublicKey) AgentID {
	digest := sha256.Sum256(pub)
	return AgentID(hex.EncodeToString(digest[:]))
}

// Agent is a registered identity. The service never holds the private
// key; only the verifying key is persisted.
type Agent struct {
	ID        AgentID
	PublicKey []byte
	CreatedAt time.Time
}

// Matches reports whether the agent's ID is consistent with its
// public key.
func (a *Agent) Matches() bool {
	return a.ID == NewAgentID(a.PublicKey)
}
