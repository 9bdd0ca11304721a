package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/burrow/pkg/model"
)

// DefaultFreshnessWindow bounds how far a signed timestamp may deviate
// from the server clock before the request is rejected as a replay.
const DefaultFreshnessWindow = 5 * time.Minute

// Directory resolves an agent ID to its registered identity. Implemented
// by the repository layer.
type Directory interface {
	GetAgent(ctx context.Context, id model.AgentID) (*model.Agent, error)
}

// Verifier checks that a claimed operation was authorized by the holder
// of an agent's private key. On top of the freshness window it keeps a
// per-agent high-water mark of accepted timestamps, so a captured
// signature cannot be replayed even inside the window.
type Verifier struct {
	dir    Directory
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	accepted map[model.AgentID]time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithFreshnessWindow overrides the timestamp acceptance window.
func WithFreshnessWindow(d time.Duration) Option {
	return func(v *Verifier) {
		v.window = d
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a Verifier backed by the given directory.
func NewVerifier(dir Directory, opts ...Option) *Verifier {
	v := &Verifier{
		dir:      dir,
		window:   DefaultFreshnessWindow,
		now:      time.Now,
		accepted: make(map[model.AgentID]time.Time),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a base64 signature over a canonical message against the
// agent's registered public key.
func (v *Verifier) Verify(ctx context.Context, agentID model.AgentID, message []byte, signature string) error {
	agent, err := v.dir.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return goerr.Wrap(model.ErrInvalidSignature, "signature is not valid base64",
			goerr.V("agent_id", agentID))
	}
	if len(agent.PublicKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return goerr.Wrap(model.ErrInvalidSignature, "malformed key or signature",
			goerr.V("agent_id", agentID))
	}
	if !ed25519.Verify(ed25519.PublicKey(agent.PublicKey), message, sig) {
		return goerr.Wrap(model.ErrInvalidSignature, "signature does not verify",
			goerr.V("agent_id", agentID))
	}
	return nil
}

// VerifyStore checks a store request. The signature must cover
// "store:" + sha256(encryptedData).
func (v *Verifier) VerifyStore(ctx context.Context, agentID model.AgentID, encryptedData, signature string) error {
	return v.Verify(ctx, agentID, StoreMessage(encryptedData), signature)
}

// VerifyTimestamped checks a retrieve/history/clear request: the
// timestamp must parse, be fresh, and be strictly newer than the last
// timestamp accepted for this agent. The high-water mark advances only
// after the signature itself verifies.
func (v *Verifier) VerifyTimestamped(ctx context.Context, agentID model.AgentID, op Operation, timestamp, signature string) error {
	ts, err := parseTimestamp(timestamp)
	if err != nil {
		return goerr.Wrap(model.ErrInvalidSignature, "timestamp does not parse",
			goerr.V("agent_id", agentID), goerr.V("timestamp", timestamp))
	}

	now := v.now()
	if ts.Before(now.Add(-v.window)) || ts.After(now.Add(v.window)) {
		return goerr.Wrap(model.ErrInvalidSignature, "timestamp outside freshness window",
			goerr.V("agent_id", agentID), goerr.V("timestamp", timestamp))
	}

	if err := v.Verify(ctx, agentID, TimestampedMessage(op, timestamp), signature); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if last, ok := v.accepted[agentID]; ok && !ts.After(last) {
		return goerr.Wrap(model.ErrInvalidSignature, "timestamp not newer than last accepted",
			goerr.V("agent_id", agentID), goerr.V("timestamp", timestamp))
	}
	v.accepted[agentID] = ts
	return nil
}

// timestampLayouts accepts RFC 3339 and bare ISO 8601 without a zone
// designator, which is treated as UTC. The bare form is what
// datetime.isoformat style clients send.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
