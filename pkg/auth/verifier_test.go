package auth_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/burrow/pkg/auth"
	"github.com/m-mizutani/burrow/pkg/identity"
	"github.com/m-mizutani/burrow/pkg/model"
)

// mockDirectory resolves agents from a fixed map.
type mockDirectory struct {
	agents map[model.AgentID]*model.Agent
}

func (m *mockDirectory) GetAgent(ctx context.Context, id model.AgentID) (*model.Agent, error) {
	agent, ok := m.agents[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
	}
	return agent, nil
}

func setup(t *testing.T) (*identity.KeyPair, *mockDirectory) {
	keys, err := identity.Generate()
	gt.NoError(t, err)

	dir := &mockDirectory{agents: map[model.AgentID]*model.Agent{
		keys.AgentID: {ID: keys.AgentID, PublicKey: keys.PublicKey, CreatedAt: time.Now()},
	}}
	return keys, dir
}

func sign(keys *identity.KeyPair, msg []byte) string {
	return base64.StdEncoding.EncodeToString(keys.Sign(msg))
}

func TestVerifyStore(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	v := auth.NewVerifier(dir)

	data := "ZW5jcnlwdGVkIGJsb2I="
	sig := sign(keys, auth.StoreMessage(data))
	gt.NoError(t, v.VerifyStore(ctx, keys.AgentID, data, sig))
}

func TestVerifyStoreAlteredPayload(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	v := auth.NewVerifier(dir)

	// Signature computed over one payload, request carries another.
	sig := sign(keys, auth.StoreMessage("original payload"))
	err := v.VerifyStore(ctx, keys.AgentID, "altered payload", sig)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyUnknownAgent(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	v := auth.NewVerifier(dir)

	data := "blob"
	sig := sign(keys, auth.StoreMessage(data))
	err := v.VerifyStore(ctx, model.AgentID("deadbeef"), data, sig)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestVerifyCrossAgent(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	other, err := identity.Generate()
	gt.NoError(t, err)
	dir.agents[other.AgentID] = &model.Agent{ID: other.AgentID, PublicKey: other.PublicKey}
	v := auth.NewVerifier(dir)

	// A's signature never verifies for B's identity.
	data := "blob"
	sig := sign(keys, auth.StoreMessage(data))
	err = v.VerifyStore(ctx, other.AgentID, data, sig)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyBadBase64(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	v := auth.NewVerifier(dir)

	err := v.VerifyStore(ctx, keys.AgentID, "blob", "not base64!!!")
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyTimestamped(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := auth.NewVerifier(dir, auth.WithClock(func() time.Time { return now }))

	ts := now.Format(time.RFC3339Nano)
	sig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, ts))
	gt.NoError(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, ts, sig))
}

func TestVerifyTimestampedBareISO(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := auth.NewVerifier(dir, auth.WithClock(func() time.Time { return now }))

	// datetime.isoformat style: no zone designator, treated as UTC.
	ts := "2026-03-01T12:00:30.123456"
	sig := sign(keys, auth.TimestampedMessage(auth.OpDelete, ts))
	gt.NoError(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpDelete, ts, sig))
}

func TestVerifyTimestampedStale(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := auth.NewVerifier(dir, auth.WithClock(func() time.Time { return now }))

	ts := now.Add(-10 * time.Minute).Format(time.RFC3339Nano)
	sig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, ts))
	err := v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, ts, sig)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyTimestampedFuture(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := auth.NewVerifier(dir, auth.WithClock(func() time.Time { return now }))

	ts := now.Add(10 * time.Minute).Format(time.RFC3339Nano)
	sig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, ts))
	gt.Error(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, ts, sig))
}

func TestVerifyTimestampedUnparseable(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	v := auth.NewVerifier(dir)

	ts := "yesterday at noon"
	sig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, ts))
	gt.Error(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, ts, sig))
}

func TestVerifyTimestampedReplay(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := auth.NewVerifier(dir, auth.WithClock(func() time.Time { return now }))

	ts := now.Format(time.RFC3339Nano)
	sig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, ts))
	gt.NoError(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, ts, sig))

	// Replaying the same timestamp inside the window must fail.
	err := v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, ts, sig)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	// An older timestamp is rejected too, even though it is fresh.
	older := now.Add(-time.Minute).Format(time.RFC3339Nano)
	olderSig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, older))
	gt.Error(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, older, olderSig))

	// A strictly newer one goes through.
	newer := now.Add(time.Minute).Format(time.RFC3339Nano)
	newerSig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, newer))
	gt.NoError(t, v.VerifyTimestamped(ctx, keys.AgentID, auth.OpRetrieve, newer, newerSig))
}

func TestVerifyTimestampedWrongOperation(t *testing.T) {
	ctx := context.Background()
	keys, dir := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := auth.NewVerifier(dir, auth.WithClock(func() time.Time { return now }))

	// A retrieve signature must not authorize a clear.
	ts := now.Format(time.RFC3339Nano)
	sig := sign(keys, auth.TimestampedMessage(auth.OpRetrieve, ts))
	err := v.VerifyTimestamped(ctx, keys.AgentID, auth.OpDelete, ts, sig)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}
