package repository

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/burrow/pkg/model"
)

// arena is the per-agent unit of coordination. Each registered agent
// owns its own mutex and record slice, so stores for unrelated agents
// never contend.
type arena struct {
	mu      sync.Mutex
	records []*model.MemoryRecord
}

// Memory is the in-process Repository backend. It is the default for
// tests and for running the service without persistence.
type Memory struct {
	mu     sync.RWMutex
	agents map[model.AgentID]*model.Agent
	arenas map[model.AgentID]*arena
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		agents: make(map[model.AgentID]*model.Agent),
		arenas: make(map[model.AgentID]*arena),
	}
}

func (r *Memory) PutAgent(ctx context.Context, agent *model.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.ID]; exists {
		return goerr.Wrap(model.ErrDirectoryCollision, "agent already registered",
			goerr.V("agent_id", agent.ID))
	}
	r.agents[agent.ID] = agent
	r.arenas[agent.ID] = &arena{}
	return nil
}

func (r *Memory) GetAgent(ctx context.Context, id model.AgentID) (*model.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
	}
	return agent, nil
}

func (r *Memory) FindAgentByPublicKey(ctx context.Context, publicKey []byte) (*model.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, agent := range r.agents {
		if bytes.Equal(agent.PublicKey, publicKey) {
			return agent, nil
		}
	}
	return nil, goerr.Wrap(model.ErrAgentNotFound, "no agent with this public key")
}

func (r *Memory) AppendMemory(ctx context.Context, id model.AgentID, encryptedData string) (*model.MemoryRecord, error) {
	a, err := r.arena(id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	if n := len(a.records); n > 0 && now.Before(a.records[n-1].StoredAt) {
		// Keep StoredAt non-decreasing within the version sequence even
		// if the wall clock steps backwards.
		now = a.records[n-1].StoredAt
	}

	rec := &model.MemoryRecord{
		AgentID:       id,
		Version:       len(a.records) + 1,
		EncryptedData: encryptedData,
		StoredAt:      now,
	}
	a.records = append(a.records, rec)
	return rec, nil
}

func (r *Memory) LatestMemory(ctx context.Context, id model.AgentID) (*model.MemoryRecord, error) {
	a, err := r.arena(id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.records) == 0 {
		return nil, nil
	}
	return a.records[len(a.records)-1], nil
}

func (r *Memory) ListMemories(ctx context.Context, id model.AgentID) ([]*model.MemoryRecord, error) {
	a, err := r.arena(id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]*model.MemoryRecord, len(a.records))
	copy(records, a.records)
	return records, nil
}

func (r *Memory) ClearMemories(ctx context.Context, id model.AgentID) (int, error) {
	a, err := r.arena(id)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	deleted := len(a.records)
	a.records = nil
	return deleted, nil
}

func (r *Memory) Stats(ctx context.Context) (*model.ServiceStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.ServiceStats{
		TotalAgents: len(r.agents),
	}
	for _, a := range r.arenas {
		a.mu.Lock()
		stats.TotalMemoryRecords += len(a.records)
		a.mu.Unlock()
	}
	if stats.TotalAgents > 0 {
		stats.AverageVersionsPerAgent = float64(stats.TotalMemoryRecords) / float64(stats.TotalAgents)
	}
	return stats, nil
}

func (r *Memory) Close() error {
	return nil
}

func (r *Memory) arena(id model.AgentID) (*arena, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.arenas[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
	}
	return a, nil
}
