package repository

import (
	"context"

	"github.com/m-mizutani/burrow/pkg/model"
)

// Repository defines agent directory and memory ledger persistence.
//
// The directory exclusively owns Agent rows, the ledger exclusively
// owns MemoryRecord rows, and both are addressed only by agent ID.
// Every backend must assign versions atomically per agent: two
// concurrent AppendMemory calls for the same agent never produce the
// same version, and versions form the gapless sequence 1..N until a
// ClearMemories resets the baseline.
type Repository interface {
	// PutAgent inserts a new agent mapping. It fails with
	// model.ErrDirectoryCollision if the ID already exists; an existing
	// identity is never silently overwritten.
	PutAgent(ctx context.Context, agent *model.Agent) error

	// GetAgent retrieves an agent by ID, or model.ErrAgentNotFound.
	GetAgent(ctx context.Context, id model.AgentID) (*model.Agent, error)

	// FindAgentByPublicKey looks up an agent by its raw public key
	// bytes. Used by recovery to confirm a rederived key matches a
	// registered identity. Returns model.ErrAgentNotFound if absent.
	FindAgentByPublicKey(ctx context.Context, publicKey []byte) (*model.Agent, error)

	// AppendMemory commits a new record with version = max + 1 for the
	// agent and returns it. Fails with model.ErrAgentNotFound for an
	// unregistered agent.
	AppendMemory(ctx context.Context, id model.AgentID, encryptedData string) (*model.MemoryRecord, error)

	// LatestMemory returns the record with the highest version, or
	// (nil, nil) if the agent has never stored anything.
	LatestMemory(ctx context.Context, id model.AgentID) (*model.MemoryRecord, error)

	// ListMemories returns all records for the agent in ascending
	// version order.
	ListMemories(ctx context.Context, id model.AgentID) ([]*model.MemoryRecord, error)

	// ClearMemories deletes all records for the agent and returns how
	// many were removed. The agent identity itself is kept.
	ClearMemories(ctx context.Context, id model.AgentID) (int, error)

	// Stats derives aggregate counts from the stored data.
	Stats(ctx context.Context) (*model.ServiceStats, error)

	// Close releases backend resources.
	Close() error
}
