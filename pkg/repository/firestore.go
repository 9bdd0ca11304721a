package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/m-mizutani/burrow/pkg/model"
)

const (
	agentCollection  = "agents"
	memoryCollection = "memories"
)

type agentDoc struct {
	AgentID   string    `firestore:"agent_id"`
	PublicKey []byte    `firestore:"public_key"`
	CreatedAt time.Time `firestore:"created_at"`
}

type memoryDoc struct {
	AgentID       string    `firestore:"agent_id"`
	Version       int       `firestore:"version"`
	EncryptedData string    `firestore:"encrypted_data"`
	StoredAt      time.Time `firestore:"stored_at"`
}

// Firestore is the managed Repository backend.
//
// Agents are cached read-through with ristretto: an agent's ID and
// public key are immutable once written, so cached entries can never
// go stale. Memory records are never cached.
type Firestore struct {
	client *firestore.Client
	cache  *ristretto.Cache
}

// NewFirestore connects to the given project and database.
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to create agent cache")
	}

	return &Firestore{client: client, cache: cache}, nil
}

func (r *Firestore) PutAgent(ctx context.Context, agent *model.Agent) error {
	ref := r.client.Collection(agentCollection).Doc(string(agent.ID))
	_, err := ref.Create(ctx, &agentDoc{
		AgentID:   string(agent.ID),
		PublicKey: agent.PublicKey,
		CreatedAt: agent.CreatedAt.UTC(),
	})
	if status.Code(err) == codes.AlreadyExists {
		return goerr.Wrap(model.ErrDirectoryCollision, "agent already registered",
			goerr.V("agent_id", agent.ID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to create agent document", goerr.V("agent_id", agent.ID))
	}
	return nil
}

func (r *Firestore) GetAgent(ctx context.Context, id model.AgentID) (*model.Agent, error) {
	if cached, ok := r.cache.Get(string(id)); ok {
		return cached.(*model.Agent), nil
	}

	snap, err := r.client.Collection(agentCollection).Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get agent document", goerr.V("agent_id", id))
	}

	agent, err := decodeAgent(snap)
	if err != nil {
		return nil, err
	}
	r.cache.Set(string(id), agent, 1)
	return agent, nil
}

func (r *Firestore) FindAgentByPublicKey(ctx context.Context, publicKey []byte) (*model.Agent, error) {
	it := r.client.Collection(agentCollection).
		Where("public_key", "==", publicKey).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no agent with this public key")
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query agent by public key")
	}
	return decodeAgent(snap)
}

func (r *Firestore) AppendMemory(ctx context.Context, id model.AgentID, encryptedData string) (*model.MemoryRecord, error) {
	var rec *model.MemoryRecord

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		agentRef := r.client.Collection(agentCollection).Doc(string(id))
		if _, err := tx.Get(agentRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
			}
			return goerr.Wrap(err, "failed to get agent document", goerr.V("agent_id", id))
		}

		q := r.client.Collection(memoryCollection).
			Where("agent_id", "==", string(id)).
			OrderBy("version", firestore.Desc).
			Limit(1)
		it := tx.Documents(q)
		defer it.Stop()

		maxVersion := 0
		snap, err := it.Next()
		if err == nil {
			var doc memoryDoc
			if err := snap.DataTo(&doc); err != nil {
				return goerr.Wrap(err, "failed to decode memory document")
			}
			maxVersion = doc.Version
		} else if err != iterator.Done {
			return goerr.Wrap(err, "failed to query latest version", goerr.V("agent_id", id))
		}

		rec = &model.MemoryRecord{
			AgentID:       id,
			Version:       maxVersion + 1,
			EncryptedData: encryptedData,
			StoredAt:      time.Now().UTC(),
		}
		// Deterministic document ID makes a concurrent transaction that
		// computed the same version fail on Create instead of silently
		// duplicating it.
		ref := r.client.Collection(memoryCollection).Doc(memoryDocID(id, rec.Version))
		return tx.Create(ref, &memoryDoc{
			AgentID:       string(id),
			Version:       rec.Version,
			EncryptedData: rec.EncryptedData,
			StoredAt:      rec.StoredAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Firestore) LatestMemory(ctx context.Context, id model.AgentID) (*model.MemoryRecord, error) {
	if _, err := r.GetAgent(ctx, id); err != nil {
		return nil, err
	}

	it := r.client.Collection(memoryCollection).
		Where("agent_id", "==", string(id)).
		OrderBy("version", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query latest memory", goerr.V("agent_id", id))
	}
	return decodeMemory(snap)
}

func (r *Firestore) ListMemories(ctx context.Context, id model.AgentID) ([]*model.MemoryRecord, error) {
	if _, err := r.GetAgent(ctx, id); err != nil {
		return nil, err
	}

	it := r.client.Collection(memoryCollection).
		Where("agent_id", "==", string(id)).
		OrderBy("version", firestore.Asc).
		Documents(ctx)
	defer it.Stop()

	var records []*model.MemoryRecord
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list memory records", goerr.V("agent_id", id))
		}
		rec, err := decodeMemory(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Firestore) ClearMemories(ctx context.Context, id model.AgentID) (int, error) {
	if _, err := r.GetAgent(ctx, id); err != nil {
		return 0, err
	}

	it := r.client.Collection(memoryCollection).
		Where("agent_id", "==", string(id)).
		Documents(ctx)
	defer it.Stop()

	bulk := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to iterate memory records", goerr.V("agent_id", id))
		}
		job, err := bulk.Delete(snap.Ref)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to schedule delete", goerr.V("agent_id", id))
		}
		jobs = append(jobs, job)
	}
	bulk.End()

	// Deletes are committed asynchronously; only job results reveal
	// per-write failures. The returned count covers committed deletes
	// only, so a partial failure is never reported as a full clear.
	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete memory record",
				goerr.V("agent_id", id), goerr.V("deleted", deleted))
		}
		deleted++
	}
	return deleted, nil
}

func (r *Firestore) Stats(ctx context.Context) (*model.ServiceStats, error) {
	agents, err := r.countDocuments(ctx, agentCollection)
	if err != nil {
		return nil, err
	}
	records, err := r.countDocuments(ctx, memoryCollection)
	if err != nil {
		return nil, err
	}

	stats := &model.ServiceStats{
		TotalAgents:        agents,
		TotalMemoryRecords: records,
	}
	if agents > 0 {
		stats.AverageVersionsPerAgent = float64(records) / float64(agents)
	}
	return stats, nil
}

func (r *Firestore) Close() error {
	r.cache.Close()
	return r.client.Close()
}

func (r *Firestore) countDocuments(ctx context.Context, collection string) (int, error) {
	it := r.client.Collection(collection).Select().Documents(ctx)
	defer it.Stop()

	count := 0
	for {
		_, err := it.Next()
		if err == iterator.Done {
			return count, nil
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to count documents", goerr.V("collection", collection))
		}
		count++
	}
}

func memoryDocID(id model.AgentID, version int) string {
	return fmt.Sprintf("%s_%010d", id, version)
}

func decodeAgent(snap *firestore.DocumentSnapshot) (*model.Agent, error) {
	var doc agentDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode agent document")
	}
	return &model.Agent{
		ID:        model.AgentID(doc.AgentID),
		PublicKey: doc.PublicKey,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func decodeMemory(snap *firestore.DocumentSnapshot) (*model.MemoryRecord, error) {
	var doc memoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory document")
	}
	return &model.MemoryRecord{
		AgentID:       model.AgentID(doc.AgentID),
		Version:       doc.Version,
		EncryptedData: doc.EncryptedData,
		StoredAt:      doc.StoredAt,
	}, nil
}
