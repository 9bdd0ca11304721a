package memory

import (
	"context"

	"github.com/m-mizutani/burrow/pkg/auth"
	"github.com/m-mizutani/burrow/pkg/model"
)

// RetrieveLatest returns the agent's highest-version record, or
// (nil, nil) if the agent has never stored anything. The signature must
// cover "retrieve:" + timestamp.
func (u *UseCase) RetrieveLatest(ctx context.Context, id model.AgentID, signature, timestamp string) (*model.MemoryRecord, error) {
	if err := u.verifier.VerifyTimestamped(ctx, id, auth.OpRetrieve, timestamp, signature); err != nil {
		return nil, err
	}
	return u.repo.LatestMemory(ctx, id)
}

// History returns all of the agent's records in ascending version
// order. It shares the retrieve message scheme, so a retrieve signature
// authorizes a history read as well.
func (u *UseCase) History(ctx context.Context, id model.AgentID, signature, timestamp string) ([]*model.MemoryRecord, error) {
	if err := u.verifier.VerifyTimestamped(ctx, id, auth.OpRetrieve, timestamp, signature); err != nil {
		return nil, err
	}
	return u.repo.ListMemories(ctx, id)
}
