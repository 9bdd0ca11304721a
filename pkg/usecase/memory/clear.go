package memory

import (
	"context"

	"github.com/m-mizutani/burrow/pkg/auth"
	"github.com/m-mizutani/burrow/pkg/model"
)

// Clear deletes all of the agent's records and reports how many were
// removed. The agent identity remains registered and the next store
// starts again at version 1. The signature must cover
// "delete:" + timestamp.
func (u *UseCase) Clear(ctx context.Context, id model.AgentID, signature, timestamp string) (int, error) {
	if err := u.verifier.VerifyTimestamped(ctx, id, auth.OpDelete, timestamp, signature); err != nil {
		return 0, err
	}
	return u.repo.ClearMemories(ctx, id)
}
