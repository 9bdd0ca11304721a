package memory

import (
	"context"

	"github.com/m-mizutani/burrow/pkg/model"
)

// Store appends a new version of the agent's memory. The signature must
// cover "store:" + sha256(encryptedData), so a payload altered after
// signing fails verification.
func (u *UseCase) Store(ctx context.Context, id model.AgentID, encryptedData, signature string) (*model.MemoryRecord, error) {
	if err := u.verifier.VerifyStore(ctx, id, encryptedData, signature); err != nil {
		return nil, err
	}
	return u.repo.AppendMemory(ctx, id, encryptedData)
}
