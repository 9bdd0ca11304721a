package agent

import (
	"context"
	"time"

	"github.com/m-mizutani/burrow/pkg/identity"
	"github.com/m-mizutani/burrow/pkg/model"
)

// Registration is the one-time output of a successful registration.
// The recovery phrase is returned here and nowhere else; no later
// operation can retrieve it again.
type Registration struct {
	Agent          *model.Agent
	RecoveryPhrase string
}

// Register generates a fresh identity, encodes its recovery phrase, and
// records the ID to public-key mapping in the directory. The private
// key is discarded as soon as the phrase is encoded.
func (u *UseCase) Register(ctx context.Context) (*Registration, error) {
	keys, err := identity.Generate()
	if err != nil {
		return nil, err
	}

	phrase, err := identity.EncodePhrase(keys.Seed())
	if err != nil {
		return nil, err
	}

	agent := &model.Agent{
		ID:        keys.AgentID,
		PublicKey: keys.PublicKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.repo.PutAgent(ctx, agent); err != nil {
		return nil, err
	}

	return &Registration{
		Agent:          agent,
		RecoveryPhrase: phrase,
	}, nil
}
