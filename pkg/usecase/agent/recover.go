package agent

import (
	"context"

	"github.com/m-mizutani/burrow/pkg/identity"
	"github.com/m-mizutani/burrow/pkg/model"
)

// Recover rederives a key pair from a recovery phrase and matches its
// public key against the directory. The match is an explicit lookup by
// key bytes; a client-asserted agent ID is never trusted. The rederived
// private key exists only for the duration of this call.
func (u *UseCase) Recover(ctx context.Context, phrase string) (*model.Agent, error) {
	seed, err := identity.DecodePhrase(phrase)
	if err != nil {
		return nil, err
	}

	keys, err := identity.FromSeed(seed)
	if err != nil {
		return nil, err
	}

	return u.repo.FindAgentByPublicKey(ctx, keys.PublicKey)
}
