package agent

import (
	"context"

	"github.com/m-mizutani/burrow/pkg/model"
)

// Stats derives aggregate service counts from the repository.
func (u *UseCase) Stats(ctx context.Context) (*model.ServiceStats, error) {
	return u.repo.Stats(ctx)
}
