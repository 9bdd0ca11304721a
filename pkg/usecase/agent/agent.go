package agent

import (
	"github.com/m-mizutani/burrow/pkg/repository"
)

// UseCase provides agent identity operations: registration, phrase
// recovery, and service stats.
type UseCase struct {
	repo repository.Repository
}

// New creates a new agent UseCase instance
func New(repo repository.Repository) *UseCase {
	return &UseCase{repo: repo}
}
