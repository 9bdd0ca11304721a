package memory

import (
	"github.com/m-mizutani/burrow/pkg/auth"
	"github.com/m-mizutani/burrow/pkg/repository"
)

// UseCase provides the signature-gated memory ledger operations.
// Every entry point verifies the caller's signature before touching
// the repository.
type UseCase struct {
	repo     repository.Repository
	verifier *auth.Verifier
}

// New creates a new memory UseCase instance
func New(repo repository.Repository, verifier *auth.Verifier) *UseCase {
	return &UseCase{
		repo:     repo,
		verifier: verifier,
	}
}
