package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/burrow/pkg/identity"
	"github.com/m-mizutani/burrow/pkg/model"
	"github.com/m-mizutani/burrow/pkg/repository"
	agentuc "github.com/m-mizutani/burrow/pkg/usecase/agent"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	uc := agentuc.New(repository.NewMemory())

	reg, err := uc.Register(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(string(reg.Agent.ID)), 64)
	gt.Equal(t, len(reg.Agent.PublicKey), 32)
	gt.Equal(t, len(strings.Fields(reg.RecoveryPhrase)), 24)
	gt.Equal(t, reg.Agent.Matches(), true)
}

func TestRecoverRoundTrip(t *testing.T) {
	ctx := context.Background()
	uc := agentuc.New(repository.NewMemory())

	reg, err := uc.Register(ctx)
	gt.NoError(t, err)

	recovered, err := uc.Recover(ctx, reg.RecoveryPhrase)
	gt.NoError(t, err)
	gt.Equal(t, recovered.ID, reg.Agent.ID)
	gt.Equal(t, recovered.PublicKey, reg.Agent.PublicKey)
}

func TestRecoverInvalidPhrase(t *testing.T) {
	ctx := context.Background()
	uc := agentuc.New(repository.NewMemory())

	_, err := uc.Recover(ctx, "invalid phrase here")
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidPhrase) {
		t.Errorf("expected ErrInvalidPhrase, got %v", err)
	}
}

func TestRecoverCorruptedLastWord(t *testing.T) {
	ctx := context.Background()
	uc := agentuc.New(repository.NewMemory())

	reg, err := uc.Register(ctx)
	gt.NoError(t, err)

	words := strings.Fields(reg.RecoveryPhrase)
	original := words[len(words)-1]

	// At most eight words can validly close the phrase for this prefix,
	// so at least one of these candidates must break the checksum.
	candidates := []string{
		"abandon", "ability", "able", "about", "above",
		"absent", "absorb", "abstract", "absurd", "abuse",
	}
	rejected := false
	for _, w := range candidates {
		if w == original {
			continue
		}
		words[len(words)-1] = w
		_, err := uc.Recover(ctx, strings.Join(words, " "))
		if err == nil {
			continue
		}
		rejected = true
		if !errors.Is(err, model.ErrInvalidPhrase) {
			t.Errorf("expected ErrInvalidPhrase, got %v", err)
		}
		break
	}
	if !rejected {
		t.Error("no corrupted last word was rejected")
	}
}

func TestRecoverUnregisteredKey(t *testing.T) {
	ctx := context.Background()
	uc := agentuc.New(repository.NewMemory())

	// A well-formed phrase for a key that was never registered.
	keys, err := identity.Generate()
	gt.NoError(t, err)
	phrase, err := identity.EncodePhrase(keys.Seed())
	gt.NoError(t, err)

	_, err = uc.Recover(ctx, phrase)
	gt.Error(t, err)
	if !errors.Is(err, model.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	uc := agentuc.New(repo)

	for i := 0; i < 3; i++ {
		_, err := uc.Register(ctx)
		gt.NoError(t, err)
	}

	stats, err := uc.Stats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.TotalAgents, 3)
	gt.Equal(t, stats.TotalMemoryRecords, 0)
}
