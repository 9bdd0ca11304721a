package identity_test

import (
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/burrow/pkg/identity"
	"github.com/m-mizutani/burrow/pkg/model"
)

func TestPhraseRoundTrip(t *testing.T) {
	for range 16 {
		seed := make([]byte, 32)
		_, err := rand.Read(seed)
		gt.NoError(t, err)

		phrase, err := identity.EncodePhrase(seed)
		gt.NoError(t, err)
		gt.Equal(t, len(strings.Fields(phrase)), 24)

		decoded, err := identity.DecodePhrase(phrase)
		gt.NoError(t, err)
		gt.Equal(t, decoded, seed)
	}
}

func TestPhraseDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	gt.NoError(t, err)

	first, err := identity.EncodePhrase(seed)
	gt.NoError(t, err)
	second, err := identity.EncodePhrase(seed)
	gt.NoError(t, err)
	gt.Equal(t, first, second)
}

func TestEncodePhraseRejectsBadSeed(t *testing.T) {
	_, err := identity.EncodePhrase(make([]byte, 16))
	gt.Error(t, err)
}

func TestDecodePhraseCorruptedLastWord(t *testing.T) {
	keys, err := identity.Generate()
	gt.NoError(t, err)
	phrase, err := identity.EncodePhrase(keys.Seed())
	gt.NoError(t, err)

	words := strings.Fields(phrase)
	original := words[len(words)-1]

	// Only eight words can validly close a 24-word phrase for a given
	// prefix (3 free entropy bits), so among nine distinct candidates
	// at least one must break the checksum.
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
		_, err := identity.DecodePhrase(strings.Join(words, " "))
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

func TestDecodePhraseUnknownWord(t *testing.T) {
	_, err := identity.DecodePhrase("definitely not a valid phrase at all")
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidPhrase) {
		t.Errorf("expected ErrInvalidPhrase, got %v", err)
	}
}

func TestDecodePhraseWrongWordCount(t *testing.T) {
	keys, err := identity.Generate()
	gt.NoError(t, err)
	phrase, err := identity.EncodePhrase(keys.Seed())
	gt.NoError(t, err)

	words := strings.Fields(phrase)
	_, err = identity.DecodePhrase(strings.Join(words[:23], " "))
	gt.Error(t, err)
	if !errors.Is(err, model.ErrInvalidPhrase) {
		t.Errorf("expected ErrInvalidPhrase, got %v", err)
	}
}
