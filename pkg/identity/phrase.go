package identity

import (
	"crypto/ed25519"

	"github.com/m-mizutani/goerr/v2"
	"github.com/tyler-smith/go-bip39"

	"github.com/m-mizutani/burrow/pkg/model"
)

// EncodePhrase maps a 32-byte private key seed to a 24-word BIP-39
// mnemonic. The mapping is deterministic and lossless: the seed is the
// mnemonic entropy, with the standard checksum appended so the phrase
// can validate itself.
func EncodePhrase(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", goerr.New("seed must be 32 bytes", goerr.V("length", len(seed)))
	}
	phrase, err := bip39.NewMnemonic(seed)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode recovery phrase")
	}
	return phrase, nil
}

// DecodePhrase recovers the seed from a recovery phrase. Any unknown
// word, wrong word count, or checksum mismatch yields ErrInvalidPhrase.
func DecodePhrase(phrase string) ([]byte, error) {
	seed, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidPhrase, err.Error())
	}
	if len(seed) != ed25519.SeedSize {
		return nil, goerr.Wrap(model.ErrInvalidPhrase, "phrase does not encode a 32-byte seed",
			goerr.V("length", len(seed)))
	}
	return seed, nil
}
