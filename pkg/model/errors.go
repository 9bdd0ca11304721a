package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrAgentNotFound means an unknown agent ID was presented to an
	// auth-gated operation. Kept distinct from ErrInvalidSignature so
	// clients can tell "register first" from "your key is wrong".
	ErrAgentNotFound = goerr.New("agent not found")

	// ErrInvalidSignature means the signature does not verify against
	// the resolved public key and canonical message, or the signed
	// timestamp failed the replay policy.
	ErrInvalidSignature = goerr.New("invalid signature")

	// ErrInvalidPhrase means a recovery phrase is malformed: unknown
	// word, wrong word count, or checksum failure.
	ErrInvalidPhrase = goerr.New("invalid recovery phrase")

	// ErrDirectoryCollision means a registration tried to insert an
	// agent ID that already exists. This indicates a broken digest or
	// an identity hijack attempt and is fatal to the request.
	ErrDirectoryCollision = goerr.New("agent directory collision")
)
