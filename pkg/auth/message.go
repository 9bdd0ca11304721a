package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Operation tags the canonical message for one kind of request.
type Operation string

const (
	OpStore    Operation = "store"
	OpRetrieve Operation = "retrieve"
	OpDelete   Operation = "delete"
)

// StoreMessage builds the byte string a client must sign to authorize
// a store. The nonce is the SHA-256 digest of the payload, binding the
// signature to the exact bytes being stored.
func StoreMessage(encryptedData string) []byte {
	digest := sha256.Sum256([]byte(encryptedData))
	return []byte(string(OpStore) + ":" + hex.EncodeToString(digest[:]))
}

// TimestampedMessage builds the canonical message for retrieve, history
// and clear requests. History shares the retrieve tag, so one signature
// authorizes either read.
func TimestampedMessage(op Operation, timestamp string) []byte {
	return []byte(string(op) + ":" + timestamp)
}
