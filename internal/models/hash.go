package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash is a stable digest of a snapshot's JSON encoding.
func ContentHash(bc BaseContract) (string, error) {
	raw, err := json.Marshal(bc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
