// Package cryptox holds the hashing helpers used to fingerprint synced data.
package cryptox

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ContentHash serializes v to JSON and returns the hex BLAKE2b-256 digest of
// the result together with its size in bytes.
//
// encoding/json sorts map keys, so two maps with equal contents hash the
// same regardless of insertion order.
func ContentHash(v any) (string, int64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", 0, fmt.Errorf("encode content: %w", err)
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), int64(len(b)), nil
}
