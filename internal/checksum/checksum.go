package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SHA256Bytes computes the SHA256 hash of a byte slice and returns it as "sha256:hexstring"
func SHA256Bytes(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// SHA256JSON hashes the canonical JSON encoding of a value. Used to fingerprint
// proposal snapshots in the audit trail.
func SHA256JSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value for hashing: %w", err)
	}
	return SHA256Bytes(data), nil
}

// VerifyJSON checks whether a value's canonical JSON hash matches the expected sum
// Expected format: "sha256:hexstring"
func VerifyJSON(v any, expectedSum string) error {
	if !strings.HasPrefix(expectedSum, "sha256:") {
		return fmt.Errorf("invalid checksum format: must start with 'sha256:'")
	}
	if len(expectedSum) != 71 { // "sha256:" (7) + 64 hex chars
		return fmt.Errorf("invalid checksum format: expected 71 characters, got %d", len(expectedSum))
	}

	actualSum, err := SHA256JSON(v)
	if err != nil {
		return fmt.Errorf("failed to compute checksum: %w", err)
	}

	if actualSum != expectedSum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedSum, actualSum)
	}

	return nil
}
