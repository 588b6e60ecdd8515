package columnar

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrChecksumMismatch is returned when data does not match its
// recorded checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Checksum computes a SHA256 checksum for the given data.
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// VerifyChecksum verifies that data matches the expected checksum.
func VerifyChecksum(data []byte, expected string) error {
	if got := Checksum(data); got != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, expected)
	}
	return nil
}
