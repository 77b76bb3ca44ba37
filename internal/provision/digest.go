package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrChecksumMismatch is returned when an archive's SHA-256 digest differs
// from the configured one.
const ErrChecksumMismatch = sentinel.Error("Checksum mismatch")

// fileDigest returns the hex-encoded SHA-256 of the file at path.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is inside the runtime cache
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// verifyDigest checks actual against expected, ignoring case and
// surrounding whitespace.
func verifyDigest(path, actual, expected string) error {
	if strings.EqualFold(strings.TrimSpace(expected), actual) {
		return nil
	}
	return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, path, strings.TrimSpace(expected), actual)
}
