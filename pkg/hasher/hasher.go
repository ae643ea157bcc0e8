// Package hasher computes content digests used for change detection.
//
// Digests are 128-bit MD5 hex strings. They identify file contents between
// scans and are not used for any security purpose.
package hasher

import (
	"crypto/md5" //nolint:gosec // change detection only
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// File returns the hex digest of the full byte content of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return Reader(f)
}

// Reader returns the hex digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := md5.New() //nolint:gosec // change detection only
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the hex digest of b.
func Bytes(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec // change detection only
	return hex.EncodeToString(sum[:])
}
