package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Words returns n space-separated words tagged with prefix, e.g. "a0 a1 a2".
func Words(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(words, " ")
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the absolute path.
func WriteFile(dir, name, content string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}
