// Package dotdir resolves the .lettarag/ directory that holds config.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the lettarag directory.
	DirName = ".lettarag"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .lettarag/ directory to use.
// Order of precedence is as follows:
//  1. Provided override, created when missing
//  2. Local ./.lettarag/ dir
//  3. Home ~/.lettarag/ dir
//
// When none applies, Target returns an empty string and callers fall back
// to built-in defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating lettarag directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, DirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	if inHome := filepath.Join(home, DirName); isDir(inHome) {
		return inHome, nil
	}

	return "", nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
