// Package dotdir resolves the .chatstream/ directory that holds config.toml and
// credentials.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the chatstream directory.
	DirName = ".chatstream"

	// EnvVar points at a .chatstream/ directory and outranks discovery.
	EnvVar = "CHATSTREAM_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .chatstream/ directory to use,
// creating it if needed. Order of precedence:
//  1. overrideDir (the --config-dir flag)
//  2. $CHATSTREAM_HOME
//  3. the nearest .chatstream/ in the working directory or one of its parents,
//     stopping below the home directory
//  4. ~/.chatstream/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		dir = os.Getenv(EnvVar)
	}

	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}

		local, err := m.findLocal(home)
		if err != nil {
			return "", err
		}

		dir = local
		if dir == "" {
			dir = filepath.Join(home, DirName)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chatstream directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// findLocal walks from the working directory towards the filesystem root and
// returns the first .chatstream/ directory it finds, or "".
func (m *Manager) findLocal(home string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	for dir := cwd; ; {
		if dir == home {
			return "", nil
		}
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
