// Package dotdir resolves the .docchat/ directory that holds config.toml,
// the default SQLite databases, and the default blob root.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the docchat directory.
	dirName = ".docchat"

	// blobDirName is the default blob store root inside the docchat directory.
	blobDirName = "blobs"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .docchat/ directory, creating it
// when missing. Order of precedence:
//  1. Provided override
//  2. Local ./.docchat/ dir
//  3. Home ~/.docchat/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating docchat directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// BlobRoot returns the default blob store root under the resolved
// .docchat/ directory, creating it when missing.
func (m *Manager) BlobRoot(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	root := filepath.Join(target, blobDirName)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return "", fmt.Errorf("creating blob root %s: %w", root, err)
	}

	return root, nil
}

// localDirExists checks whether a .docchat/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
