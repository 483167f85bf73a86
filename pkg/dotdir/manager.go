// Package dotdir resolves the .chatrelay/ directory that holds config.toml.
// A project-local ./.chatrelay/ wins over the per-user ~/.chatrelay/.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the chatrelay directory.
	dirName = ".chatrelay"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .chatrelay/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.chatrelay/ dir
//  3. Home ~/.chatrelay/ dir
//  4. If none found, attempt to create ~/.chatrelay/ dir
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
		return "", fmt.Errorf("creating chatrelay directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// localDirExists checks whether a .chatrelay/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}

// InitLocal creates a project-local .chatrelay/ directory under parent.
// It reports false when the directory already existed.
func (m *Manager) InitLocal(parent string) (string, bool, error) {
	dir, err := filepath.Abs(filepath.Join(parent, dirName))
	if err != nil {
		return "", false, fmt.Errorf("resolving chatrelay directory: %w", err)
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, false, nil
	case err == nil:
		return "", false, fmt.Errorf("%s exists and is not a directory", dir)
	case !os.IsNotExist(err):
		return "", false, fmt.Errorf("checking chatrelay directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating chatrelay directory %s: %w", dir, err)
	}
	return dir, true, nil
}
