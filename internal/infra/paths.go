package infra

import (
	"os"
	"path/filepath"
)

const configDirName = "hyperliquid-mcp"

// ConfigDir returns ~/.config/hyperliquid-mcp.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", configDirName), nil
}

// EnvFilePath returns the env file holding secrets.
func EnvFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".env"), nil
}

// DefaultDBPath returns the agent registry database path.
func DefaultDBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agents.db"), nil
}
