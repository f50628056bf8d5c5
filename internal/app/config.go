package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/swarmyard/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "swarmyard"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# swarmyard configuration
# Run: swarmyard --help

# Optional: override the SQLite database location.
# Can also be set via SWARMYARD_DB_PATH or --db-path.
# db_path: ~/.config/swarmyard/swarmyard.db

# core.auto_sync: true
# core.default_priority: 5
# queue.stale_timeout_seconds: 3600
# queue.max_retries: 3
# recovery.policy: warn  # silent | warn | fail-fast
# recovery.log_recovered: true
`
