package app

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml, merged across
// the global file, the per-repository file, and environment overrides (in
// that order of increasing precedence — the most specific source wins per
// key, and an explicit environment variable always wins).
type Settings struct {
	DBPath string `yaml:"db_path"`

	CoreAutoSync        bool `yaml:"core.auto_sync"`
	CoreDefaultPriority int  `yaml:"core.default_priority"`

	QueueStaleTimeoutSeconds int `yaml:"queue.stale_timeout_seconds"`
	QueueMaxRetries          int `yaml:"queue.max_retries"`

	RecoveryPolicy        string `yaml:"recovery.policy"`
	RecoveryLogRecovered  bool   `yaml:"recovery.log_recovered"`

	IdempotencyRetentionSeconds int `yaml:"idempotency.retention_seconds"`
}

const (
	defaultCoreAutoSync        = true
	defaultCoreDefaultPriority = 5
	defaultQueueStaleTimeout   = 3600
	defaultQueueMaxRetries     = 3
	defaultRecoveryPolicy      = "warn"
	defaultRecoveryLogRecover  = true
	defaultIdempotencyRetention = 7 * 24 * 3600
)

// EffectiveSettings returns Settings with every unset int and string field
// replaced by its documented default (spec.md §6). The bool fields
// CoreAutoSync and RecoveryLogRecovered get no default: they are true only
// when a config file or environment variable sets them true.
func EffectiveSettings() Settings {
	s, err := LoadSettings()
	if err != nil {
		s = Settings{}
	}
	if s.CoreDefaultPriority == 0 {
		s.CoreDefaultPriority = defaultCoreDefaultPriority
	}
	if s.QueueStaleTimeoutSeconds == 0 {
		s.QueueStaleTimeoutSeconds = defaultQueueStaleTimeout
	}
	if s.QueueMaxRetries == 0 {
		s.QueueMaxRetries = defaultQueueMaxRetries
	}
	if s.RecoveryPolicy == "" {
		s.RecoveryPolicy = defaultRecoveryPolicy
	}
	if s.IdempotencyRetentionSeconds == 0 {
		s.IdempotencyRetentionSeconds = defaultIdempotencyRetention
	}
	return s
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
// dbPathOverrideMu and dbPathOverride implement a mutex-protected process-wide override for CLI --db-path.
// These globals are required by the sync.Once pattern and the RWMutex pattern; they cannot be avoided.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once, merging sources least-specific
// first: global (~/.config/swarmyard/config.yaml), then per-repository
// (./.swarmyard.yaml), then environment variable overrides.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		merged := Settings{}

		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		if s, loadErr := loadSettingsFile(filepath.Join(dir, "config.yaml")); loadErr == nil {
			mergeSettings(&merged, s)
		} else if !errors.Is(loadErr, os.ErrNotExist) {
			settingsErr = loadErr
			return
		}

		if s, loadErr := loadSettingsFile(".swarmyard.yaml"); loadErr == nil {
			mergeSettings(&merged, s)
		} else if !errors.Is(loadErr, os.ErrNotExist) {
			settingsErr = loadErr
			return
		}

		applyEnvOverrides(&merged)
		settings = merged
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// mergeSettings overlays every non-zero field of next onto base.
func mergeSettings(base *Settings, next Settings) {
	if next.DBPath != "" {
		base.DBPath = next.DBPath
	}
	if next.CoreAutoSync {
		base.CoreAutoSync = next.CoreAutoSync
	}
	if next.CoreDefaultPriority != 0 {
		base.CoreDefaultPriority = next.CoreDefaultPriority
	}
	if next.QueueStaleTimeoutSeconds != 0 {
		base.QueueStaleTimeoutSeconds = next.QueueStaleTimeoutSeconds
	}
	if next.QueueMaxRetries != 0 {
		base.QueueMaxRetries = next.QueueMaxRetries
	}
	if next.RecoveryPolicy != "" {
		base.RecoveryPolicy = next.RecoveryPolicy
	}
	if next.RecoveryLogRecovered {
		base.RecoveryLogRecovered = next.RecoveryLogRecovered
	}
	if next.IdempotencyRetentionSeconds != 0 {
		base.IdempotencyRetentionSeconds = next.IdempotencyRetentionSeconds
	}
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("SWARMYARD_DB_PATH"); v != "" {
		s.DBPath = v
	}
	if v := os.Getenv("SWARMYARD_AUTO_SYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.CoreAutoSync = b
		}
	}
	if v := os.Getenv("SWARMYARD_DEFAULT_PRIORITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.CoreDefaultPriority = n
		}
	}
	if v := os.Getenv("SWARMYARD_STALE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.QueueStaleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("SWARMYARD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.QueueMaxRetries = n
		}
	}
	if v := os.Getenv("SWARMYARD_RECOVERY_POLICY"); v != "" {
		s.RecoveryPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("SWARMYARD_LOG_RECOVERED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.RecoveryLogRecovered = b
		}
	}
	if v := os.Getenv("SWARMYARD_IDEMPOTENCY_RETENTION_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.IdempotencyRetentionSeconds = n
		}
	}
}
