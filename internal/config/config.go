package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	sherrors "github.com/hpungsan/tubestreak/internal/errors"
	"github.com/hpungsan/tubestreak/internal/payload"
)

// Config holds application configuration.
type Config struct {
	// Scheme is the custom URL scheme registered for the host application.
	Scheme string `json:"scheme"`

	// GracePeriodMillis is how long the extension waits after dispatching an
	// address before completing its request, so the OS can start switching
	// to the host before the extension is reclaimed.
	GracePeriodMillis int `json:"grace_period_ms"`

	// DedupWindowSeconds is how long a delivered URL suppresses repeat
	// deliveries of the same URL in the host.
	DedupWindowSeconds int `json:"dedup_window_seconds"`

	// BackupKey is the identifier both processes agree on for the backup record.
	BackupKey string `json:"backup_key"`

	// BackupDisabled turns off the backup write before dispatch.
	BackupDisabled bool `json:"backup_disabled,omitempty"`

	// SocketPath is the unix socket the running host listens on.
	// Relative paths are resolved against the base directory.
	SocketPath string `json:"socket_path"`

	// FallbackCommand is run with the address as its last argument when the
	// default URL handler cannot open it (e.g. ["gio", "open"]).
	FallbackCommand []string `json:"fallback_command,omitempty"`

	// LogLevel is a logrus level name ("debug", "info", "warn", ...).
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scheme:             "tubestreak",
		GracePeriodMillis:  500,
		DedupWindowSeconds: 10,
		BackupKey:          "group.tubestreak.share",
		SocketPath:         "host.sock",
		LogLevel:           "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tubestreak.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if cfg.SocketPath != "" && !filepath.IsAbs(cfg.SocketPath) {
		cfg.SocketPath = filepath.Join(baseDir, cfg.SocketPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in a less obvious place.
func (c *Config) Validate() error {
	if err := payload.ValidateScheme(c.Scheme); err != nil {
		return err
	}
	if c.GracePeriodMillis < 0 {
		return sherrors.NewInvalidRequest("grace_period_ms must not be negative")
	}
	if c.DedupWindowSeconds < 0 {
		return sherrors.NewInvalidRequest("dedup_window_seconds must not be negative")
	}
	if strings.TrimSpace(c.BackupKey) == "" && !c.BackupDisabled {
		return sherrors.NewInvalidRequest("backup_key must not be empty unless backup_disabled is set")
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return sherrors.NewInvalidRequest(err.Error())
		}
	}
	return nil
}

// GracePeriod returns GracePeriodMillis as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMillis) * time.Millisecond
}

// DedupWindow returns DedupWindowSeconds as a duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSeconds) * time.Second
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except FallbackCommand which is replaced as a whole.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Scheme = firstNonEmpty(overlay.Scheme, base.Scheme)
	result.BackupKey = firstNonEmpty(overlay.BackupKey, base.BackupKey)
	result.SocketPath = firstNonEmpty(overlay.SocketPath, base.SocketPath)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)

	result.GracePeriodMillis = overlay.GracePeriodMillis
	if result.GracePeriodMillis == 0 {
		result.GracePeriodMillis = base.GracePeriodMillis
	}

	result.DedupWindowSeconds = overlay.DedupWindowSeconds
	if result.DedupWindowSeconds == 0 {
		result.DedupWindowSeconds = base.DedupWindowSeconds
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.BackupDisabled = base.BackupDisabled || overlay.BackupDisabled

	result.FallbackCommand = base.FallbackCommand
	if len(overlay.FallbackCommand) > 0 {
		result.FallbackCommand = overlay.FallbackCommand
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
