// Package config contains everything related to configuration
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by RequireCredentials when no OAuth client is configured.
var ErrMissingCredentials = errors.New(
	"GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required (set via env or opencode-antigravity-auth)")

// Config holds the application configuration.
type Config struct {
	DataDir             string
	HistoryPath         string
	BufferPath          string
	AccountsPath        string
	IDEStateDBPath      string
	GoogleClientID      string
	GoogleClientSecret  string
	HTTPAddr            string
	LogLevel            string
	LogFormat           string
	FetchTimeout        time.Duration
	PreResetOffset      time.Duration
	NearResetWindow     time.Duration
	ImplicitUseHorizon  time.Duration
	ChartDisplayMinutes int64
	ChartBucketMinutes  int64
	Notifications       bool
}

// Default values
const (
	defaultFetchTimeout        = 5 * time.Second
	defaultPreResetOffset      = 30 * time.Second
	defaultNearResetWindow     = 45 * time.Second
	defaultImplicitUseHorizon  = 299 * time.Minute
	defaultChartDisplayMinutes = 24 * 60
	defaultChartBucketMinutes  = 30
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	creds := LoadClientCredentials()
	var defaultClientID, defaultClientSecret string
	if creds != nil {
		defaultClientID = creds.ClientID
		defaultClientSecret = creds.ClientSecret
	}

	dataDir := getEnvString("DATA_DIR", getDefaultDataDir())

	cfg := &Config{
		DataDir:             dataDir,
		HistoryPath:         getEnvString("HISTORY_PATH", filepath.Join(dataDir, "quota_history.json")),
		BufferPath:          getEnvString("BUFFER_PATH", filepath.Join(dataDir, "quota_buffer.json")),
		AccountsPath:        getEnvString("ACCOUNTS_PATH", filepath.Join(dataDir, "accounts.json")),
		IDEStateDBPath:      getEnvString("IDE_STATE_DB", getDefaultIDEStateDBPath()),
		GoogleClientID:      getEnvString("GOOGLE_CLIENT_ID", defaultClientID),
		GoogleClientSecret:  getEnvString("GOOGLE_CLIENT_SECRET", defaultClientSecret),
		HTTPAddr:            getEnvString("HTTP_ADDR", ""),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
		LogFormat:           getEnvString("LOG_FORMAT", "text"),
		FetchTimeout:        getEnvDuration("FETCH_TIMEOUT", defaultFetchTimeout),
		PreResetOffset:      getEnvDuration("PRE_RESET_OFFSET", defaultPreResetOffset),
		NearResetWindow:     getEnvDuration("NEAR_RESET_WINDOW", defaultNearResetWindow),
		ImplicitUseHorizon:  getEnvDuration("IMPLICIT_USE_HORIZON", defaultImplicitUseHorizon),
		ChartDisplayMinutes: getEnvInt("CHART_DISPLAY_MINUTES", defaultChartDisplayMinutes),
		ChartBucketMinutes:  getEnvInt("CHART_BUCKET_MINUTES", defaultChartBucketMinutes),
		Notifications:       getEnvBool("NOTIFICATIONS", true),
	}

	if err := ensureDir(cfg.DataDir); err != nil {
		return nil, err
	}
	for _, p := range []string{cfg.HistoryPath, cfg.BufferPath, cfg.AccountsPath} {
		if err := ensureDir(filepath.Dir(p)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// RequireCredentials fails when the OAuth client needed for quota fetches is missing.
func (c *Config) RequireCredentials() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "antigravity-quota", ".env"),
			filepath.Join(home, ".antigravity", ".env"),
		)
	}

	return paths
}

// getDefaultDataDir returns the directory holding history, buffer and accounts.
func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".antigravity-booster")
}

// getDefaultIDEStateDBPath returns where the Antigravity IDE keeps its global state.
func getDefaultIDEStateDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "Antigravity", "User", "globalStorage", "state.vscdb")
	}
	return ""
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvInt retrieves a positive integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
