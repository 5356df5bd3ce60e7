// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by StorageConfig.Backend.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Player  PlayerConfig
	Library LibraryConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects where playback progress is persisted.
type StorageConfig struct {
	Backend   string // badger, sqlite or redis (default: badger)
	BasePath  string // directory for badger/sqlite files (default: ~/ListenUp/player)
	RedisAddr     string // host:port, only for the redis backend
	RedisPassword string
	RedisDB       int
}

// PlayerConfig holds playback engine tuning.
type PlayerConfig struct {
	// CheckpointInterval is how often position is persisted while playing (default: 30s)
	CheckpointInterval time.Duration
	// CheckpointTimeout bounds a single progress write (default: 10s)
	CheckpointTimeout time.Duration
	// CompletionTolerance is the trailing window counted as finished (default: 10s)
	CompletionTolerance time.Duration
	DefaultRate         float64
	DefaultVolume       float64
	// UserID identifies the listener. Empty disables checkpointing.
	UserID string
	// RequireGesture makes the headless media refuse autoplay until an explicit play.
	RequireGesture bool
}

// LibraryConfig holds the track catalog configuration.
type LibraryConfig struct {
	Path  string
	Watch bool // rescan on filesystem changes (default: true)
}

// ServerConfig holds control API configuration.
type ServerConfig struct {
	Port           string        // default: 8390
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 0, the stream endpoint is long-lived
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins (default: *)

	// CommandRPS limits player commands per client address; 0 disables the limit (default: 20)
	CommandRPS   float64
	CommandBurst int // default: 40
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("playerd", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	backend := fs.String("storage", "", "Progress storage backend (badger, sqlite, redis)")
	storagePath := fs.String("storage-path", "", "Directory for progress storage")
	redisAddr := fs.String("redis-addr", "", "Redis address for the redis backend")

	checkpointInterval := fs.String("checkpoint-interval", "", "Checkpoint interval while playing (default: 30s)")
	checkpointTimeout := fs.String("checkpoint-timeout", "", "Timeout for a single checkpoint write (default: 10s)")
	completionTolerance := fs.String("completion-tolerance", "", "Trailing window counted as finished (default: 10s)")
	userID := fs.String("user", "", "Listener user ID (empty disables checkpointing)")
	requireGesture := fs.String("require-gesture", "", "Block autoplay until an explicit play (default: false)")

	libraryPath := fs.String("library-path", "", "Directory scanned for audio tracks")
	libraryWatch := fs.String("library-watch", "", "Rescan the library on file changes (default: true)")

	port := fs.String("port", "", "Control API port (default: 8390)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
			BasePath:      getConfigValue(*storagePath, "STORAGE_PATH", ""),
			RedisAddr:     getConfigValue(*redisAddr, "REDIS_ADDR", "localhost:6379"),
			RedisPassword: getConfigValue("", "REDIS_PASSWORD", ""),
			RedisDB:       getIntConfigValue("", "REDIS_DB", 0),
		},
		Player: PlayerConfig{
			DefaultRate:    getFloatConfigValue("", "PLAYER_DEFAULT_RATE", 1.0),
			DefaultVolume:  getFloatConfigValue("", "PLAYER_DEFAULT_VOLUME", 1.0),
			UserID:         getConfigValue(*userID, "PLAYER_USER_ID", ""),
			RequireGesture: getBoolConfigValue(*requireGesture, "PLAYER_REQUIRE_GESTURE", false),
		},
		Library: LibraryConfig{
			Path:  getConfigValue(*libraryPath, "LIBRARY_PATH", ""),
			Watch: getBoolConfigValue(*libraryWatch, "LIBRARY_WATCH", true),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8390"),
			AllowedOrigins: splitList(getConfigValue(*origins, "SERVER_ALLOWED_ORIGINS", "*")),
			CommandRPS:     getFloatConfigValue("", "SERVER_COMMAND_RPS", 20),
			CommandBurst:   getIntConfigValue("", "SERVER_COMMAND_BURST", 40),
		},
	}

	var err error
	if cfg.Player.CheckpointInterval, err = getDurationConfigValue(*checkpointInterval, "PLAYER_CHECKPOINT_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.Player.CheckpointTimeout, err = getDurationConfigValue(*checkpointTimeout, "PLAYER_CHECKPOINT_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.Player.CompletionTolerance, err = getDurationConfigValue(*completionTolerance, "PLAYER_COMPLETION_TOLERANCE", "10s"); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
		if c.Storage.BasePath == "" {
			return errors.New("storage path cannot be empty for file backends")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be badger, sqlite, or redis)", c.Storage.Backend)
	}

	if c.Player.CheckpointInterval <= 0 {
		return errors.New("checkpoint interval must be positive")
	}
	if c.Player.CheckpointTimeout <= 0 {
		return errors.New("checkpoint timeout must be positive")
	}
	if c.Player.CompletionTolerance < 0 {
		return errors.New("completion tolerance cannot be negative")
	}
	if c.Player.DefaultRate <= 0 {
		return fmt.Errorf("invalid default rate: %v (must be > 0)", c.Player.DefaultRate)
	}
	if c.Server.CommandRPS < 0 {
		return errors.New("command rate limit cannot be negative")
	}
	if c.Server.CommandRPS > 0 && c.Server.CommandBurst < 1 {
		return errors.New("command burst must be at least 1 when rate limiting is enabled")
	}
	if c.Player.DefaultVolume < 0 || c.Player.DefaultVolume > 1 {
		return fmt.Errorf("invalid default volume: %v (must be within 0..1)", c.Player.DefaultVolume)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.BasePath, err = expandPath(c.Storage.BasePath, filepath.Join(homeDir, "ListenUp", "player")); err != nil {
		return fmt.Errorf("invalid storage path: %w", err)
	}

	// Empty library path is allowed; the catalog is then empty.
	if c.Library.Path, err = expandPath(c.Library.Path, ""); err != nil {
		return fmt.Errorf("invalid library path: %w", err)
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return v
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
