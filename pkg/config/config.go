// Package config loads sheetblocks settings.
//
// Settings come from three layers, later ones winning: built-in defaults,
// a TOML file, and SHEETBLOCKS_* environment variables. Command-line flags
// are applied on top by the caller.
//
//	[storage]
//	driver = "sqlite"
//	dir = "/var/lib/sheetblocks"
//
//	[server]
//	addr = ":8000"
//	max_upload_mb = 32
//
//	[watch]
//	debounce = "1s"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

// AppName names the XDG subdirectories and the environment prefix.
const AppName = "sheetblocks"

const envPrefix = "SHEETBLOCKS_"

// Config holds all application configuration.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Match   MatchConfig   `toml:"match"`
	Render  RenderConfig  `toml:"render"`
	Watch   WatchConfig   `toml:"watch"`
	Log     LogConfig     `toml:"log"`
}

// StorageConfig selects the storage engine.
type StorageConfig struct {
	Driver    string `toml:"driver"`
	Dir       string `toml:"dir"`
	DSN       string `toml:"dsn"`
	Namespace string `toml:"namespace"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	MaxUploadMB     int      `toml:"max_upload_mb"`
	CORSOrigins     []string `toml:"cors_origins"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// MatchConfig holds template matching settings.
type MatchConfig struct {
	// Strict also requires equal block heights.
	Strict bool `toml:"strict"`
}

// RenderConfig holds layout image settings.
type RenderConfig struct {
	Enabled bool   `toml:"enabled"`
	Format  string `toml:"format"`
}

// WatchConfig holds directory watcher settings.
type WatchConfig struct {
	Debounce    Duration `toml:"debounce"`
	InitialScan bool     `toml:"initial_scan"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string ("500ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: storage.DriverFile,
			Dir:    DataDir(),
		},
		Server: ServerConfig{
			Addr:            ":8000",
			MaxUploadMB:     32,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Render: RenderConfig{
			Enabled: true,
			Format:  "png",
		},
		Watch: WatchConfig{
			Debounce: Duration{500 * time.Millisecond},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration. An empty path means the default file
// location, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		_, err := toml.DecodeFile(path, cfg)
		if err != nil && (explicit || !os.IsNotExist(err)) {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "load config %s", path)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults. Environment variables are
// not consulted.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.InvalidInput("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Dir = getEnv("STORAGE_DIR", c.Storage.Dir)
	c.Storage.DSN = getEnv("STORAGE_DSN", c.Storage.DSN)
	c.Storage.Namespace = getEnv("STORAGE_NAMESPACE", c.Storage.Namespace)

	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	c.Server.ShutdownTimeout.Duration = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout.Duration)

	c.Match.Strict = getEnvAsBool("MATCH_STRICT", c.Match.Strict)

	c.Render.Enabled = getEnvAsBool("RENDER_ENABLED", c.Render.Enabled)
	c.Render.Format = getEnv("RENDER_FORMAT", c.Render.Format)

	c.Watch.Debounce.Duration = getEnvAsDuration("WATCH_DEBOUNCE", c.Watch.Debounce.Duration)
	c.Watch.InitialScan = getEnvAsBool("WATCH_INITIAL_SCAN", c.Watch.InitialScan)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if !slices.Contains(storage.Drivers, c.Storage.Driver) {
		return errors.InvalidInput("storage.driver must be one of %s, got %q", strings.Join(storage.Drivers, ", "), c.Storage.Driver)
	}
	switch c.Storage.Driver {
	case storage.DriverFile, storage.DriverSQLite:
		if c.Storage.Dir == "" && c.Storage.DSN == "" {
			return errors.InvalidInput("storage.dir is required for the %s driver", c.Storage.Driver)
		}
	case storage.DriverPostgres, storage.DriverRedis, storage.DriverMongo:
		if c.Storage.DSN == "" {
			return errors.InvalidInput("storage.dsn is required for the %s driver", c.Storage.Driver)
		}
	}
	if strings.ContainsAny(c.Storage.Namespace, "/\\") {
		return errors.InvalidInput("storage.namespace must not contain path separators")
	}
	if c.Server.Addr == "" {
		return errors.InvalidInput("server.addr is required")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.InvalidInput("server.max_upload_mb must be positive")
	}
	if c.Render.Format != "png" && c.Render.Format != "svg" {
		return errors.InvalidInput("render.format must be png or svg, got %q", c.Render.Format)
	}
	if c.Watch.Debounce.Duration < 0 {
		return errors.InvalidInput("watch.debounce must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.InvalidInput("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{Driver: c.Storage.Driver, Dir: c.Storage.Dir, DSN: c.Storage.DSN}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// DefaultPath is $XDG_CONFIG_HOME/sheetblocks/config.toml, or "" when no
// home directory is known.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName, "config.toml")
}

// DataDir is $XDG_DATA_HOME/sheetblocks (~/.local/share/sheetblocks).
// It falls back to a directory under the system temp dir.
func DataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

func (c *Config) String() string {
	return fmt.Sprintf("storage=%s dir=%s addr=%s strict=%t render=%t/%s",
		c.Storage.Driver, c.Storage.Dir, c.Server.Addr, c.Match.Strict, c.Render.Enabled, c.Render.Format)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(envPrefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
