// Package config loads the server configuration.
//
// Sources, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a YAML file, if it exists
//  3. a .env file in the working directory, if it exists (copied into the
//     process environment without overriding variables already set)
//  4. environment variables (PORT, DB_PATH, JWT_SECRET, ...)
//
// A missing YAML file is not an error, so the server runs with nothing
// but JWT_SECRET set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sakif/tagged-todos/internal/logging"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

const minSecretLength = 32

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SecureCookies   bool          `yaml:"secure_cookies"`
}

// Address is the listen address, e.g. "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// GitHubConfig enables GitHub sign-in when ClientID is set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
	RedirectURL  string `yaml:"redirect_url"` // where the browser goes after signing in
}

func (g GitHubConfig) Enabled() bool {
	return g.ClientID != ""
}

type UploadConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Storage StorageConfig  `yaml:"storage"`
	Auth    AuthConfig     `yaml:"auth"`
	GitHub  GitHubConfig   `yaml:"github"`
	Upload  UploadConfig   `yaml:"upload"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// Default returns the configuration used when nothing else is set.
// It is not valid on its own: Auth.JWTSecret has no default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:        DriverSQLite,
			SQLitePath:    "data/todos.db",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "tagged_todos",
		},
		Auth:    AuthConfig{TokenTTL: 30 * 24 * time.Hour},
		Upload:  UploadConfig{Dir: "uploads"},
		Log:     logging.Config{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the YAML file at path (if present), then .env, then the
// environment. It does not validate: the serve command calls Validate,
// the migrate command only ValidateStorage.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil // fallback to defaults if file missing
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PORT %q is not a number", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TOKEN_TTL %q: %w", v, err)
		}
		c.Auth.TokenTTL = ttl
	}
	if v, ok := lookup("METRICS_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: METRICS_ENABLED %q is not a boolean", v)
		}
		c.Metrics.Enabled = enabled
	}
	if v, ok := lookup("SECURE_COOKIES"); ok && v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: SECURE_COOKIES %q is not a boolean", v)
		}
		c.Server.SecureCookies = secure
	}

	str("DB_PATH", &c.Storage.SQLitePath)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("MONGO_URI", &c.Storage.MongoURI)
	str("MONGO_DATABASE", &c.Storage.MongoDatabase)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("GITHUB_CLIENT_ID", &c.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &c.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &c.GitHub.CallbackURL)
	str("UPLOAD_DIR", &c.Upload.Dir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.GitHub.Enabled() && c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Server.Port)
	}
	return nil
}

// Validate reports the first problem that would stop the server from
// starting correctly.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required (generate one with: openssl rand -hex 32)")
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: token TTL must be positive, got %s", c.Auth.TokenTTL)
	}

	if err := c.ValidateStorage(); err != nil {
		return err
	}

	if c.GitHub.Enabled() && c.GitHub.ClientSecret == "" {
		return errors.New("config: GITHUB_CLIENT_SECRET is required when GITHUB_CLIENT_ID is set")
	}
	if c.Upload.Dir == "" {
		return errors.New("config: upload dir is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateStorage checks only the storage section.
func (c *Config) ValidateStorage() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("config: sqlite_path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" || c.Storage.MongoDatabase == "" {
			return errors.New("config: mongo_uri and mongo_database are required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q (want sqlite, mongo or memory)", c.Storage.Driver)
	}
	return nil
}
