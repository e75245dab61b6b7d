package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the commands need to reach the service
type Config struct {
	APIBaseURL        string `yaml:"api_url"`
	UploadBaseURL     string `yaml:"upload_url,omitempty"`
	Token             string `yaml:"token,omitempty"`
	UserID            string `yaml:"user_id,omitempty"`
	EmbeddingProvider string `yaml:"embedding_provider,omitempty"`
	TimeoutSeconds    int    `yaml:"timeout_seconds,omitempty"`
}

const (
	defaultAPIBaseURL = "http://localhost:5000"
	configFileName    = "config.yaml"
	indexFileName     = "index.db"
)

// ConfigDir returns the postchat config directory (~/.postchat)
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".postchat"), nil
}

// ConfigPath returns the path of the config file inside dir, or the
// default location when dir is empty.
func ConfigPath(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = ConfigDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, configFileName), nil
}

// IndexPath returns the path of the conversation index cache inside dir,
// or the default location when dir is empty.
func IndexPath(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = ConfigDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, indexFileName), nil
}

// LoadConfig builds the effective configuration: defaults, then the YAML
// config file (if present), then a .env file in the working directory,
// then process environment variables. Later sources win.
func LoadConfig(dir string) (*Config, error) {
	cfg := &Config{
		APIBaseURL:        defaultAPIBaseURL,
		EmbeddingProvider: DefaultEmbeddingProvider,
		TimeoutSeconds:    int(DefaultHTTPTimeout / time.Second),
	}

	path, err := ConfigPath(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// .env is optional; missing file is not an error
	if err := godotenv.Load(); err == nil {
		LogDebug("Loaded environment from .env")
	}

	if v := os.Getenv("POSTCHAT_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("POSTCHAT_UPLOAD_URL"); v != "" {
		cfg.UploadBaseURL = v
	}
	if v := os.Getenv("POSTCHAT_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("POSTCHAT_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.EmbeddingProvider = v
	}
	if v := os.Getenv("POSTCHAT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutSeconds = n
		}
	}

	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = cfg.APIBaseURL
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = DefaultEmbeddingProvider
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = int(DefaultHTTPTimeout / time.Second)
	}

	return cfg, nil
}

// SaveConfig writes the config file, creating the directory if needed
func SaveConfig(cfg *Config, dir string) error {
	path, err := ConfigPath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	// Token lives in this file, keep it owner-readable
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Timeout returns the configured HTTP timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenSource returns the auth capability handed to the API client
func (c *Config) TokenSource() TokenSource {
	return StaticToken(c.Token)
}

// Validate reports whether the config is complete enough for
// authenticated calls.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_url is not set")
	}
	if c.Token == "" {
		return fmt.Errorf("no token configured: run `postchat login` or set POSTCHAT_TOKEN")
	}
	if c.UserID == "" {
		return fmt.Errorf("no user id configured: run `postchat login` or set POSTCHAT_USER_ID")
	}
	return nil
}
