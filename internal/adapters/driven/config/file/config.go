// Package file loads marginalia's TOML configuration.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// Config is the full marginalia configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Matcher  MatcherConfig  `toml:"matcher"`
	Model    ModelConfig    `toml:"model"`
	Viewer   ViewerConfig   `toml:"viewer"`
}

// DatabaseConfig locates the annotation databases.
type DatabaseConfig struct {
	// Path is the shared annotation database (highlights plus
	// conversations). Empty selects ~/.marginalia/data/annotations.db.
	Path string `toml:"path"`

	// LocalPath is the viewer's local database holding document hashes.
	// Empty disables hash lookup and falls back to content checksums.
	LocalPath string `toml:"local_path"`
}

// MatcherConfig tunes highlight matching. Zero values select the built-in
// tolerances.
type MatcherConfig struct {
	// PointTolerance is the maximum weighted distance, in document units,
	// at which a near-miss click still matches.
	PointTolerance float64 `toml:"point_tolerance"`

	// MinOverlap is the overlap ratio at which a selection matches an
	// existing highlight outright.
	MinOverlap float64 `toml:"min_overlap"`
}

// ModelConfig selects and configures the answer model.
type ModelConfig struct {
	// Provider picks the streamer: "openai", "anthropic" or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider's default model.
	Model string `toml:"model"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// TimeoutSeconds bounds a whole streaming request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// ViewerConfig configures the sioyek integration.
type ViewerConfig struct {
	// Executable is the sioyek binary used for status updates and
	// reloads. Empty looks it up on PATH.
	Executable string `toml:"executable"`
}

// Default configuration values.
const (
	DefaultProvider  = "openai"
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
	DefaultTimeout   = 120
)

// DefaultPath returns the default config file location,
// ~/.marginalia/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".marginalia", "config.toml"), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:       DefaultProvider,
			APIKeyEnv:      DefaultAPIKeyEnv,
			TimeoutSeconds: DefaultTimeout,
		},
	}
}

// Load reads the configuration at path. An empty path selects the default
// location; a missing file yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to path, creating the directory when
// needed. An empty path selects the default location.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// Restricted permissions, the file may reference credentials
	return os.WriteFile(path, data, 0600)
}

// applyDefaults fills fields a partial file left empty.
func (c *Config) applyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = DefaultProvider
	}
	if c.Model.APIKeyEnv == "" {
		c.Model.APIKeyEnv = defaultAPIKeyEnvFor(c.Model.Provider)
	}
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = DefaultTimeout
	}
}

// defaultAPIKeyEnvFor picks the conventional key variable per provider.
func defaultAPIKeyEnvFor(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "ollama":
		return "" // local server, no key
	default:
		return DefaultAPIKeyEnv
	}
}

// MatchConfig converts the matcher section to the domain's tolerances.
// Zero fields keep the domain defaults.
func (c *Config) MatchConfig() domain.MatchConfig {
	return domain.MatchConfig{
		PointTolerance: c.Matcher.PointTolerance,
		MinOverlap:     c.Matcher.MinOverlap,
	}
}

// APIKey resolves the model API key from the configured environment
// variable.
func (c *Config) APIKey() string {
	if c.Model.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Model.APIKeyEnv)
}

// Timeout returns the model request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}
