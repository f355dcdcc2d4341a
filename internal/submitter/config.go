// internal/submitter/config.go
package submitter

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// RepoTarget maps a local working copy to a server-side repository.
type RepoTarget struct {
	ID     string `mapstructure:"id"`
	Path   string `mapstructure:"path"`
	Branch string `mapstructure:"branch"`
}

// Config is the push client's configuration file.
type Config struct {
	ServerURL string `mapstructure:"server_url"`
	// APIKey holds the credential directly; APIKeyEnv names an environment
	// variable holding it instead, so the key never has to live in the file.
	APIKey     string       `mapstructure:"api_key"`
	APIKeyEnv  string       `mapstructure:"api_key_env"`
	BatchSize  int          `mapstructure:"batch_size"`
	MaxRetries int          `mapstructure:"max_retries"`
	Repos      []RepoTarget `mapstructure:"repos"`
}

// LoadConfig reads and eagerly validates the client configuration, so
// misconfiguration fails before any extraction begins.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("batch_size", 500)
	v.SetDefault("max_retries", 4)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.ServerURL == "" {
		return nil, errors.New("server_url is a required configuration field")
	}
	if cfg.APIKey == "" && cfg.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(cfg.APIKeyEnv)
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("api_key_env %q is set but the environment variable is empty", cfg.APIKeyEnv)
		}
	}
	if cfg.APIKey == "" {
		return nil, errors.New("either api_key or api_key_env must be configured")
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > 1000 {
		return nil, fmt.Errorf("batch_size must be between 1 and 1000, got %d", cfg.BatchSize)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be non-negative, got %d", cfg.MaxRetries)
	}
	if len(cfg.Repos) == 0 {
		return nil, errors.New("repos must contain at least one repository")
	}
	for i, repo := range cfg.Repos {
		if repo.ID == "" || repo.Path == "" {
			return nil, fmt.Errorf("repos[%d]: id and path are required", i)
		}
		if repo.Branch == "" {
			cfg.Repos[i].Branch = "main"
		}
	}

	return &cfg, nil
}
