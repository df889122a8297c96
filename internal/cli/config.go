package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BaseURLEnvVar overrides the ops API base URL from the config file.
const BaseURLEnvVar = "RELEASECTL_BASE_URL"

// Config represents the CLI configuration
type Config struct {
	DefaultEdge string                `yaml:"default_edge"`
	Edges       map[string]EdgeConfig `yaml:"edges"`
}

// EdgeConfig points at the ops listener of one release manager deployment.
type EdgeConfig struct {
	BaseURL string `yaml:"base_url"`
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".releasectl", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return loadConfigFrom(configPath)
}

func loadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultEdge: "local",
				Edges:       map[string]EdgeConfig{"local": {BaseURL: "http://localhost:9090"}},
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return saveConfigTo(configPath, cfg)
}

func saveConfigTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveBaseURL picks the ops API base URL.
// Priority: --base-url flag > RELEASECTL_BASE_URL > config file edge.
func ResolveBaseURL(edge, baseURLFlag string) (string, error) {
	if baseURLFlag != "" {
		return baseURLFlag, nil
	}
	if v := os.Getenv(BaseURLEnvVar); v != "" {
		return v, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}
	return cfg.BaseURL(edge)
}

// BaseURL returns the base URL of edge, or of the default edge if empty.
func (c *Config) BaseURL(edge string) (string, error) {
	if edge == "" {
		edge = c.DefaultEdge
	}
	ec, ok := c.Edges[edge]
	if !ok {
		return "", fmt.Errorf("edge '%s' not found in config", edge)
	}
	if ec.BaseURL == "" {
		return "", fmt.Errorf("base_url must be configured for edge '%s'", edge)
	}
	return ec.BaseURL, nil
}

// InitConfig creates a default config file
func InitConfig() error {
	return SaveConfig(&Config{
		DefaultEdge: "local",
		Edges: map[string]EdgeConfig{
			"local":      {BaseURL: "http://localhost:9090"},
			"production": {BaseURL: "https://ops.release-manager.example.com"},
		},
	})
}
