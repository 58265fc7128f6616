package outreach

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config controls the recruitment service. File values are read first and
// environment variables override them.
type Config struct {
	Enabled     bool          `yaml:"enabled" env:"RECRUITMENT_ENABLED"`
	DryRun      *bool         `yaml:"dry_run" env:"RECRUITMENT_DRY_RUN"`
	MaxPerHour  int           `yaml:"max_per_hour" env:"RECRUITMENT_MAX_PER_HOUR"`
	MaxPerDay   int           `yaml:"max_per_day" env:"RECRUITMENT_MAX_PER_DAY"`
	Concurrency int           `yaml:"concurrency" env:"RECRUITMENT_CONCURRENCY"`
	Pacing      time.Duration `yaml:"pacing" env:"RECRUITMENT_PACING"` // negative disables pacing
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`

	GitHub      GitHubConfig      `yaml:"github"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	Email       EmailConfig       `yaml:"email"`
}

// GitHubConfig holds the GitHub API settings shared by discovery and the
// issue channel.
type GitHubConfig struct {
	Token  string `yaml:"token" env:"GITHUB_TOKEN"`
	APIURL string `yaml:"api_url" env:"GITHUB_API_URL"`
}

// HuggingFaceConfig points discovery at the Hugging Face API.
type HuggingFaceConfig struct {
	APIURL string `yaml:"api_url" env:"HUGGINGFACE_API_URL"`
}

// EmailConfig enables the email channel when APIKey, From and APIURL are all set.
type EmailConfig struct {
	APIKey string `yaml:"api_key" env:"EMAIL_API_KEY"`
	From   string `yaml:"from" env:"EMAIL_FROM"`
	APIURL string `yaml:"api_url" env:"EMAIL_API_URL"`
}

func (c *Config) defaults() {
	if c.DryRun == nil {
		dry := true
		c.DryRun = &dry
	}
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = 100
	}
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = 500
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Pacing == 0 {
		c.Pacing = 2 * time.Second
	}
}

func (c *Config) dryRun() bool { return c.DryRun == nil || *c.DryRun }

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig fills target from the YAML file at path, when path is not
// empty, then from the environment.
func LoadConfig(path string, target any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("outreach: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("outreach: parse config: %w", err)
		}
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("outreach: parse env: %w", err)
	}
	return nil
}
