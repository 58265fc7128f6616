package main

import (
	"crypto/sha256"
	"errors"

	"github.com/hazyhaar/outreach/outreach"
)

// serverConfig adds process settings to the recruitment config. Secrets are
// read from the environment only.
type serverConfig struct {
	outreach.Config `yaml:",inline"`

	Port              string `yaml:"port" env:"PORT"`
	DBPath            string `yaml:"db_path" env:"DB_PATH"`
	LogLevel          string `yaml:"log_level" env:"LOG_LEVEL"`
	OTELEndpoint      string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	AdminPasswordHash string `yaml:"-" env:"ADMIN_PASSWORD_HASH"`
	SessionSecret     string `yaml:"-" env:"SESSION_SECRET"`
}

func (c *serverConfig) defaults() {
	if c.Port == "" {
		c.Port = "8090"
	}
	if c.DBPath == "" {
		c.DBPath = "data/outreach.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func loadServerConfig(path string) (*serverConfig, error) {
	cfg := &serverConfig{}
	if err := outreach.LoadConfig(path, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

// jwtSecret derives a 32-byte signing key from SESSION_SECRET.
func (c *serverConfig) jwtSecret() ([]byte, error) {
	if c.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	sum := sha256.Sum256([]byte(c.SessionSecret))
	return sum[:], nil
}
