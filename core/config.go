package core

import (
	"fmt"
	"strings"
)

type PaginationConfig struct {
	DefaultLimit int `koanf:"default_limit" mapstructure:"default_limit"`
	MaxLimit     int `koanf:"max_limit" mapstructure:"max_limit"`
}

type Config struct {
	ServiceName   string           `koanf:"service_name" mapstructure:"service_name"`
	WebhookSecret string           `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	Pagination    PaginationConfig `koanf:"pagination" mapstructure:"pagination"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "message-intake",
		Pagination: PaginationConfig{
			DefaultLimit: 50,
			MaxLimit:     MaxPageLimit,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Pagination.MaxLimit < MinPageLimit {
		return fmt.Errorf("core: pagination.max_limit must be at least %d", MinPageLimit)
	}
	if c.Pagination.DefaultLimit < MinPageLimit || c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("core: pagination.default_limit must be within [%d, %d]", MinPageLimit, c.Pagination.MaxLimit)
	}
	return nil
}

// StaticSecretSource adapts a configured secret string to SecretSource so
// the verifier and the readiness check read the same value.
type StaticSecretSource string

func (s StaticSecretSource) WebhookSecret() string {
	return strings.TrimSpace(string(s))
}
