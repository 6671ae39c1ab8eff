package verifyevent

import (
	"fmt"
	"time"
)

type Config struct {
	WebhookSecret            string        `mapstructure:"webhook_secret"`
	IgnoreAPIVersionMismatch bool          `mapstructure:"ignore_api_version_mismatch"`
	Tolerance                time.Duration `mapstructure:"tolerance"`
}

func DefaultConfig() *Config {
	return &Config{
		IgnoreAPIVersionMismatch: true,
		Tolerance:                5 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook_secret is required")
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}
	return nil
}
