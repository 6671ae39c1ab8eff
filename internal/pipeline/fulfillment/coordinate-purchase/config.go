package coordinatepurchase

import (
	"fmt"
	"time"
)

type Config struct {
	IdentityTimeout           time.Duration            `mapstructure:"identity_timeout"`
	AttributionTimeout        time.Duration            `mapstructure:"attribution_timeout"`
	GrantTimeout              time.Duration            `mapstructure:"grant_timeout"`
	DefaultIntegrationTimeout time.Duration            `mapstructure:"default_integration_timeout"`
	IntegrationTimeouts       map[string]time.Duration `mapstructure:"integration_timeouts"`
	// RetryOnGrantFailure answers 500 when the grant fails so the gateway
	// redelivers. Integration failures never do.
	RetryOnGrantFailure bool `mapstructure:"retry_on_grant_failure"`
	// ParallelFanOut runs the best-effort integrations concurrently.
	ParallelFanOut bool `mapstructure:"parallel_fan_out"`
}

func DefaultConfig() *Config {
	return &Config{
		IdentityTimeout:           10 * time.Second,
		AttributionTimeout:        5 * time.Second,
		GrantTimeout:              15 * time.Second,
		DefaultIntegrationTimeout: 10 * time.Second,
		IntegrationTimeouts:       map[string]time.Duration{},
		ParallelFanOut:            true,
	}
}

func (c *Config) Validate() error {
	if c.IdentityTimeout <= 0 || c.AttributionTimeout <= 0 || c.GrantTimeout <= 0 || c.DefaultIntegrationTimeout <= 0 {
		return fmt.Errorf("all step timeouts must be positive")
	}
	return nil
}

func (c *Config) integrationTimeout(name string) time.Duration {
	if d, ok := c.IntegrationTimeouts[name]; ok && d > 0 {
		return d
	}
	return c.DefaultIntegrationTimeout
}
