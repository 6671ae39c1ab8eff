package grantaccess

import (
	"fmt"
	"time"
)

type Config struct {
	PrimaryProductSlug string        `mapstructure:"primary_product_slug"`
	BumpProductSlug    string        `mapstructure:"bump_product_slug"`
	ProductCacheTTL    time.Duration `mapstructure:"product_cache_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		PrimaryProductSlug: "resistance-mapping-guide",
		BumpProductSlug:    "golden-thread-technique",
		ProductCacheTTL:    5 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.PrimaryProductSlug == "" {
		return fmt.Errorf("primary_product_slug is required")
	}
	if c.BumpProductSlug == "" {
		return fmt.Errorf("bump_product_slug is required")
	}
	if c.PrimaryProductSlug == c.BumpProductSlug {
		return fmt.Errorf("bump_product_slug must differ from primary_product_slug")
	}
	return nil
}
