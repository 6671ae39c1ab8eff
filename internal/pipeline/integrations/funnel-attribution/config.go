package funnelattribution

import "fmt"

type Config struct {
	Index string `mapstructure:"index"`
	// Refresh is passed through to the index call ("", "true", "false", "wait_for").
	Refresh string `mapstructure:"refresh"`
}

func DefaultConfig() *Config {
	return &Config{
		Index: "funnel-purchases",
	}
}

func (c *Config) Validate() error {
	if c.Index == "" {
		return fmt.Errorf("index is required")
	}
	return nil
}
