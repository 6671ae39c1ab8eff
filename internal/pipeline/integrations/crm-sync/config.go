package crmsync

import "fmt"

type Config struct {
	PrimarySegment string `mapstructure:"primary_segment"`
	BumpSegment    string `mapstructure:"bump_segment"`
	LeadSource     string `mapstructure:"lead_source"`
}

func DefaultConfig() *Config {
	return &Config{
		PrimarySegment: "resistance-map-buyers",
		BumpSegment:    "golden-thread-buyers",
		LeadSource:     "Funnel",
	}
}

func (c *Config) Validate() error {
	if c.PrimarySegment == "" {
		return fmt.Errorf("primary_segment is required")
	}
	return nil
}
