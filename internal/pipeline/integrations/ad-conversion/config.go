package adconversion

import "fmt"

type Config struct {
	EventName    string `mapstructure:"event_name"`
	ActionSource string `mapstructure:"action_source"`
	// Content ids reported for the primary and bump products.
	PrimaryContentID string `mapstructure:"primary_content_id"`
	BumpContentID    string `mapstructure:"bump_content_id"`
}

func DefaultConfig() *Config {
	return &Config{
		EventName:        "Purchase",
		ActionSource:     "website",
		PrimaryContentID: "resistance-mapping-guide",
		BumpContentID:    "golden-thread-technique",
	}
}

func (c *Config) Validate() error {
	if c.EventName == "" || c.ActionSource == "" {
		return fmt.Errorf("event_name and action_source are required")
	}
	if c.PrimaryContentID == "" {
		return fmt.Errorf("primary_content_id is required")
	}
	return nil
}
