package resolveidentity

import (
	"fmt"
	"strings"
)

type Config struct {
	// PlaceholderEmails are sentinel addresses the checkout page submits when
	// the buyer has not typed one. They never identify a customer.
	PlaceholderEmails []string `mapstructure:"placeholder_emails"`
}

func DefaultConfig() *Config {
	return &Config{
		PlaceholderEmails: []string{"customer@placeholder.invalid"},
	}
}

func (c *Config) Validate() error {
	for i, p := range c.PlaceholderEmails {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("placeholder_emails[%d] is blank", i)
		}
	}
	return nil
}

func (c *Config) isPlaceholder(email string) bool {
	for _, p := range c.PlaceholderEmails {
		if strings.EqualFold(strings.TrimSpace(p), email) {
			return true
		}
	}
	return false
}
