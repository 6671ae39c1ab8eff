package routeevent

import (
	"fmt"

	"purchase-fulfillment/internal/models"
)

type Config struct {
	// ProductDiscriminator is the metadata product value that marks a
	// payment intent as belonging to this funnel.
	ProductDiscriminator string                `mapstructure:"product_discriminator"`
	DefaultSource        models.PurchaseSource `mapstructure:"default_source"`
}

func DefaultConfig() *Config {
	return &Config{
		ProductDiscriminator: "resistance_map",
		DefaultSource:        models.SourceFunnel,
	}
}

func (c *Config) Validate() error {
	if c.ProductDiscriminator == "" {
		return fmt.Errorf("product_discriminator is required")
	}
	switch c.DefaultSource {
	case models.SourceFunnel, models.SourcePortal:
	default:
		return fmt.Errorf("default_source must be funnel or portal (got %q)", c.DefaultSource)
	}
	return nil
}
