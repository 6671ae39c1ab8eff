package ordersync

import "fmt"

type Config struct {
	PrimarySKU   string `mapstructure:"primary_sku"`
	PrimaryTitle string `mapstructure:"primary_title"`
	BumpSKU      string `mapstructure:"bump_sku"`
	BumpTitle    string `mapstructure:"bump_title"`
	// BumpPriceMinorUnits is carved out of the event total for the bump line
	// when the grant carries no catalog price for the bump.
	BumpPriceMinorUnits int64    `mapstructure:"bump_price_minor_units"`
	Tags                []string `mapstructure:"tags"`
	SourceName          string   `mapstructure:"source_name"`
}

func DefaultConfig() *Config {
	return &Config{
		PrimarySKU:   "resistance-mapping-guide",
		PrimaryTitle: "Resistance Mapping Guide",
		BumpSKU:      "golden-thread-technique",
		BumpTitle:    "Golden Thread Technique",
		Tags:         []string{"funnel", "resistance-map"},
		SourceName:   "funnel",
	}
}

func (c *Config) Validate() error {
	if c.PrimarySKU == "" {
		return fmt.Errorf("primary_sku is required")
	}
	if c.BumpPriceMinorUnits < 0 {
		return fmt.Errorf("bump_price_minor_units must not be negative")
	}
	return nil
}
