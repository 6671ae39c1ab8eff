// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig             `mapstructure:"app"`
	Server       ServerConfig          `mapstructure:"server"`
	Database     DatabaseConfig        `mapstructure:"database"`
	Stripe       StripeConfig          `mapstructure:"stripe"`
	Identity     IdentityConfig        `mapstructure:"identity"`
	Integrations IntegrationConfig     `mapstructure:"integrations"`
	Automation   AutomationConfig      `mapstructure:"automation"`
	AWS          AWSConfig             `mapstructure:"aws"`
	Alerts       AlertsConfig          `mapstructure:"alerts"`
	Fulfillment  FulfillmentConfig     `mapstructure:"fulfillment"`
	Steps        map[string]StepConfig `mapstructure:"steps"`
	Logging      LoggingConfig         `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int   `mapstructure:"port"`
	ReadTimeout     int   `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int   `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int   `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64 `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	// Driver selects the account store: postgres, or memory for local runs.
	Driver        string              `mapstructure:"driver"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	EnsureSchema   bool   `mapstructure:"ensure_schema"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses        []string `mapstructure:"addresses"`
	Username         string   `mapstructure:"username"`
	Password         string   `mapstructure:"password"`
	URL              string   `mapstructure:"url"`
	AttributionIndex string   `mapstructure:"attribution_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address         string `mapstructure:"address"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	PoolSize        int    `mapstructure:"pool_size"`
	ProductCacheTTL int    `mapstructure:"product_cache_ttl"` // seconds
}

// StepConfig holds the settings applicable to every fan-out step.
type StepConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // milliseconds
}

// --- Specific Configuration Sections ---

type StripeConfig struct {
	SecretKey                string `mapstructure:"secret_key"`
	WebhookSecret            string `mapstructure:"webhook_secret"`
	IgnoreAPIVersionMismatch bool   `mapstructure:"ignore_api_version_mismatch"`
}

// IdentityConfig holds the login identity store settings.
type IdentityConfig struct {
	Keycloak struct {
		Enabled      bool   `mapstructure:"enabled"`
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

// IntegrationConfig holds settings for CRM, ad attribution and the order system.
type IntegrationConfig struct {
	Zoho struct {
		BaseURL   string `mapstructure:"base_url"`
		AuthToken string `mapstructure:"oauth_token"`
	} `mapstructure:"zoho"`

	Meta struct {
		BaseURL       string `mapstructure:"base_url"`
		APIVersion    string `mapstructure:"api_version"`
		PixelID       string `mapstructure:"pixel_id"`
		AccessToken   string `mapstructure:"access_token"`
		TestEventCode string `mapstructure:"test_event_code"`
	} `mapstructure:"meta"`

	Shopify struct {
		BaseURL     string `mapstructure:"base_url"`
		APIVersion  string `mapstructure:"api_version"`
		AccessToken string `mapstructure:"access_token"`
	} `mapstructure:"shopify"`
}

// AutomationConfig selects where automation signals are published.
type AutomationConfig struct {
	Driver  string `mapstructure:"driver"` // camunda | sns | none
	Camunda struct {
		GatewayAddress         string `mapstructure:"gateway_address"`
		UsePlaintextConnection bool   `mapstructure:"use_plaintext_connection"`
		MessageTTL             int    `mapstructure:"message_ttl"` // milliseconds
	} `mapstructure:"camunda"`
	SNS struct {
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type AlertsConfig struct {
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
}

// FulfillmentConfig holds the product and pipeline rules.
type FulfillmentConfig struct {
	ProductDiscriminator string   `mapstructure:"product_discriminator"`
	PrimaryProductSlug   string   `mapstructure:"primary_product_slug"`
	BumpProductSlug      string   `mapstructure:"bump_product_slug"`
	BumpPriceMinorUnits  int64    `mapstructure:"bump_price_minor_units"`
	PlaceholderEmails    []string `mapstructure:"placeholder_emails"`
	DefaultSource        string   `mapstructure:"default_source"`
	PrimarySegment       string   `mapstructure:"primary_segment"`
	BumpSegment          string   `mapstructure:"bump_segment"`
	OrderTags            []string `mapstructure:"order_tags"`
	AttributionTimeout   int      `mapstructure:"attribution_timeout"` // milliseconds
	GrantTimeout         int      `mapstructure:"grant_timeout"`       // milliseconds
	RetryOnGrantFailure  bool     `mapstructure:"retry_on_grant_failure"`
	Dispatcher           struct {
		Workers   int `mapstructure:"workers"`
		QueueSize int `mapstructure:"queue_size"`
		Timeout   int `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"dispatcher"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
