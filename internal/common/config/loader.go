// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// then applies environment overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up towards the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Secrets are usually injected as plain env vars rather than config keys.
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY"},
		{&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET"},
		{&cfg.Identity.Keycloak.ClientSecret, "KEYCLOAK_CLIENT_SECRET"},
		{&cfg.Integrations.Zoho.AuthToken, "ZOHO_CRM_OAUTH_TOKEN"},
		{&cfg.Integrations.Meta.AccessToken, "META_CAPI_ACCESS_TOKEN"},
		{&cfg.Integrations.Shopify.AccessToken, "SHOPIFY_ACCESS_TOKEN"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
	}

	for _, o := range overrides {
		if *o.target == "" {
			if val := os.Getenv(o.env); val != "" {
				*o.target = val
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "purchase-fulfillment"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 20000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 256 * 1024
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}
	if cfg.Database.Redis.ProductCacheTTL == 0 {
		cfg.Database.Redis.ProductCacheTTL = 300
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.AttributionIndex == "" {
		cfg.Database.Elasticsearch.AttributionIndex = "funnel-purchases"
	}

	if cfg.Integrations.Zoho.BaseURL == "" {
		cfg.Integrations.Zoho.BaseURL = "https://www.zohoapis.com/crm/v3"
	}
	if cfg.Integrations.Meta.BaseURL == "" {
		cfg.Integrations.Meta.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Integrations.Meta.APIVersion == "" {
		cfg.Integrations.Meta.APIVersion = "v19.0"
	}
	if cfg.Integrations.Shopify.APIVersion == "" {
		cfg.Integrations.Shopify.APIVersion = "2024-01"
	}

	if cfg.Automation.Driver == "" {
		cfg.Automation.Driver = "camunda"
	}
	if cfg.Automation.Camunda.MessageTTL == 0 {
		cfg.Automation.Camunda.MessageTTL = 3600000
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}

	f := &cfg.Fulfillment
	if f.ProductDiscriminator == "" {
		f.ProductDiscriminator = "resistance_map"
	}
	if f.PrimaryProductSlug == "" {
		f.PrimaryProductSlug = "resistance-mapping-guide"
	}
	if f.BumpProductSlug == "" {
		f.BumpProductSlug = "golden-thread-technique"
	}
	if len(f.PlaceholderEmails) == 0 {
		f.PlaceholderEmails = []string{"customer@placeholder.invalid"}
	}
	if f.DefaultSource == "" {
		f.DefaultSource = "funnel"
	}
	if f.PrimarySegment == "" {
		f.PrimarySegment = "resistance-map-buyers"
	}
	if f.BumpSegment == "" {
		f.BumpSegment = "golden-thread-buyers"
	}
	if len(f.OrderTags) == 0 {
		f.OrderTags = []string{"funnel", "resistance-map"}
	}
	if f.AttributionTimeout == 0 {
		f.AttributionTimeout = 5000
	}
	if f.GrantTimeout == 0 {
		f.GrantTimeout = 15000
	}
	if f.Dispatcher.Workers == 0 {
		f.Dispatcher.Workers = 4
	}
	if f.Dispatcher.QueueSize == 0 {
		f.Dispatcher.QueueSize = 256
	}
	if f.Dispatcher.Timeout == 0 {
		f.Dispatcher.Timeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Steps == nil {
		cfg.Steps = make(map[string]StepConfig)
	}
	for key, step := range cfg.Steps {
		if step.Timeout == 0 {
			step.Timeout = 10000
		}
		cfg.Steps[key] = step
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret is required")
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory (got %q)", cfg.Database.Driver)
	}

	switch cfg.Automation.Driver {
	case "camunda":
		if cfg.Automation.Camunda.GatewayAddress == "" {
			return fmt.Errorf("automation.camunda.gateway_address is required for the camunda driver")
		}
	case "sns":
		if cfg.Automation.SNS.TopicARN == "" {
			return fmt.Errorf("automation.sns.topic_arn is required for the sns driver")
		}
	case "none":
	default:
		return fmt.Errorf("automation.driver must be one of camunda, sns, none (got %q)", cfg.Automation.Driver)
	}

	if cfg.Alerts.SES.Enabled && (cfg.Alerts.SES.FromEmail == "" || len(cfg.Alerts.SES.ToEmails) == 0) {
		return fmt.Errorf("alerts.ses.from_email and alerts.ses.to_emails are required when alerts are enabled")
	}

	if cfg.Fulfillment.BumpPriceMinorUnits < 0 {
		return fmt.Errorf("fulfillment.bump_price_minor_units must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStepConfig retrieves step-specific configuration with fallback to defaults
func GetStepConfig(cfg *Config, stepName string) StepConfig {
	if step, exists := cfg.Steps[stepName]; exists {
		return step
	}

	return StepConfig{
		Enabled: true,
		Timeout: 10000,
	}
}

// IsStepEnabled checks if a specific fan-out step is enabled
func IsStepEnabled(cfg *Config, stepName string) bool {
	return GetStepConfig(cfg, stepName).Enabled
}
