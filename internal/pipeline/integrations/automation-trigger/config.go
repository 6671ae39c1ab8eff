package automationtrigger

import (
	"fmt"
	"time"
)

const (
	DriverCamunda = "camunda"
	DriverSNS     = "sns"
	DriverNone    = "none"
)

type Config struct {
	Driver     string        `mapstructure:"driver"`
	MessageTTL time.Duration `mapstructure:"message_ttl"`
	TopicARN   string        `mapstructure:"topic_arn"`
}

func DefaultConfig() *Config {
	return &Config{
		Driver:     DriverCamunda,
		MessageTTL: time.Hour,
	}
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverCamunda:
		if c.MessageTTL <= 0 {
			return fmt.Errorf("message_ttl must be positive")
		}
	case DriverSNS:
		if c.TopicARN == "" {
			return fmt.Errorf("topic_arn is required for the sns driver")
		}
	case DriverNone:
	default:
		return fmt.Errorf("unknown automation driver %q", c.Driver)
	}
	return nil
}
