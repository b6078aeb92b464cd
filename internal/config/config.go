package config

import (
	"encoding/json"
	"fmt"
	"os"

	"kchat/internal/constants"
	"kchat/internal/models"
)

var (
	ErrMissingChatURL = models.ConfigError{Message: "missing chat API base URL"}
	ErrMissingDBPath  = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Chat.APIBaseURL == "" {
		return ErrMissingChatURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.WriteRatePerMinute <= 0 {
		c.Server.WriteRatePerMinute = constants.DefaultWriteRatePerMinute
	}

	if c.Chat.PollIntervalMs <= 0 {
		c.Chat.PollIntervalMs = constants.DefaultPollIntervalMs
	}
	if c.Chat.PollTimeoutSec <= 0 {
		c.Chat.PollTimeoutSec = constants.DefaultPollTimeoutSec
	}
	if c.Chat.HTTPTimeoutSec <= 0 {
		c.Chat.HTTPTimeoutSec = constants.DefaultHTTPTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Push.Enabled {
		if c.Push.VAPIDPublicKey == "" {
			return models.ConfigError{Message: "push is enabled but VAPID public key is missing"}
		}
		if c.Push.SubscriberEmail == "" {
			return models.ConfigError{Message: "push is enabled but subscriber email is missing"}
		}
		if c.Push.TTLSec <= 0 {
			c.Push.TTLSec = constants.DefaultPushTTLSec
		}
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("KCHAT_API_URL"); url != "" {
		c.Chat.APIBaseURL = url
	}
	if key := os.Getenv("KCHAT_API_KEY"); key != "" {
		c.Chat.APIKey = key
	}
	if path := os.Getenv("KCHAT_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	// SECURITY: the VAPID private key should be set via environment variables
	if key := os.Getenv("KCHAT_VAPID_PRIVATE_KEY"); key != "" {
		c.Push.VAPIDPrivateKey = key
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("KCHAT_ENV") == "production"

	if isProduction {
		if c.Push.Enabled && c.Push.VAPIDPrivateKey == "" {
			return models.ConfigError{Message: "VAPID private key is required in production (set KCHAT_VAPID_PRIVATE_KEY environment variable)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else {
		if c.Push.Enabled && c.Push.VAPIDPrivateKey == "" {
			fmt.Fprintf(os.Stderr, "WARNING: VAPID private key not set. Push delivery will fail until KCHAT_VAPID_PRIVATE_KEY is configured.\n")
		}
	}

	return nil
}
