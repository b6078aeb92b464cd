package models

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Chat     ChatConfig     `json:"chat"`
	Database DatabaseConfig `json:"database"`
	Push     PushConfig     `json:"push"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port               int `json:"port"`
	ReadTimeoutSec     int `json:"readTimeoutSec"`
	WriteTimeoutSec    int `json:"writeTimeoutSec"`
	IdleTimeoutSec     int `json:"idleTimeoutSec"`
	WriteRatePerMinute int `json:"writeRatePerMinute"`
}

// ChatConfig holds room session related configurations
type ChatConfig struct {
	APIBaseURL     string `json:"api_base_url"`
	APIKey         string `json:"api_key,omitempty"`
	PollIntervalMs int    `json:"pollIntervalMs"`
	PollTimeoutSec int    `json:"pollTimeoutSec"`
	HTTPTimeoutSec int    `json:"httpTimeoutSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// PushConfig holds web-push related configurations
type PushConfig struct {
	Enabled         bool   `json:"enabled"`
	VAPIDPublicKey  string `json:"vapidPublicKey"`
	VAPIDPrivateKey string `json:"vapidPrivateKey,omitempty"`
	SubscriberEmail string `json:"subscriberEmail"`
	TTLSec          int    `json:"ttlSec"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry tracing configurations
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
