package constants

// Default room session configuration values
const (
	DefaultPollIntervalMs = 1500
	DefaultPollTimeoutSec = 10
	DefaultRetryBackoffMs = 1000
	DefaultMaxBackoffMs   = 60000
	DefaultMaxAttempts    = 5
	DefaultServerPort     = 8082
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
)

// Default push notification values
const (
	DefaultPushTTLSec         = 3600
	DefaultWriteRatePerMinute = 60
)

// Circuit breaker settings for the chat backend
const (
	DefaultBreakerMaxFailures = 5
	DefaultBreakerResetSec    = 30
)

// Realtime hub settings
const (
	HubSendBufferSize      = 32
	ServerErrorChannelSize = 1
)

// EncryptionSalt is the fixed application salt for PBKDF2 key derivation.
const EncryptionSalt = "kchat-message-salt-v1"
