package service

import (
	"context"

	"kchat/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizeBody hides message content in logs unless verbose logging is on.
func SanitizeBody(ctx context.Context, body string) string {
	if body == "" {
		return ""
	}
	if IsVerboseLogging(ctx) {
		return body
	}
	return "[hidden]"
}

// SanitizeFields masks identifying fields unless verbose logging is on.
func SanitizeFields(ctx context.Context, fields logrus.Fields) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return fields
	}
	return logrus.Fields(privacy.MaskSensitiveFields(fields))
}

// LogWithContext creates a logger entry with optional sensitive information
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	return logger.WithField("verbose", IsVerboseLogging(ctx))
}
