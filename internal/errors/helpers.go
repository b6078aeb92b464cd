package errors

import (
	"fmt"
)

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewChatAPIError creates an error for a failed chat backend call. Server-side
// and throttling failures are marked retryable so callers can back off.
func NewChatAPIError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeChatAPI, "chat API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewPushDeliveryError creates an error for a failed push delivery attempt
func NewPushDeliveryError(subscriptionID string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodePushDelivery, "push delivery failed").
		WithContext("subscription_id", subscriptionID).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 {
		appErr.Retryable = true
	}

	return appErr
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}
