package validation

import (
	"net/url"
	"strings"
	"unicode"

	"kchat/internal/errors"
	"kchat/internal/models"
)

const (
	// MaxIdentifierLength bounds room, user and message identifiers.
	MaxIdentifierLength = 128
	// MaxMessageBodyLength bounds the plaintext body of a message.
	MaxMessageBodyLength = 4000
	// MaxAttachmentURLLength bounds attachment URLs.
	MaxAttachmentURLLength = 2048
)

// ValidateRoomID checks that a room identifier is usable as a path segment
// and a database key.
func ValidateRoomID(roomID string) error {
	return validateIdentifier("room ID", roomID)
}

// ValidateUserID checks a user (author) identifier.
func ValidateUserID(userID string) error {
	return validateIdentifier("user ID", userID)
}

// ValidateMessageID accepts both permanent and temporary identifiers.
func ValidateMessageID(id string) error {
	return validateIdentifier("message ID", id)
}

func validateIdentifier(name, value string) error {
	if value == "" {
		return errors.NewValidationError(name, value, "cannot be empty")
	}
	if len(value) > MaxIdentifierLength {
		return errors.NewValidationError(name, value, "exceeds maximum length")
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return errors.NewValidationError(name, value, "contains control characters")
		}
	}
	if strings.TrimSpace(value) != value {
		return errors.NewValidationError(name, value, "has leading or trailing whitespace")
	}
	return nil
}

// ValidateMessageContent enforces that a message carries either a non-blank
// body or an attachment, and that both stay within bounds.
func ValidateMessageContent(body string, attachmentURL *string) error {
	hasAttachment := attachmentURL != nil && *attachmentURL != ""

	if strings.TrimSpace(body) == "" && !hasAttachment {
		return errors.New(errors.ErrCodeInvalidInput, "message must have a body or an attachment")
	}
	if len(body) > MaxMessageBodyLength {
		return errors.NewValidationError("body", "", "exceeds maximum length")
	}
	if hasAttachment {
		if err := ValidateAttachmentURL(*attachmentURL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAttachmentURL accepts absolute http(s) URLs only.
func ValidateAttachmentURL(raw string) error {
	if len(raw) > MaxAttachmentURLLength {
		return errors.NewValidationError("attachment URL", "", "exceeds maximum length")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.NewValidationError("attachment URL", raw, "is not a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.NewValidationError("attachment URL", raw, "must use http or https")
	}
	if parsed.Host == "" {
		return errors.NewValidationError("attachment URL", raw, "is missing a host")
	}
	return nil
}

// ValidateSendRequest checks an inbound message post against the room it was
// addressed to.
func ValidateSendRequest(roomID string, req *models.SendMessageRequest) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}
	if req.RoomID != "" && req.RoomID != roomID {
		return errors.New(errors.ErrCodeInvalidInput, "room mismatch between path and body")
	}
	if err := ValidateUserID(req.AuthorID); err != nil {
		return err
	}
	return ValidateMessageContent(req.Body, req.AttachmentURL)
}

// ValidatePushSubscription checks the fields a web-push delivery needs.
func ValidatePushSubscription(sub *models.PushSubscription) error {
	if err := ValidateUserID(sub.UserID); err != nil {
		return err
	}
	if sub.Endpoint == "" || sub.P256dhKey == "" || sub.AuthKey == "" {
		return errors.NewValidationError("subscription", "", "endpoint and keys are required")
	}
	parsed, err := url.Parse(sub.Endpoint)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return errors.NewValidationError("endpoint", sub.Endpoint, "must be an absolute https URL")
	}
	return nil
}
