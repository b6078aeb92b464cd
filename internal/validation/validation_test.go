package validation

import (
	"strings"
	"testing"

	apperrors "kchat/internal/errors"
	"kchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestValidateIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"simple", "room-1", false},
		{"uuid", "b2f7c6a0-1d3e-4f5a-9b8c-7d6e5f4a3b2c", false},
		{"unicode", "日本語ルーム", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxIdentifierLength+1), true},
		{"control character", "room\x00one", true},
		{"newline", "room\none", true},
		{"leading space", " room-1", true},
		{"trailing space", "room-1 ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roomErr := ValidateRoomID(tt.value)
			userErr := ValidateUserID(tt.value)
			if tt.wantErr {
				assert.Error(t, roomErr)
				assert.Error(t, userErr)
			} else {
				assert.NoError(t, roomErr)
				assert.NoError(t, userErr)
			}
		})
	}
}

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		attachment *string
		wantErr    bool
	}{
		{"body only", "hello", nil, false},
		{"attachment only", "", strPtr("https://cdn.example.com/a.png"), false},
		{"body and attachment", "look", strPtr("https://cdn.example.com/a.png"), false},
		{"empty", "", nil, true},
		{"whitespace body", "   \t\n", nil, true},
		{"empty attachment pointer", "", strPtr(""), true},
		{"body too long", strings.Repeat("x", MaxMessageBodyLength+1), nil, true},
		{"bad attachment scheme", "", strPtr("ftp://example.com/a.png"), true},
		{"relative attachment", "", strPtr("/uploads/a.png"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageContent(tt.body, tt.attachment)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessageContent_EmptyReportsInvalidInput(t *testing.T) {
	err := ValidateMessageContent("", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestValidateSendRequest(t *testing.T) {
	valid := func() *models.SendMessageRequest {
		return &models.SendMessageRequest{AuthorID: "user-1", Body: "hello"}
	}

	t.Run("accepts valid request", func(t *testing.T) {
		assert.NoError(t, ValidateSendRequest("room-1", valid()))
	})

	t.Run("accepts matching body room", func(t *testing.T) {
		req := valid()
		req.RoomID = "room-1"
		assert.NoError(t, ValidateSendRequest("room-1", req))
	})

	t.Run("rejects room mismatch", func(t *testing.T) {
		req := valid()
		req.RoomID = "room-other"
		err := ValidateSendRequest("room-1", req)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects missing author", func(t *testing.T) {
		req := valid()
		req.AuthorID = ""
		assert.Error(t, ValidateSendRequest("room-1", req))
	})

	t.Run("rejects empty room", func(t *testing.T) {
		assert.Error(t, ValidateSendRequest("", valid()))
	})
}

func TestValidatePushSubscription(t *testing.T) {
	valid := func() *models.PushSubscription {
		return &models.PushSubscription{
			UserID:    "user-1",
			Endpoint:  "https://push.example.com/send/abc",
			P256dhKey: "p256dh",
			AuthKey:   "auth",
		}
	}

	t.Run("accepts valid subscription", func(t *testing.T) {
		assert.NoError(t, ValidatePushSubscription(valid()))
	})

	t.Run("rejects missing user", func(t *testing.T) {
		sub := valid()
		sub.UserID = ""
		assert.Error(t, ValidatePushSubscription(sub))
	})

	t.Run("rejects missing keys", func(t *testing.T) {
		sub := valid()
		sub.AuthKey = ""
		assert.Error(t, ValidatePushSubscription(sub))
	})

	t.Run("rejects plain http endpoint", func(t *testing.T) {
		sub := valid()
		sub.Endpoint = "http://push.example.com/send/abc"
		assert.Error(t, ValidatePushSubscription(sub))
	})
}
