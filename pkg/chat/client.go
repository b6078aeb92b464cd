package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kchat/internal/models"
	"kchat/pkg/chat/types"

	"github.com/sirupsen/logrus"
)

// Client is the message read/write API of the chat backend.
type Client interface {
	FetchMessagesSince(ctx context.Context, roomID string, after time.Time) ([]models.Message, error)
	PostMessage(ctx context.Context, req *models.SendMessageRequest) (*models.Message, error)
}

type ChatClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(cfg types.ClientConfig) Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg types.ClientConfig, logger *logrus.Logger) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &ChatClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchMessagesSince returns room messages strictly newer than the watermark,
// ascending by creation time. A zero watermark fetches the full history.
func (c *ChatClient) FetchMessagesSince(ctx context.Context, roomID string, after time.Time) ([]models.Message, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", c.baseURL, url.PathEscape(roomID))
	if !after.IsZero() {
		endpoint += "?after=" + url.QueryEscape(after.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var messages []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// PostMessage persists a new message and returns the authoritative stored
// record, including the server-assigned ID and timestamp.
func (c *ChatClient) PostMessage(ctx context.Context, sendReq *models.SendMessageRequest) (*models.Message, error) {
	body, err := json.Marshal(sendReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", c.baseURL, url.PathEscape(sendReq.RoomID))

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"room":     sendReq.RoomID,
	}).Debug("Posting chat message")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.apiError(resp)
	}

	var stored models.Message
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored message: %w", err)
	}

	return &stored, nil
}

func (c *ChatClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func (c *ChatClient) apiError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp types.ErrorResponse
	if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("chat API error: status %d, %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("chat API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
}
