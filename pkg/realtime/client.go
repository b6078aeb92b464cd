package realtime

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"kchat/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// Client dials the chat backend's websocket push endpoint.
type Client struct {
	baseURL string
	apiKey  string
	logger  *logrus.Logger
}

// NewClient creates a realtime client for the given backend base URL.
func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Subscribe opens one push subscription for the room. The returned
// Subscription delivers insert events until Close is called or the
// connection drops; the caller owns teardown.
func (c *Client) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	endpoint, err := c.wsEndpoint(roomID)
	if err != nil {
		return nil, err
	}

	opts := &websocket.DialOptions{}
	if c.apiKey != "" {
		opts.HTTPHeader = map[string][]string{"X-Api-Key": {c.apiKey}}
	}

	conn, _, err := websocket.Dial(ctx, endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		conn:   conn,
		cancel: cancel,
		events: make(chan models.RealtimeEvent, 16),
		states: make(chan models.ChannelState, 4),
		logger: c.logger,
		roomID: roomID,
	}

	sub.stateChange(models.ChannelConnected)
	go sub.readLoop(readCtx)

	return sub, nil
}

func (c *Client) wsEndpoint(roomID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/rooms/" + url.PathEscape(roomID)
	return u.String(), nil
}

// Subscription is one live room subscription.
type Subscription struct {
	conn      *websocket.Conn
	cancel    context.CancelFunc
	events    chan models.RealtimeEvent
	states    chan models.ChannelState
	logger    *logrus.Logger
	roomID    string
	closeOnce sync.Once
}

// Events returns the stream of push events. The channel is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan models.RealtimeEvent {
	return s.events
}

// States returns connection-state notifications. Best effort: slow consumers
// miss intermediate transitions rather than blocking the read loop.
func (s *Subscription) States() <-chan models.ChannelState {
	return s.states
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	})
	return nil
}

func (s *Subscription) readLoop(ctx context.Context) {
	defer func() {
		s.stateChange(models.ChannelClosed)
		close(s.events)
		close(s.states)
		_ = s.conn.CloseNow()
	}()

	for {
		var ev models.RealtimeEvent
		if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
			if ctx.Err() == nil {
				s.logger.WithError(err).WithField("room", s.roomID).Debug("Realtime read ended")
			}
			return
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) stateChange(state models.ChannelState) {
	select {
	case s.states <- state:
	default:
	}
}
