package service

import (
	"context"
	"fmt"
	"io"

	"kchat/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// vapidSender delivers web-push payloads signed with the configured VAPID
// key pair.
type vapidSender struct {
	options webpush.Options
}

// NewWebPushSender creates the production WebPushSender from push config.
func NewWebPushSender(cfg models.PushConfig) (WebPushSender, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("VAPID key pair is required for web push")
	}

	return &vapidSender{
		options: webpush.Options{
			Subscriber:      cfg.SubscriberEmail,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             cfg.TTLSec,
		},
	}, nil
}

func (s *vapidSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	subscription := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	options := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, subscription, &options)
	if err != nil {
		return 0, fmt.Errorf("failed to send web push: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the transport can reuse the connection
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
