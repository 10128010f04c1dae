package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"clubhub/internal/config"
	"clubhub/internal/models"
)

// ErrSubscriptionGone means the push service no longer accepts the subscription.
var ErrSubscriptionGone = errors.New("push subscription expired")

// Payload is the JSON document delivered to the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// PushSender delivers one payload to one subscription.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload Payload) error
}

type webPushSender struct {
	settings config.PushSettings
	client   webpush.HTTPClient
}

// NewWebPushSender signs requests with the configured VAPID key pair.
func NewWebPushSender(settings config.PushSettings) PushSender {
	return &webPushSender{settings: settings, client: http.DefaultClient}
}

func (s *webPushSender) Send(ctx context.Context, sub models.PushSubscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.settings.Subscriber,
		VAPIDPublicKey:  s.settings.VAPIDPublicKey,
		VAPIDPrivateKey: s.settings.VAPIDPrivateKey,
		TTL:             86400,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

type nopPushSender struct{}

// NewNopPushSender is used when no VAPID keys are configured.
func NewNopPushSender() PushSender { return nopPushSender{} }

func (nopPushSender) Send(context.Context, models.PushSubscription, Payload) error { return nil }
