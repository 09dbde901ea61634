package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sourcegraph/conc/pool"

	"github.com/dhwaniris/permsync/internal/config"
	"github.com/dhwaniris/permsync/internal/pushsubscription"
)

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// Sender delivers Web Push notifications to every registered subscription.
type Sender struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
}

func NewSender(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository) *Sender {
	return &Sender{
		vapidEnv: vapidEnv,
		repo:     repo,
	}
}

func (s *Sender) SendToAll(ctx context.Context, payload *NotificationPayload) {
	if s.vapidEnv.VAPIDPrivateKey == "" || s.vapidEnv.VAPIDPublicKey == "" {
		slog.Warn("push notification: VAPID keys not configured, skipping")
		return
	}

	subs, err := s.repo.List(ctx)
	if err != nil {
		slog.Error("push notification: failed to list subscriptions", "error", err)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("push notification: failed to marshal payload", "error", err)
		return
	}

	p := pool.New().WithMaxGoroutines(8)
	for _, sub := range subs {
		p.Go(func() {
			s.sendToSubscription(ctx, sub, data)
		})
	}
	p.Wait()
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, wpSub, &webpush.Options{
		Subscriber:      s.vapidEnv.VAPIDSubscriber,
		VAPIDPublicKey:  s.vapidEnv.VAPIDPublicKey,
		VAPIDPrivateKey: s.vapidEnv.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		slog.Error("push notification: send failed", "subscription_id", sub.ID, "error", err)
		return
	}
	defer resp.Body.Close()

	// The push service reports dead subscriptions with 404/410; drop them.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.Warn("push notification: failed to remove dead subscription", "subscription_id", sub.ID, "error", err)
		}
		return
	}
	if resp.StatusCode >= 400 {
		slog.Warn("push notification: push service rejected notification", "subscription_id", sub.ID, "status", resp.StatusCode)
	}
}
