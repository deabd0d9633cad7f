package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

const (
	DefaultSubscriber = "mailto:noreply@onepiece-offline.local"
	DefaultTTL        = 86400

	pushIcon  = "/icon-192x192.png"
	pushBadge = "/badge-72x72.png"
	pushTag   = "onepiece-chapter"
)

// ErrSubscriptionGone means the push service no longer knows a subscription.
var ErrSubscriptionGone = errors.New("push subscription expired")

// Payload is the JSON body shown by the service worker.
type Payload struct {
	Title              string                 `json:"title"`
	Body               string                 `json:"body"`
	Icon               string                 `json:"icon"`
	Badge              string                 `json:"badge"`
	Tag                string                 `json:"tag"`
	RequireInteraction bool                   `json:"requireInteraction"`
	Data               map[string]interface{} `json:"data,omitempty"`
}

// NewPayload fills in the icon, badge and tag shared by every notification.
func NewPayload(title, body string, extra map[string]interface{}) Payload {
	return Payload{
		Title:              title,
		Body:               body,
		Icon:               pushIcon,
		Badge:              pushBadge,
		Tag:                pushTag,
		RequireInteraction: true,
		Data:               extra,
	}
}

// ChapterPayload announces a new chapter.
func ChapterPayload(entry data.ChapterEntry) Payload {
	title := entry.Title
	if title == "" {
		title = fmt.Sprintf("Kapitel %d", entry.Number)
	}
	return NewPayload(
		fmt.Sprintf("Neues One Piece Kapitel %d", entry.Number),
		fmt.Sprintf("%s ist jetzt verfügbar!", title),
		map[string]interface{}{
			"chapter": entry.Number,
			"title":   title,
			"url":     fmt.Sprintf("/download/%d", entry.Number),
		},
	)
}

// Sender delivers one encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub Subscription) error
}

// VAPIDKeys identify this application server to push services.
type VAPIDKeys struct {
	Public  string
	Private string
}

func GenerateVAPIDKeys() (VAPIDKeys, error) {
	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, errors.Wrap(err, "generate vapid keys")
	}
	return VAPIDKeys{Public: public, Private: private}, nil
}

// WebPushSender sends through the Web Push protocol.
type WebPushSender struct {
	keys       VAPIDKeys
	subscriber string
	ttl        int
	client     *http.Client
}

func NewWebPushSender(keys VAPIDKeys, subscriber string, ttl int, client *http.Client) *WebPushSender {
	if subscriber == "" {
		subscriber = DefaultSubscriber
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushSender{keys: keys, subscriber: subscriber, ttl: ttl, client: client}
}

func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub Subscription) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{Auth: sub.Keys.Auth, P256dh: sub.Keys.P256dh},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		TTL:             s.ttl,
		VAPIDPublicKey:  s.keys.Public,
		VAPIDPrivateKey: s.keys.Private,
	})
	if err != nil {
		return data.Transient(err, "push to %s", sub.Endpoint)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errors.Wrapf(ErrSubscriptionGone, "push service answered %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return errors.Errorf("push service answered %d", resp.StatusCode)
	}
	return nil
}

// PushChannel sends a browser notification per chapter to every subscriber.
type PushChannel struct {
	subs    *Subscriptions
	sender  Sender
	enabled bool
	log     logger.Logger
}

func NewPushChannel(subs *Subscriptions, sender Sender, enabled bool, log logger.Logger) *PushChannel {
	return &PushChannel{subs: subs, sender: sender, enabled: enabled, log: log}
}

func (c *PushChannel) Name() string {
	return "push"
}

func (c *PushChannel) Enabled() bool {
	return c.enabled
}

func (c *PushChannel) Subscriptions() *Subscriptions {
	return c.subs
}

func (c *PushChannel) Notify(ctx context.Context, entries []data.ChapterEntry) (int, error) {
	total := 0
	var failures int
	for _, entry := range entries {
		sent, failed, err := c.broadcast(ctx, ChapterPayload(entry))
		if err != nil {
			return total, err
		}
		total += sent
		failures += failed
	}
	if failures > 0 {
		return total, errors.Errorf("%d push deliveries failed", failures)
	}
	return total, nil
}

// Send delivers a custom payload to every subscriber and returns the number
// of successful deliveries.
func (c *PushChannel) Send(ctx context.Context, payload Payload) (int, error) {
	sent, _, err := c.broadcast(ctx, payload)
	return sent, err
}

func (c *PushChannel) broadcast(ctx context.Context, payload Payload) (sent, failed int, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}

	for _, sub := range c.subs.List() {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}
		err := c.sender.Send(ctx, body, sub)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrSubscriptionGone):
			if _, rmErr := c.subs.Remove(sub.Endpoint); rmErr != nil {
				c.log.Err(rmErr).Warn("failed to persist subscription removal")
			}
			c.log.Info("removed expired push subscription", logger.Data{"endpoint": truncate(sub.Endpoint, 50)})
		default:
			failed++
			c.log.Err(err).Warn("push delivery failed", logger.Data{"endpoint": truncate(sub.Endpoint, 50)})
		}
	}
	c.log.Debug("push notification broadcast", logger.Data{"title": payload.Title, "sent": sent, "failed": failed})
	return sent, failed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
