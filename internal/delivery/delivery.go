// Package delivery sends finished digests to users. Delivery is best effort:
// a failed channel is logged and never affects the stored digest.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"daily-digest/internal/config"
	"daily-digest/internal/logging"
	"daily-digest/internal/model"
)

// Channel delivers one digest to one recipient.
type Channel interface {
	Name() string
	Send(ctx context.Context, to string, d model.Digest) error
}

// Dispatcher fans a digest out to every configured channel.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// New builds channels from configuration.
func New(cfg config.DeliveryConfig) (*Dispatcher, error) {
	var chans []Channel
	for _, name := range cfg.Channels {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "email":
			if cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
				return nil, fmt.Errorf("%w: email channel needs delivery.smtp.host and delivery.smtp.from", model.ErrConfiguration)
			}
			chans = append(chans, NewEmail(cfg.SMTP))
		case "webhook":
			if cfg.Webhook.URL == "" {
				return nil, fmt.Errorf("%w: webhook channel needs delivery.webhook.url", model.ErrConfiguration)
			}
			chans = append(chans, NewWebhook(cfg.Webhook.URL, cfg.Webhook.Secret, 0))
		case "file":
			chans = append(chans, NewFile(cfg.OutputDir, cfg.Preface, cfg.Postscript))
		case "":
		default:
			return nil, fmt.Errorf("%w: unknown delivery channel %q", model.ErrConfiguration, name)
		}
	}
	return NewDispatcher(chans...), nil
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		out = append(out, c.Name())
	}
	return out
}

// Deliver sends through every channel and reports whether at least one
// succeeded.
func (d *Dispatcher) Deliver(ctx context.Context, to string, dg model.Digest) bool {
	log := logging.FromContext(ctx)
	ok := false
	for _, c := range d.channels {
		if err := c.Send(ctx, to, dg); err != nil {
			log.Warn("delivery: channel failed", "channel", c.Name(), "user_id", dg.UserID, "date", dg.Date, "err", err)
			continue
		}
		log.Info("delivery: sent", "channel", c.Name(), "user_id", dg.UserID, "date", dg.Date)
		ok = true
	}
	return ok
}
