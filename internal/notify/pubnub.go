package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eventhub/monitoring"
	"eventhub/utils"

	pubnub "github.com/pubnub/go/v7"
)

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

type publishFunc func(channel string, message any) error

// PubNub publishes checkout and payout events to per-user channels.
// Publishing goes through a circuit breaker so an unreachable PubNub
// does not slow down every checkout.
type PubNub struct {
	publish publishFunc
	breaker *utils.CircuitBreaker
}

func NewPubNub(cfg Config) (*PubNub, error) {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		return nil, errors.New("pubnub publish and subscribe keys are required")
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pn := pubnub.NewPubNub(pnCfg)

	return newPubNub(func(channel string, message any) error {
		_, st, err := pn.Publish().Channel(channel).Message(message).Execute()
		if err != nil {
			return err
		}
		if st.StatusCode >= 400 {
			return fmt.Errorf("pubnub publish returned %d", st.StatusCode)
		}
		return nil
	}), nil
}

func newPubNub(publish publishFunc) *PubNub {
	return &PubNub{
		publish: publish,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (p *PubNub) Notify(ctx context.Context, channel string, payload map[string]any) error {
	err := p.breaker.Execute(ctx, func() error {
		return p.publish(channel, payload)
	})
	if err != nil {
		monitoring.TrackNotification("failed")
		slog.Warn("notification not delivered", "channel", channel, "type", payload["type"], "error", err)
		return fmt.Errorf("notify %s: %w", channel, err)
	}

	monitoring.TrackNotification("sent")
	return nil
}

// Log is used when no PubNub keys are configured.
type Log struct{}

func (Log) Notify(_ context.Context, channel string, payload map[string]any) error {
	monitoring.TrackNotification("logged")
	slog.Info("notification", "channel", channel, "payload", payload)
	return nil
}
