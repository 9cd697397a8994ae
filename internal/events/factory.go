package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/syncveil/apiserver/config"
)

// NewBusFromConfig selects the broker backend: "rabbitmq", "pubsub", or
// "none" for a no-op bus.
func NewBusFromConfig(ctx context.Context, cfg config.EventsConfig) (*Bus, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return NewBus(nil), nil
	case "rabbitmq":
		backend, err := NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewBus(backend), nil
	case "pubsub":
		backend, err := NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewBus(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
