package events

import (
	"context"
	"log/slog"

	"drydock/contexts/identity-access/access-control/ports"
	"drydock/internal/platform/messaging"
)

// Publisher logs policy-change events without a broker. It is the default
// publisher for API processes that do not run the relay.
type Publisher struct {
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger}
}

func (p Publisher) PublishPolicyChanged(_ context.Context, event ports.PolicyChangedEvent) error {
	p.logger.Info("policy changed event published",
		"event", "access_policy_changed_published",
		"module", "identity-access/access-control",
		"layer", "adapter",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
	)
	return nil
}

// BusPublisher forwards policy-change events onto the message bus topic the
// consumer side subscribes to.
type BusPublisher struct {
	Bus   *messaging.Kafka
	Topic string
}

func (p BusPublisher) PublishPolicyChanged(ctx context.Context, event ports.PolicyChangedEvent) error {
	return p.Bus.Publish(ctx, p.Topic, event)
}
