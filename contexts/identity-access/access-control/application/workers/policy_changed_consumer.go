package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"drydock/contexts/identity-access/access-control/ports"
)

// PolicyChangedConsumer invalidates the visibility cache of the affected
// user when a policy change event arrives, with event-level dedup so
// redelivery stays idempotent.
type PolicyChangedConsumer struct {
	Dedup           ports.EventDedupStore
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	DedupTTL        time.Duration
}

type policyChangedPayload struct {
	Username string `json:"username"`
}

func (c PolicyChangedConsumer) Handle(ctx context.Context, event ports.PolicyChangedEvent) error {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	alreadyProcessed, err := c.Dedup.ReserveEvent(
		ctx,
		event.EventID,
		hashPayload(event.Data),
		now.Add(c.dedupTTL()),
	)
	if err != nil || alreadyProcessed {
		return err
	}

	var payload policyChangedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return err
	}
	if payload.Username == "" {
		return nil
	}
	return c.VisibilityCache.Invalidate(ctx, payload.Username)
}

func (c PolicyChangedConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
