package ports

import (
	"context"
	"time"

	"drydock/contexts/identity-access/access-control/domain/entities"
	"drydock/internal/shared/events"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for app/outbox identifiers.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// CreateUserInput is written atomically with the first-user claim: the
// repository decides inside one transaction whether this registration wins
// the bootstrap superuser slot.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// GrantAdminInput carries the outbox identifier persisted with the grant.
type GrantAdminInput struct {
	OutboxID  string
	Username  string
	GrantedBy string
	GrantedAt time.Time
}

// RevokeAdminInput carries the outbox identifier persisted with the revoke.
type RevokeAdminInput struct {
	OutboxID  string
	Username  string
	RevokedBy string
	RevokedAt time.Time
}

// CreateAppInput registers an app with its immutable owner.
type CreateAppInput struct {
	AppID     string
	Owner     string
	CreatedAt time.Time
}

// DeleteAppInput removes an app and cascades its sharing set in the same
// transaction.
type DeleteAppInput struct {
	OutboxID  string
	AppID     string
	DeletedBy string
	DeletedAt time.Time
}

// ShareMutationInput targets one (app, user) pair of the sharing set.
type ShareMutationInput struct {
	OutboxID   string
	AppID      string
	Username   string
	ActedBy    string
	OccurredAt time.Time
}

// Repository is the transactional storage boundary for identity, admin
// grants, apps, and sharing sets. Every mutating call is a single bounded
// transaction; multi-row writes are atomic.
type Repository interface {
	CreateUser(ctx context.Context, input CreateUserInput) (entities.User, error)
	GetUser(ctx context.Context, username string) (entities.User, error)
	UserExists(ctx context.Context, username string) (bool, error)

	ListAdmins(ctx context.Context) ([]entities.User, error)
	GrantAdmin(ctx context.Context, input GrantAdminInput) (entities.User, error)
	RevokeAdmin(ctx context.Context, input RevokeAdminInput) (entities.User, error)

	CreateApp(ctx context.Context, input CreateAppInput) (entities.App, error)
	GetApp(ctx context.Context, appID string) (entities.App, error)
	DeleteApp(ctx context.Context, input DeleteAppInput) error
	ListAllApps(ctx context.Context) ([]entities.App, error)
	ListAppsForUser(ctx context.Context, username string) ([]entities.App, error)

	ListSharing(ctx context.Context, appID string) ([]entities.AppPermission, error)
	GrantAppAccess(ctx context.Context, input ShareMutationInput) ([]entities.AppPermission, error)
	RevokeAppAccess(ctx context.Context, input ShareMutationInput) error
}

// VisibilityCache stores per-user visible-app listings with TTL semantics.
type VisibilityCache interface {
	Get(ctx context.Context, username string, now time.Time) ([]entities.App, bool, error)
	Set(ctx context.Context, username string, apps []entities.App, expiresAt time.Time) error
	Invalidate(ctx context.Context, username string) error
}

// OutboxMessage represents a pending policy-change relay message.
type OutboxMessage struct {
	OutboxID  string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxRepository supports worker relay polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// PolicyChangedEvent is the canonical envelope carried on the bus.
type PolicyChangedEvent = events.Envelope

// PolicyChangedPublisher emits policy change events to the bus adapter.
type PolicyChangedPublisher interface {
	PublishPolicyChanged(ctx context.Context, event PolicyChangedEvent) error
}

// EventDedupStore enforces idempotent processing for consumed events.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}
