package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "drydock/contexts/identity-access/access-control/application"
	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/ports"
)

// GrantAdminCommand marks a user as superuser on behalf of Caller.
type GrantAdminCommand struct {
	Caller   string
	Username string
}

// GrantAdminUseCase enforces superuser authority and writes the admin grant
// with its outbox row in one transaction. Granting an existing admin is a
// no-op success.
type GrantAdminUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Logger          *slog.Logger
}

func (u GrantAdminUseCase) Execute(ctx context.Context, cmd GrantAdminCommand) (entities.User, error) {
	logger := application.ResolveLogger(u.Logger)

	if strings.TrimSpace(cmd.Caller) == "" {
		return entities.User{}, domainerrors.ErrCallerRequired
	}
	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return entities.User{}, domainerrors.ErrInvalidUsername
	}

	caller, err := ensureGlobalAuthority(ctx, u.Repository, cmd.Caller)
	if err != nil {
		return entities.User{}, err
	}

	outboxID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.User{}, err
	}

	target, err := u.Repository.GrantAdmin(ctx, ports.GrantAdminInput{
		OutboxID:  outboxID,
		Username:  username,
		GrantedBy: caller.Username,
		GrantedAt: u.now(),
	})
	if err != nil {
		logger.Error("admin grant failed",
			"event", "access_grant_admin_failed",
			"module", "identity-access/access-control",
			"layer", "application",
			"caller", caller.Username,
			"username", username,
			"error", err.Error(),
		)
		return entities.User{}, err
	}

	if u.VisibilityCache != nil {
		if err := u.VisibilityCache.Invalidate(ctx, username); err != nil {
			logger.Warn("visibility cache invalidate failed after admin grant",
				"event", "access_cache_invalidation_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"username", username,
				"error", err.Error(),
			)
		}
	}

	logger.Info("admin granted",
		"event", "access_grant_admin_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"caller", caller.Username,
		"username", target.Username,
	)
	return target, nil
}

func (u GrantAdminUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
