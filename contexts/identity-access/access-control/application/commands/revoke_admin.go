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

// RevokeAdminCommand removes a user's superuser status on behalf of Caller.
type RevokeAdminCommand struct {
	Caller   string
	Username string
}

// RevokeAdminUseCase enforces superuser authority and deletes the admin
// grant. Self-revocation and revoking the last remaining superuser are
// permitted; the platform accepts ending up with zero superusers.
type RevokeAdminUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Logger          *slog.Logger
}

func (u RevokeAdminUseCase) Execute(ctx context.Context, cmd RevokeAdminCommand) (entities.User, error) {
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

	target, err := u.Repository.RevokeAdmin(ctx, ports.RevokeAdminInput{
		OutboxID:  outboxID,
		Username:  username,
		RevokedBy: caller.Username,
		RevokedAt: u.now(),
	})
	if err != nil {
		logger.Error("admin revoke failed",
			"event", "access_revoke_admin_failed",
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
			logger.Warn("visibility cache invalidate failed after admin revoke",
				"event", "access_cache_invalidation_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"username", username,
				"error", err.Error(),
			)
		}
	}

	logger.Info("admin revoked",
		"event", "access_revoke_admin_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"caller", caller.Username,
		"username", target.Username,
	)
	return target, nil
}

func (u RevokeAdminUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
