package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "drydock/contexts/identity-access/access-control/application"
	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/domain/services"
	"drydock/contexts/identity-access/access-control/ports"
)

// GrantAppAccessCommand adds Username to the sharing set of AppID.
type GrantAppAccessCommand struct {
	Caller   string
	AppID    string
	Username string
}

// GrantAppAccessUseCase enforces owner-or-superuser authority and adds the
// target to the sharing set. Granting an existing member succeeds with the
// set unchanged; granting the owner is rejected because ownership already
// implies full access.
type GrantAppAccessUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Logger          *slog.Logger
}

func (u GrantAppAccessUseCase) Execute(ctx context.Context, cmd GrantAppAccessCommand) ([]entities.AppPermission, error) {
	logger := application.ResolveLogger(u.Logger)

	if strings.TrimSpace(cmd.Caller) == "" {
		return nil, domainerrors.ErrCallerRequired
	}
	appID := strings.TrimSpace(cmd.AppID)
	if appID == "" {
		return nil, domainerrors.ErrInvalidAppID
	}
	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return nil, domainerrors.ErrInvalidUsername
	}

	app, err := u.Repository.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	sharing, err := u.Repository.ListSharing(ctx, appID)
	if err != nil {
		return nil, err
	}
	caller, err := ensureAppAuthority(ctx, u.Repository, cmd.Caller, app, sharing, services.OpManageSharing)
	if err != nil {
		return nil, err
	}
	if username == app.Owner {
		return nil, domainerrors.ErrOwnerImplicit
	}

	outboxID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := u.Repository.GrantAppAccess(ctx, ports.ShareMutationInput{
		OutboxID:   outboxID,
		AppID:      appID,
		Username:   username,
		ActedBy:    caller.Username,
		OccurredAt: u.now(),
	})
	if err != nil {
		logger.Error("app access grant failed",
			"event", "access_grant_app_access_failed",
			"module", "identity-access/access-control",
			"layer", "application",
			"caller", caller.Username,
			"app_id", appID,
			"username", username,
			"error", err.Error(),
		)
		return nil, err
	}

	if u.VisibilityCache != nil {
		if err := u.VisibilityCache.Invalidate(ctx, username); err != nil {
			logger.Warn("visibility cache invalidate failed after access grant",
				"event", "access_cache_invalidation_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"username", username,
				"error", err.Error(),
			)
		}
	}

	logger.Info("app access granted",
		"event", "access_grant_app_access_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"caller", caller.Username,
		"app_id", appID,
		"username", username,
		"sharing_size", len(updated),
	)
	return updated, nil
}

func (u GrantAppAccessUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
