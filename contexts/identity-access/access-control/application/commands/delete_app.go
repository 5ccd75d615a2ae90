package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "drydock/contexts/identity-access/access-control/application"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/domain/services"
	"drydock/contexts/identity-access/access-control/ports"
)

// DeleteAppCommand destroys an app on behalf of Caller.
type DeleteAppCommand struct {
	Caller string
	AppID  string
}

// DeleteAppUseCase is the resource-lifecycle deletion hook. The sharing set
// is removed in the same transaction as the app row.
type DeleteAppUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Logger          *slog.Logger
}

func (u DeleteAppUseCase) Execute(ctx context.Context, cmd DeleteAppCommand) error {
	logger := application.ResolveLogger(u.Logger)

	if strings.TrimSpace(cmd.Caller) == "" {
		return domainerrors.ErrCallerRequired
	}
	appID := strings.TrimSpace(cmd.AppID)
	if appID == "" {
		return domainerrors.ErrInvalidAppID
	}

	app, err := u.Repository.GetApp(ctx, appID)
	if err != nil {
		return err
	}
	sharing, err := u.Repository.ListSharing(ctx, appID)
	if err != nil {
		return err
	}
	caller, err := ensureAppAuthority(ctx, u.Repository, cmd.Caller, app, sharing, services.OpManageSharing)
	if err != nil {
		return err
	}

	outboxID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}

	if err := u.Repository.DeleteApp(ctx, ports.DeleteAppInput{
		OutboxID:  outboxID,
		AppID:     appID,
		DeletedBy: caller.Username,
		DeletedAt: u.now(),
	}); err != nil {
		logger.Error("app deletion failed",
			"event", "access_delete_app_failed",
			"module", "identity-access/access-control",
			"layer", "application",
			"caller", caller.Username,
			"app_id", appID,
			"error", err.Error(),
		)
		return err
	}

	if u.VisibilityCache != nil {
		stale := append(sharingUsernames(sharing), app.Owner)
		for _, username := range stale {
			if err := u.VisibilityCache.Invalidate(ctx, username); err != nil {
				logger.Warn("visibility cache invalidate failed after app deletion",
					"event", "access_cache_invalidation_failed",
					"module", "identity-access/access-control",
					"layer", "application",
					"username", username,
					"error", err.Error(),
				)
			}
		}
	}

	logger.Info("app deleted",
		"event", "access_delete_app_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"caller", caller.Username,
		"app_id", appID,
		"cascaded_permissions", len(sharing),
	)
	return nil
}

func (u DeleteAppUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
