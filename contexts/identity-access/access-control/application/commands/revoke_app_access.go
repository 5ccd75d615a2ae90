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

// RevokeAppAccessCommand removes Username from the sharing set of AppID.
type RevokeAppAccessCommand struct {
	Caller   string
	AppID    string
	Username string
}

// RevokeAppAccessUseCase enforces owner-or-superuser authority. A sharing
// member revoking their own access is denied; revoking a pair that is not
// currently granted is a not-found, including a second revoke.
type RevokeAppAccessUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Logger          *slog.Logger
}

func (u RevokeAppAccessUseCase) Execute(ctx context.Context, cmd RevokeAppAccessCommand) error {
	logger := application.ResolveLogger(u.Logger)

	if strings.TrimSpace(cmd.Caller) == "" {
		return domainerrors.ErrCallerRequired
	}
	appID := strings.TrimSpace(cmd.AppID)
	if appID == "" {
		return domainerrors.ErrInvalidAppID
	}
	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return domainerrors.ErrInvalidUsername
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

	if err := u.Repository.RevokeAppAccess(ctx, ports.ShareMutationInput{
		OutboxID:   outboxID,
		AppID:      appID,
		Username:   username,
		ActedBy:    caller.Username,
		OccurredAt: u.now(),
	}); err != nil {
		logger.Error("app access revoke failed",
			"event", "access_revoke_app_access_failed",
			"module", "identity-access/access-control",
			"layer", "application",
			"caller", caller.Username,
			"app_id", appID,
			"username", username,
			"error", err.Error(),
		)
		return err
	}

	if u.VisibilityCache != nil {
		if err := u.VisibilityCache.Invalidate(ctx, username); err != nil {
			logger.Warn("visibility cache invalidate failed after access revoke",
				"event", "access_cache_invalidation_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"username", username,
				"error", err.Error(),
			)
		}
	}

	logger.Info("app access revoked",
		"event", "access_revoke_app_access_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"caller", caller.Username,
		"app_id", appID,
		"username", username,
	)
	return nil
}

func (u RevokeAppAccessUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
