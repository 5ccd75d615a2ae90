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

// CreateAppCommand registers an app owned by Caller. AppID is optional;
// when empty a generated identifier is used.
type CreateAppCommand struct {
	Caller string
	AppID  string
}

// CreateAppUseCase is the resource-lifecycle creation hook. Ownership is
// fixed here and never changes afterwards.
type CreateAppUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Logger          *slog.Logger
}

func (u CreateAppUseCase) Execute(ctx context.Context, cmd CreateAppCommand) (entities.App, error) {
	logger := application.ResolveLogger(u.Logger)

	if strings.TrimSpace(cmd.Caller) == "" {
		return entities.App{}, domainerrors.ErrCallerRequired
	}
	owner, err := resolveCaller(ctx, u.Repository, cmd.Caller)
	if err != nil {
		return entities.App{}, err
	}

	appID := strings.TrimSpace(cmd.AppID)
	if appID == "" {
		appID, err = u.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.App{}, err
		}
	}
	if !validAppID(appID) {
		return entities.App{}, domainerrors.ErrInvalidAppID
	}

	app, err := u.Repository.CreateApp(ctx, ports.CreateAppInput{
		AppID:     appID,
		Owner:     owner.Username,
		CreatedAt: u.now(),
	})
	if err != nil {
		logger.Error("app creation failed",
			"event", "access_create_app_failed",
			"module", "identity-access/access-control",
			"layer", "application",
			"owner", owner.Username,
			"app_id", appID,
			"error", err.Error(),
		)
		return entities.App{}, err
	}

	if u.VisibilityCache != nil {
		if err := u.VisibilityCache.Invalidate(ctx, owner.Username); err != nil {
			logger.Warn("visibility cache invalidate failed after app creation",
				"event", "access_cache_invalidation_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"username", owner.Username,
				"error", err.Error(),
			)
		}
	}

	logger.Info("app created",
		"event", "access_create_app_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"owner", owner.Username,
		"app_id", app.AppID,
	)
	return app, nil
}

func (u CreateAppUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// validAppID accepts DNS-label style identifiers: lowercase alphanumerics
// and dashes, starting with an alphanumeric.
func validAppID(appID string) bool {
	if appID == "" || len(appID) > 63 {
		return false
	}
	for i, r := range appID {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' && i > 0:
		default:
			return false
		}
	}
	return true
}
