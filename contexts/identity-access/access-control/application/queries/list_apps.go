package queries

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

// ListAppsUseCase returns the apps visible to the caller: owned apps plus
// shared apps, or every app for a superuser. Apps the caller cannot access
// are absent from the listing, not denied.
type ListAppsUseCase struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	VisibilityTTL   time.Duration
	Logger          *slog.Logger
}

func (u ListAppsUseCase) Execute(ctx context.Context, caller string) ([]entities.App, error) {
	if strings.TrimSpace(caller) == "" {
		return nil, domainerrors.ErrCallerRequired
	}

	user, err := resolveCaller(ctx, u.Repository, caller)
	if err != nil {
		return nil, err
	}

	logger := application.ResolveLogger(u.Logger)
	now := u.now()

	if u.VisibilityCache != nil {
		apps, hit, err := u.VisibilityCache.Get(ctx, user.Username, now)
		if err == nil && hit {
			logger.Debug("app listing served from cache",
				"event", "access_list_apps_cache_hit",
				"module", "identity-access/access-control",
				"layer", "application",
				"caller", user.Username,
				"app_count", len(apps),
			)
			return apps, nil
		}
		if err != nil {
			logger.Warn("visibility cache lookup failed",
				"event", "access_visibility_cache_get_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"caller", user.Username,
				"error", err.Error(),
			)
		}
	}

	var apps []entities.App
	if user.IsSuperuser {
		apps, err = u.Repository.ListAllApps(ctx)
	} else {
		apps, err = u.Repository.ListAppsForUser(ctx, user.Username)
	}
	if err != nil {
		return nil, err
	}

	if u.VisibilityCache != nil {
		if err := u.VisibilityCache.Set(ctx, user.Username, apps, now.Add(u.visibilityTTL())); err != nil {
			logger.Warn("visibility cache store failed",
				"event", "access_visibility_cache_set_failed",
				"module", "identity-access/access-control",
				"layer", "application",
				"caller", user.Username,
				"error", err.Error(),
			)
		}
	}
	return apps, nil
}

func (u ListAppsUseCase) visibilityTTL() time.Duration {
	if u.VisibilityTTL <= 0 {
		return 5 * time.Minute
	}
	return u.VisibilityTTL
}

func (u ListAppsUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
