package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	application "drydock/contexts/identity-access/access-control/application"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/domain/services"
	"drydock/contexts/identity-access/access-control/ports"
)

// ListAppUsersUseCase returns the sharing set of one app, owner excluded.
// The owner, a superuser, or any sharing member may call it.
type ListAppUsersUseCase struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

func (u ListAppUsersUseCase) Execute(ctx context.Context, caller string, appID string) ([]string, error) {
	if strings.TrimSpace(caller) == "" {
		return nil, domainerrors.ErrCallerRequired
	}
	if strings.TrimSpace(appID) == "" {
		return nil, domainerrors.ErrInvalidAppID
	}

	app, err := u.Repository.GetApp(ctx, strings.TrimSpace(appID))
	if err != nil {
		return nil, err
	}
	sharing, err := u.Repository.ListSharing(ctx, app.AppID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(sharing))
	for _, permission := range sharing {
		names = append(names, permission.Username)
	}
	sort.Strings(names)

	user, err := resolveCaller(ctx, u.Repository, caller)
	if err != nil {
		return nil, err
	}
	if decision := services.Decide(user, services.ForApp(app, names), services.OpViewApp); !decision.Allowed {
		logger := application.ResolveLogger(u.Logger)
		logger.Warn("sharing listing denied",
			"event", "access_list_app_users_denied",
			"module", "identity-access/access-control",
			"layer", "application",
			"caller", user.Username,
			"app_id", app.AppID,
		)
		return nil, domainerrors.ErrForbidden
	}

	return names, nil
}
