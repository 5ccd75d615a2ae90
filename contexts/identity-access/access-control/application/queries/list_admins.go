package queries

import (
	"context"
	"log/slog"
	"strings"

	application "drydock/contexts/identity-access/access-control/application"
	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/domain/services"
	"drydock/contexts/identity-access/access-control/ports"
)

// ListAdminsUseCase returns every superuser ordered by account creation
// time, oldest first. Only superusers may call it.
type ListAdminsUseCase struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

func (u ListAdminsUseCase) Execute(ctx context.Context, caller string) ([]entities.User, error) {
	if strings.TrimSpace(caller) == "" {
		return nil, domainerrors.ErrCallerRequired
	}

	user, err := resolveCaller(ctx, u.Repository, caller)
	if err != nil {
		return nil, err
	}
	if decision := services.Decide(user, services.Global(), services.OpManageAdmins); !decision.Allowed {
		logger := application.ResolveLogger(u.Logger)
		logger.Warn("admin listing denied",
			"event", "access_list_admins_denied",
			"module", "identity-access/access-control",
			"layer", "application",
			"caller", user.Username,
		)
		return nil, domainerrors.ErrForbidden
	}

	return u.Repository.ListAdmins(ctx)
}
