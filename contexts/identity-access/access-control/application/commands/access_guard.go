package commands

import (
	"context"
	"errors"

	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/domain/services"
	"drydock/contexts/identity-access/access-control/ports"
)

// resolveCaller maps an unknown caller identity to ErrForbidden: the
// transport already authenticated the identity, so an absent registry row
// means no privileges, not a 404 on the caller themselves.
func resolveCaller(ctx context.Context, repository ports.Repository, username string) (entities.User, error) {
	caller, err := repository.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			return entities.User{}, domainerrors.ErrForbidden
		}
		return entities.User{}, err
	}
	return caller, nil
}

func ensureGlobalAuthority(ctx context.Context, repository ports.Repository, username string) (entities.User, error) {
	caller, err := resolveCaller(ctx, repository, username)
	if err != nil {
		return entities.User{}, err
	}
	if decision := services.Decide(caller, services.Global(), services.OpManageAdmins); !decision.Allowed {
		return entities.User{}, domainerrors.ErrForbidden
	}
	return caller, nil
}

func ensureAppAuthority(
	ctx context.Context,
	repository ports.Repository,
	username string,
	app entities.App,
	sharing []entities.AppPermission,
	op services.Operation,
) (entities.User, error) {
	caller, err := resolveCaller(ctx, repository, username)
	if err != nil {
		return entities.User{}, err
	}
	if decision := services.Decide(caller, services.ForApp(app, sharingUsernames(sharing)), op); !decision.Allowed {
		return entities.User{}, domainerrors.ErrForbidden
	}
	return caller, nil
}

func sharingUsernames(sharing []entities.AppPermission) []string {
	names := make([]string, 0, len(sharing))
	for _, permission := range sharing {
		names = append(names, permission.Username)
	}
	return names
}
