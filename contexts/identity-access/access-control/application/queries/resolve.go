package queries

import (
	"context"
	"errors"

	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/ports"
)

// resolveCaller mirrors the command-side rule: an authenticated identity
// with no registry row has no privileges, so the caller surfaces as
// forbidden rather than not-found.
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
