package queries

import (
	"context"
	"strings"

	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/ports"
)

type GetUserUseCase struct {
	Repository ports.Repository
}

func (u GetUserUseCase) Execute(ctx context.Context, username string) (entities.User, error) {
	if strings.TrimSpace(username) == "" {
		return entities.User{}, domainerrors.ErrInvalidUsername
	}
	return u.Repository.GetUser(ctx, strings.TrimSpace(username))
}

type UserExistsUseCase struct {
	Repository ports.Repository
}

func (u UserExistsUseCase) Execute(ctx context.Context, username string) (bool, error) {
	if strings.TrimSpace(username) == "" {
		return false, domainerrors.ErrInvalidUsername
	}
	return u.Repository.UserExists(ctx, strings.TrimSpace(username))
}
