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

// RegisterUserCommand is the registration hook input. No caller identity:
// registration is the one operation open to unauthenticated collaborators.
type RegisterUserCommand struct {
	Username string
	Email    string
	Password string
}

// RegisterUserUseCase creates a user and atomically decides the first-user
// superuser bootstrap inside the repository transaction.
type RegisterUserUseCase struct {
	Repository ports.Repository
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (u RegisterUserUseCase) Execute(ctx context.Context, cmd RegisterUserCommand) (entities.User, error) {
	logger := application.ResolveLogger(u.Logger)

	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return entities.User{}, domainerrors.ErrInvalidUsername
	}
	if strings.TrimSpace(cmd.Email) == "" {
		return entities.User{}, domainerrors.ErrInvalidEmail
	}
	if cmd.Password == "" {
		return entities.User{}, domainerrors.ErrInvalidPassword
	}

	user, err := u.Repository.CreateUser(ctx, ports.CreateUserInput{
		Username:     username,
		Email:        strings.TrimSpace(cmd.Email),
		PasswordHash: hashCredential(cmd.Password),
		CreatedAt:    u.now(),
	})
	if err != nil {
		logger.Error("user registration failed",
			"event", "access_register_user_failed",
			"module", "identity-access/access-control",
			"layer", "application",
			"username", username,
			"error", err.Error(),
		)
		return entities.User{}, err
	}

	logger.Info("user registered",
		"event", "access_register_user_completed",
		"module", "identity-access/access-control",
		"layer", "application",
		"username", user.Username,
		"is_superuser", user.IsSuperuser,
	)
	return user, nil
}

func (u RegisterUserUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
