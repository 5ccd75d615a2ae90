package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "drydock/contexts/identity-access/access-control/application"
	"drydock/contexts/identity-access/access-control/domain/entities"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	"drydock/contexts/identity-access/access-control/domain/services"
	"drydock/contexts/identity-access/access-control/ports"
)

// CheckAccessQuery asks whether a user may perform an operation, globally
// (AppID empty) or against one app.
type CheckAccessQuery struct {
	Username  string
	AppID     string
	Operation services.Operation
}

// CheckAccessUseCase resolves caller and scope records, then delegates to
// the pure decision function. Collaborators such as the deploy receiver
// call this instead of re-implementing the rules.
type CheckAccessUseCase struct {
	Repository ports.Repository
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (u CheckAccessUseCase) Execute(ctx context.Context, query CheckAccessQuery) (entities.AccessDecision, error) {
	if strings.TrimSpace(query.Username) == "" {
		return entities.AccessDecision{}, domainerrors.ErrInvalidUsername
	}

	logger := application.ResolveLogger(u.Logger)
	now := u.now()

	decision := entities.AccessDecision{
		Username:  strings.TrimSpace(query.Username),
		AppID:     strings.TrimSpace(query.AppID),
		Operation: string(query.Operation),
		Reason:    services.ReasonInsufficient,
		CheckedAt: now,
	}

	caller, err := u.Repository.GetUser(ctx, decision.Username)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			logger.Warn("access check for unknown user denied",
				"event", "access_check_unknown_user",
				"module", "identity-access/access-control",
				"layer", "application",
				"username", decision.Username,
			)
			return decision, nil
		}
		return entities.AccessDecision{}, err
	}

	scope := services.Global()
	if decision.AppID != "" {
		app, err := u.Repository.GetApp(ctx, decision.AppID)
		if err != nil {
			return entities.AccessDecision{}, err
		}
		sharing, err := u.Repository.ListSharing(ctx, app.AppID)
		if err != nil {
			return entities.AccessDecision{}, err
		}
		names := make([]string, 0, len(sharing))
		for _, permission := range sharing {
			names = append(names, permission.Username)
		}
		scope = services.ForApp(app, names)
	}

	outcome := services.Decide(caller, scope, query.Operation)
	decision.Allowed = outcome.Allowed
	decision.Reason = outcome.Reason

	logger.Debug("access check evaluated",
		"event", "access_check_evaluated",
		"module", "identity-access/access-control",
		"layer", "application",
		"username", decision.Username,
		"app_id", decision.AppID,
		"operation", decision.Operation,
		"allowed", decision.Allowed,
		"reason", decision.Reason,
	)
	return decision, nil
}

func (u CheckAccessUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
