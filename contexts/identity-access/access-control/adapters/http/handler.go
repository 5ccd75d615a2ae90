package httpadapter

import (
	"context"
	"log/slog"

	application "drydock/contexts/identity-access/access-control/application"
	"drydock/contexts/identity-access/access-control/application/commands"
	"drydock/contexts/identity-access/access-control/application/queries"
	"drydock/contexts/identity-access/access-control/domain/entities"
	"drydock/contexts/identity-access/access-control/domain/services"
	httptransport "drydock/contexts/identity-access/access-control/transport/http"
)

// Handler maps HTTP DTOs to application commands/queries.
type Handler struct {
	RegisterUser    commands.RegisterUserUseCase
	GrantAdmin      commands.GrantAdminUseCase
	RevokeAdmin     commands.RevokeAdminUseCase
	CreateApp       commands.CreateAppUseCase
	DeleteApp       commands.DeleteAppUseCase
	GrantAppAccess  commands.GrantAppAccessUseCase
	RevokeAppAccess commands.RevokeAppAccessUseCase
	GetUser         queries.GetUserUseCase
	UserExists      queries.UserExistsUseCase
	ListAdmins      queries.ListAdminsUseCase
	ListApps        queries.ListAppsUseCase
	ListAppUsers    queries.ListAppUsersUseCase
	CheckAccess     queries.CheckAccessUseCase
	Logger          *slog.Logger
}

// RegisterUserHandler creates an account; the first account ever registered
// becomes the platform superuser.
func (h Handler) RegisterUserHandler(ctx context.Context, request httptransport.RegisterRequest) (httptransport.UserResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("http register received",
		"event", "access_http_register_received",
		"module", "identity-access/access-control",
		"layer", "transport",
		"username", request.Username,
	)

	user, err := h.RegisterUser.Execute(ctx, commands.RegisterUserCommand{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		logger.Error("http register failed",
			"event", "access_http_register_failed",
			"module", "identity-access/access-control",
			"layer", "transport",
			"username", request.Username,
			"error", err.Error(),
		)
		return httptransport.UserResponse{}, err
	}
	return userResponse(user), nil
}

// GetUserHandler returns one account by username.
func (h Handler) GetUserHandler(ctx context.Context, username string) (httptransport.UserResponse, error) {
	user, err := h.GetUser.Execute(ctx, username)
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return userResponse(user), nil
}

// UserExistsHandler reports whether an account exists without exposing it.
func (h Handler) UserExistsHandler(ctx context.Context, username string) (bool, error) {
	return h.UserExists.Execute(ctx, username)
}

// ListAdminsHandler returns current superusers in registration order.
func (h Handler) ListAdminsHandler(ctx context.Context, caller string) (httptransport.ListAdminsResponse, error) {
	admins, err := h.ListAdmins.Execute(ctx, caller)
	if err != nil {
		return httptransport.ListAdminsResponse{}, err
	}

	items := make([]httptransport.UserResponse, 0, len(admins))
	for _, admin := range admins {
		items = append(items, userResponse(admin))
	}
	return httptransport.ListAdminsResponse{Results: items}, nil
}

// GrantAdminHandler promotes the named user to superuser.
func (h Handler) GrantAdminHandler(
	ctx context.Context,
	caller string,
	request httptransport.GrantAdminRequest,
) (httptransport.UserResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("http grant admin received",
		"event", "access_http_grant_admin_received",
		"module", "identity-access/access-control",
		"layer", "transport",
		"caller", caller,
		"username", request.Username,
	)

	user, err := h.GrantAdmin.Execute(ctx, commands.GrantAdminCommand{
		Caller:   caller,
		Username: request.Username,
	})
	if err != nil {
		logger.Error("http grant admin failed",
			"event", "access_http_grant_admin_failed",
			"module", "identity-access/access-control",
			"layer", "transport",
			"caller", caller,
			"username", request.Username,
			"error", err.Error(),
		)
		return httptransport.UserResponse{}, err
	}
	return userResponse(user), nil
}

// RevokeAdminHandler removes the named user's superuser status.
func (h Handler) RevokeAdminHandler(ctx context.Context, caller string, username string) error {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("http revoke admin received",
		"event", "access_http_revoke_admin_received",
		"module", "identity-access/access-control",
		"layer", "transport",
		"caller", caller,
		"username", username,
	)

	_, err := h.RevokeAdmin.Execute(ctx, commands.RevokeAdminCommand{
		Caller:   caller,
		Username: username,
	})
	if err != nil {
		logger.Error("http revoke admin failed",
			"event", "access_http_revoke_admin_failed",
			"module", "identity-access/access-control",
			"layer", "transport",
			"caller", caller,
			"username", username,
			"error", err.Error(),
		)
	}
	return err
}

// CreateAppHandler registers an app owned by the caller.
func (h Handler) CreateAppHandler(
	ctx context.Context,
	caller string,
	request httptransport.CreateAppRequest,
) (httptransport.AppResponse, error) {
	app, err := h.CreateApp.Execute(ctx, commands.CreateAppCommand{
		Caller: caller,
		AppID:  request.ID,
	})
	if err != nil {
		return httptransport.AppResponse{}, err
	}
	return appResponse(app), nil
}

// DeleteAppHandler destroys an app and its sharing set.
func (h Handler) DeleteAppHandler(ctx context.Context, caller string, appID string) error {
	return h.DeleteApp.Execute(ctx, commands.DeleteAppCommand{
		Caller: caller,
		AppID:  appID,
	})
}

// ListAppsHandler returns the apps visible to the caller.
func (h Handler) ListAppsHandler(ctx context.Context, caller string) (httptransport.ListAppsResponse, error) {
	apps, err := h.ListApps.Execute(ctx, caller)
	if err != nil {
		return httptransport.ListAppsResponse{}, err
	}

	items := make([]httptransport.AppResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, appResponse(app))
	}
	return httptransport.ListAppsResponse{Results: items}, nil
}

// ListAppUsersHandler returns the sharing set of one app.
func (h Handler) ListAppUsersHandler(ctx context.Context, caller string, appID string) (httptransport.AppPermsResponse, error) {
	users, err := h.ListAppUsers.Execute(ctx, caller, appID)
	if err != nil {
		return httptransport.AppPermsResponse{}, err
	}
	return httptransport.AppPermsResponse{Users: users}, nil
}

// GrantAppAccessHandler adds the named user to an app's sharing set.
func (h Handler) GrantAppAccessHandler(
	ctx context.Context,
	caller string,
	appID string,
	request httptransport.GrantAppPermRequest,
) (httptransport.AppPermsResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("http grant app access received",
		"event", "access_http_grant_app_access_received",
		"module", "identity-access/access-control",
		"layer", "transport",
		"caller", caller,
		"app_id", appID,
		"username", request.Username,
	)

	sharing, err := h.GrantAppAccess.Execute(ctx, commands.GrantAppAccessCommand{
		Caller:   caller,
		AppID:    appID,
		Username: request.Username,
	})
	if err != nil {
		logger.Error("http grant app access failed",
			"event", "access_http_grant_app_access_failed",
			"module", "identity-access/access-control",
			"layer", "transport",
			"caller", caller,
			"app_id", appID,
			"username", request.Username,
			"error", err.Error(),
		)
		return httptransport.AppPermsResponse{}, err
	}

	users := make([]string, 0, len(sharing))
	for _, permission := range sharing {
		users = append(users, permission.Username)
	}
	return httptransport.AppPermsResponse{Users: users}, nil
}

// RevokeAppAccessHandler removes the named user from an app's sharing set.
func (h Handler) RevokeAppAccessHandler(ctx context.Context, caller string, appID string, username string) error {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("http revoke app access received",
		"event", "access_http_revoke_app_access_received",
		"module", "identity-access/access-control",
		"layer", "transport",
		"caller", caller,
		"app_id", appID,
		"username", username,
	)

	err := h.RevokeAppAccess.Execute(ctx, commands.RevokeAppAccessCommand{
		Caller:   caller,
		AppID:    appID,
		Username: username,
	})
	if err != nil {
		logger.Error("http revoke app access failed",
			"event", "access_http_revoke_app_access_failed",
			"module", "identity-access/access-control",
			"layer", "transport",
			"caller", caller,
			"app_id", appID,
			"username", username,
			"error", err.Error(),
		)
	}
	return err
}

// CheckAccessHandler evaluates one access decision for a collaborator
// service. Unknown users get a deny decision, not an error.
func (h Handler) CheckAccessHandler(
	ctx context.Context,
	request httptransport.CheckAccessRequest,
) (httptransport.CheckAccessResponse, error) {
	decision, err := h.CheckAccess.Execute(ctx, queries.CheckAccessQuery{
		Username:  request.Username,
		AppID:     request.AppID,
		Operation: services.Operation(request.Operation),
	})
	if err != nil {
		return httptransport.CheckAccessResponse{}, err
	}
	return httptransport.CheckAccessResponse{
		Username:  decision.Username,
		AppID:     decision.AppID,
		Operation: decision.Operation,
		Allowed:   decision.Allowed,
		Reason:    decision.Reason,
		CheckedAt: decision.CheckedAt,
	}, nil
}

func userResponse(user entities.User) httptransport.UserResponse {
	return httptransport.UserResponse{
		Username:    user.Username,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
	}
}

func appResponse(app entities.App) httptransport.AppResponse {
	return httptransport.AppResponse{
		ID:        app.AppID,
		Owner:     app.Owner,
		CreatedAt: app.CreatedAt,
	}
}
