package accesscontrol

import (
	"log/slog"
	"time"

	httpadapter "drydock/contexts/identity-access/access-control/adapters/http"
	"drydock/contexts/identity-access/access-control/adapters/memory"
	"drydock/contexts/identity-access/access-control/application/commands"
	"drydock/contexts/identity-access/access-control/application/queries"
	"drydock/contexts/identity-access/access-control/ports"
)

// Module is the access-control composition root exposed to runtime wiring.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

// Dependencies captures all runtime ports/config required by NewModule.
type Dependencies struct {
	Repository      ports.Repository
	VisibilityCache ports.VisibilityCache
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	VisibilityTTL   time.Duration
	Logger          *slog.Logger
}

// NewModule wires access-control use-cases and transport handler using
// explicit ports.
func NewModule(deps Dependencies) Module {
	registerUser := commands.RegisterUserUseCase{
		Repository: deps.Repository,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	grantAdmin := commands.GrantAdminUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Logger:          deps.Logger,
	}
	revokeAdmin := commands.RevokeAdminUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Logger:          deps.Logger,
	}
	createApp := commands.CreateAppUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Logger:          deps.Logger,
	}
	deleteApp := commands.DeleteAppUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Logger:          deps.Logger,
	}
	grantAppAccess := commands.GrantAppAccessUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Logger:          deps.Logger,
	}
	revokeAppAccess := commands.RevokeAppAccessUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Logger:          deps.Logger,
	}

	getUser := queries.GetUserUseCase{
		Repository: deps.Repository,
	}
	userExists := queries.UserExistsUseCase{
		Repository: deps.Repository,
	}
	listAdmins := queries.ListAdminsUseCase{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	listApps := queries.ListAppsUseCase{
		Repository:      deps.Repository,
		VisibilityCache: deps.VisibilityCache,
		Clock:           deps.Clock,
		VisibilityTTL:   deps.VisibilityTTL,
		Logger:          deps.Logger,
	}
	listAppUsers := queries.ListAppUsersUseCase{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	checkAccess := queries.CheckAccessUseCase{
		Repository: deps.Repository,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}

	handler := httpadapter.Handler{
		RegisterUser:    registerUser,
		GrantAdmin:      grantAdmin,
		RevokeAdmin:     revokeAdmin,
		CreateApp:       createApp,
		DeleteApp:       deleteApp,
		GrantAppAccess:  grantAppAccess,
		RevokeAppAccess: revokeAppAccess,
		GetUser:         getUser,
		UserExists:      userExists,
		ListAdmins:      listAdmins,
		ListApps:        listApps,
		ListAppUsers:    listAppUsers,
		CheckAccess:     checkAccess,
		Logger:          deps.Logger,
	}

	return Module{
		Handler: handler,
	}
}

// NewInMemoryModule builds a development/testing module with in-memory adapters.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:      store,
		VisibilityCache: store,
		Clock:           store,
		IDGenerator:     store,
		VisibilityTTL:   5 * time.Minute,
		Logger:          logger,
	})
	module.Store = store
	return module
}
