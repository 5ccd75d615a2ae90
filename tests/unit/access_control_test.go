package unit

import (
	"context"
	"errors"
	"testing"

	accesscontrol "drydock/contexts/identity-access/access-control"
	domainerrors "drydock/contexts/identity-access/access-control/domain/errors"
	httptransport "drydock/contexts/identity-access/access-control/transport/http"
)

func registerUser(t *testing.T, module accesscontrol.Module, username string) httptransport.UserResponse {
	t.Helper()
	user, err := module.Handler.RegisterUserHandler(context.Background(), httptransport.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", username, err)
	}
	return user
}

func TestFirstRegisteredUserBecomesSuperuser(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)

	first := registerUser(t, module, "alice")
	if !first.IsSuperuser {
		t.Fatalf("expected first registered user to be superuser")
	}

	second := registerUser(t, module, "bob")
	if second.IsSuperuser {
		t.Fatalf("expected second registered user to not be superuser")
	}
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)

	registerUser(t, module, "alice")
	_, err := module.Handler.RegisterUserHandler(context.Background(), httptransport.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password",
	})
	if !errors.Is(err, domainerrors.ErrUserExists) {
		t.Fatalf("expected duplicate username conflict, got %v", err)
	}
}

func TestGrantAdminPromotesTarget(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")

	promoted, err := module.Handler.GrantAdminHandler(
		context.Background(),
		"alice",
		httptransport.GrantAdminRequest{Username: "bob"},
	)
	if err != nil {
		t.Fatalf("grant admin failed: %v", err)
	}
	if !promoted.IsSuperuser {
		t.Fatalf("expected bob to be superuser after grant")
	}

	fetched, err := module.Handler.GetUserHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if !fetched.IsSuperuser {
		t.Fatalf("expected stored superuser flag for bob")
	}
}

func TestGrantAdminIsIdempotent(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")

	for i := 0; i < 2; i++ {
		user, err := module.Handler.GrantAdminHandler(
			context.Background(),
			"alice",
			httptransport.GrantAdminRequest{Username: "bob"},
		)
		if err != nil {
			t.Fatalf("grant %d failed: %v", i, err)
		}
		if !user.IsSuperuser {
			t.Fatalf("grant %d did not report superuser", i)
		}
	}

	admins, err := module.Handler.ListAdminsHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list admins failed: %v", err)
	}
	if len(admins.Results) != 2 {
		t.Fatalf("expected 2 admins, got %d", len(admins.Results))
	}
}

func TestGrantAdminRequiresSuperuser(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")
	registerUser(t, module, "carol")

	_, err := module.Handler.GrantAdminHandler(
		context.Background(),
		"bob",
		httptransport.GrantAdminRequest{Username: "carol"},
	)
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden for non-superuser caller, got %v", err)
	}
}

func TestListAdminsOrderedByRegistration(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")
	registerUser(t, module, "carol")

	if _, err := module.Handler.GrantAdminHandler(
		context.Background(),
		"alice",
		httptransport.GrantAdminRequest{Username: "carol"},
	); err != nil {
		t.Fatalf("grant carol failed: %v", err)
	}
	if _, err := module.Handler.GrantAdminHandler(
		context.Background(),
		"alice",
		httptransport.GrantAdminRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant bob failed: %v", err)
	}

	admins, err := module.Handler.ListAdminsHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list admins failed: %v", err)
	}
	got := make([]string, 0, len(admins.Results))
	for _, admin := range admins.Results {
		got = append(got, admin.Username)
	}
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestListAdminsForbiddenForNonSuperuser(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")

	_, err := module.Handler.ListAdminsHandler(context.Background(), "bob")
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRevokeAdminDemotesTarget(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")

	if _, err := module.Handler.GrantAdminHandler(
		context.Background(),
		"alice",
		httptransport.GrantAdminRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	if err := module.Handler.RevokeAdminHandler(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	fetched, err := module.Handler.GetUserHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if fetched.IsSuperuser {
		t.Fatalf("expected bob demoted after revoke")
	}
}

func TestRevokeAdminTwiceIsNotFound(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "bob")

	if _, err := module.Handler.GrantAdminHandler(
		context.Background(),
		"alice",
		httptransport.GrantAdminRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := module.Handler.RevokeAdminHandler(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("first revoke failed: %v", err)
	}

	err := module.Handler.RevokeAdminHandler(context.Background(), "alice", "bob")
	if !errors.Is(err, domainerrors.ErrAdminGrantNotFound) {
		t.Fatalf("expected admin grant not found, got %v", err)
	}
}

func TestRevokeLastSuperuserIsPermitted(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")

	if err := module.Handler.RevokeAdminHandler(context.Background(), "alice", "alice"); err != nil {
		t.Fatalf("self revoke failed: %v", err)
	}

	fetched, err := module.Handler.GetUserHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if fetched.IsSuperuser {
		t.Fatalf("expected zero superusers after last revoke")
	}
}

func TestAppSharingGrantListRevoke(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}
	if app.Owner != "owner" {
		t.Fatalf("expected owner ownership, got %s", app.Owner)
	}

	perms, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "bob"},
	)
	if err != nil {
		t.Fatalf("grant app access failed: %v", err)
	}
	if len(perms.Users) != 1 || perms.Users[0] != "bob" {
		t.Fatalf("expected sharing set [bob], got %v", perms.Users)
	}

	listed, err := module.Handler.ListAppUsersHandler(context.Background(), "owner", app.ID)
	if err != nil {
		t.Fatalf("list app users failed: %v", err)
	}
	if len(listed.Users) != 1 || listed.Users[0] != "bob" {
		t.Fatalf("expected [bob], got %v", listed.Users)
	}

	if err := module.Handler.RevokeAppAccessHandler(context.Background(), "owner", app.ID, "bob"); err != nil {
		t.Fatalf("revoke app access failed: %v", err)
	}
	listed, err = module.Handler.ListAppUsersHandler(context.Background(), "owner", app.ID)
	if err != nil {
		t.Fatalf("list after revoke failed: %v", err)
	}
	if len(listed.Users) != 0 {
		t.Fatalf("expected empty sharing set, got %v", listed.Users)
	}
}

func TestAppSharingDuplicateGrantKeepsSetUnchanged(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		perms, err := module.Handler.GrantAppAccessHandler(
			context.Background(),
			"owner",
			app.ID,
			httptransport.GrantAppPermRequest{Username: "bob"},
		)
		if err != nil {
			t.Fatalf("grant %d failed: %v", i, err)
		}
		if len(perms.Users) != 1 {
			t.Fatalf("grant %d: expected single member, got %v", i, perms.Users)
		}
	}
}

func TestAppSharingGrantToOwnerConflicts(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}

	_, err = module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "owner"},
	)
	if !errors.Is(err, domainerrors.ErrOwnerImplicit) {
		t.Fatalf("expected owner implicit conflict, got %v", err)
	}
}

func TestAppSharingGrantRequiresAuthority(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")
	registerUser(t, module, "carol")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}

	_, err = module.Handler.GrantAppAccessHandler(
		context.Background(),
		"bob",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "carol"},
	)
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner caller, got %v", err)
	}

	// A superuser may manage sharing on any app.
	perms, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"alice",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "carol"},
	)
	if err != nil {
		t.Fatalf("superuser grant failed: %v", err)
	}
	if len(perms.Users) != 1 || perms.Users[0] != "carol" {
		t.Fatalf("expected [carol], got %v", perms.Users)
	}
}

func TestAppSharingGrantUnknownTargetsNotFound(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}

	_, err = module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "ghost"},
	)
	if !errors.Is(err, domainerrors.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	_, err = module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		"missing-app",
		httptransport.GrantAppPermRequest{Username: "alice"},
	)
	if !errors.Is(err, domainerrors.ErrAppNotFound) {
		t.Fatalf("expected app not found, got %v", err)
	}
}

func TestAppSharingRevokeTwiceIsNotFound(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}
	if _, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	if err := module.Handler.RevokeAppAccessHandler(context.Background(), "owner", app.ID, "bob"); err != nil {
		t.Fatalf("first revoke failed: %v", err)
	}
	err = module.Handler.RevokeAppAccessHandler(context.Background(), "owner", app.ID, "bob")
	if !errors.Is(err, domainerrors.ErrPermissionNotFound) {
		t.Fatalf("expected permission not found, got %v", err)
	}
}

func TestAppSharingMemberCannotRevokeOwnAccess(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}
	if _, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	err = module.Handler.RevokeAppAccessHandler(context.Background(), "bob", app.ID, "bob")
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden for member self revoke, got %v", err)
	}
}

func TestAppVisibilityTracksSharing(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}

	visible, err := module.Handler.ListAppsHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("list apps failed: %v", err)
	}
	if len(visible.Results) != 0 {
		t.Fatalf("expected no visible apps before grant, got %d", len(visible.Results))
	}

	if _, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	visible, err = module.Handler.ListAppsHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("list apps after grant failed: %v", err)
	}
	if len(visible.Results) != 1 || visible.Results[0].ID != app.ID {
		t.Fatalf("expected shared app visible, got %v", visible.Results)
	}

	if err := module.Handler.RevokeAppAccessHandler(context.Background(), "owner", app.ID, "bob"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	visible, err = module.Handler.ListAppsHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("list apps after revoke failed: %v", err)
	}
	if len(visible.Results) != 0 {
		t.Fatalf("expected no visible apps after revoke, got %d", len(visible.Results))
	}
}

func TestSuperuserSeesAllApps(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")

	if _, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "app-one"}); err != nil {
		t.Fatalf("create app-one failed: %v", err)
	}
	if _, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "app-two"}); err != nil {
		t.Fatalf("create app-two failed: %v", err)
	}

	visible, err := module.Handler.ListAppsHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("superuser list apps failed: %v", err)
	}
	if len(visible.Results) != 2 {
		t.Fatalf("expected superuser to see all apps, got %d", len(visible.Results))
	}
}

func TestDeleteAppCascadesSharing(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}
	if _, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	if err := module.Handler.DeleteAppHandler(context.Background(), "owner", app.ID); err != nil {
		t.Fatalf("delete app failed: %v", err)
	}

	_, err = module.Handler.ListAppUsersHandler(context.Background(), "owner", app.ID)
	if !errors.Is(err, domainerrors.ErrAppNotFound) {
		t.Fatalf("expected app not found after delete, got %v", err)
	}

	visible, err := module.Handler.ListAppsHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("list apps after delete failed: %v", err)
	}
	if len(visible.Results) != 0 {
		t.Fatalf("expected no visible apps after delete, got %d", len(visible.Results))
	}
}

func TestCheckAccessDecisions(t *testing.T) {
	module := accesscontrol.NewInMemoryModule(nil)
	registerUser(t, module, "alice")
	registerUser(t, module, "owner")
	registerUser(t, module, "bob")

	app, err := module.Handler.CreateAppHandler(context.Background(), "owner", httptransport.CreateAppRequest{ID: "autotest"})
	if err != nil {
		t.Fatalf("create app failed: %v", err)
	}
	if _, err := module.Handler.GrantAppAccessHandler(
		context.Background(),
		"owner",
		app.ID,
		httptransport.GrantAppPermRequest{Username: "bob"},
	); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	cases := []struct {
		name      string
		username  string
		appID     string
		operation string
		allowed   bool
	}{
		{"superuser manages admins", "alice", "", "admins.manage", true},
		{"owner cannot manage admins", "owner", "", "admins.manage", false},
		{"owner manages own sharing", "owner", app.ID, "sharing.manage", true},
		{"member views app", "bob", app.ID, "app.view", true},
		{"member cannot manage sharing", "bob", app.ID, "sharing.manage", false},
		{"unknown user denied", "ghost", app.ID, "app.view", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := module.Handler.CheckAccessHandler(context.Background(), httptransport.CheckAccessRequest{
				Username:  tc.username,
				AppID:     tc.appID,
				Operation: tc.operation,
			})
			if err != nil {
				t.Fatalf("check access failed: %v", err)
			}
			if decision.Allowed != tc.allowed {
				t.Fatalf("expected allowed=%v, got %v (reason %s)", tc.allowed, decision.Allowed, decision.Reason)
			}
		})
	}
}
