package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	accesscontrol "drydock/contexts/identity-access/access-control"
	accesshttp "drydock/contexts/identity-access/access-control/transport/http"
)

func newTestServer() *Server {
	return New(accesscontrol.NewInMemoryModule(nil), nil, ":0")
}

func doJSON(t *testing.T, server *Server, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-User-Id", caller)
	}

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func registerTestUser(t *testing.T, server *Server, username string) accesshttp.UserResponse {
	t.Helper()
	rr := doJSON(t, server, http.MethodPost, "/api/auth/register", "", accesshttp.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d body=%s", username, rr.Code, rr.Body.String())
	}
	var user accesshttp.UserResponse
	if err := json.NewDecoder(rr.Body).Decode(&user); err != nil {
		t.Fatalf("decode register response failed: %v", err)
	}
	return user
}

func TestRegisterFirstUserReturnsSuperuser(t *testing.T) {
	server := newTestServer()

	first := registerTestUser(t, server, "alice")
	if !first.IsSuperuser {
		t.Fatalf("expected first registered user to be superuser")
	}
	second := registerTestUser(t, server, "bob")
	if second.IsSuperuser {
		t.Fatalf("expected second registered user to not be superuser")
	}
}

func TestRegisterDuplicateUsernameReturnsConflict(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/register", "", accesshttp.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRegisterInvalidBodyReturnsBadRequest(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminPermsRequireIdentityHeader(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")

	rr := doJSON(t, server, http.MethodGet, "/api/admin/perms", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminPermsGrantAndRevokeFlow(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")
	registerTestUser(t, server, "bob")

	rr := doJSON(t, server, http.MethodPost, "/api/admin/perms", "alice", accesshttp.GrantAdminRequest{Username: "bob"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("grant: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/admin/perms", "bob", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list as new admin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var admins accesshttp.ListAdminsResponse
	if err := json.NewDecoder(rr.Body).Decode(&admins); err != nil {
		t.Fatalf("decode admins failed: %v", err)
	}
	if len(admins.Results) != 2 {
		t.Fatalf("expected 2 admins, got %d", len(admins.Results))
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/admin/perms/bob", "alice", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/admin/perms/bob", "alice", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second revoke: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminPermsForbiddenForNonSuperuser(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")
	registerTestUser(t, server, "bob")

	rr := doJSON(t, server, http.MethodGet, "/api/admin/perms", "bob", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAppPermsSharingFlow(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")
	registerTestUser(t, server, "owner")
	registerTestUser(t, server, "bob")

	rr := doJSON(t, server, http.MethodPost, "/api/apps", "owner", accesshttp.CreateAppRequest{ID: "autotest"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create app: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/api/apps/autotest/perms", "owner", accesshttp.GrantAppPermRequest{Username: "bob"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("grant perm: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/apps/autotest/perms", "bob", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("member lists perms: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var perms accesshttp.AppPermsResponse
	if err := json.NewDecoder(rr.Body).Decode(&perms); err != nil {
		t.Fatalf("decode perms failed: %v", err)
	}
	if len(perms.Users) != 1 || perms.Users[0] != "bob" {
		t.Fatalf("expected [bob], got %v", perms.Users)
	}

	// A sharing member cannot revoke their own access.
	rr = doJSON(t, server, http.MethodDelete, "/api/apps/autotest/perms/bob", "bob", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("member self revoke: expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/apps/autotest/perms/bob", "owner", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("owner revoke: expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/apps/autotest/perms/bob", "owner", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second revoke: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAppListingAppliesVisibilityRule(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")
	registerTestUser(t, server, "owner")
	registerTestUser(t, server, "bob")

	for i := 0; i < 2; i++ {
		rr := doJSON(t, server, http.MethodPost, "/api/apps", "owner", accesshttp.CreateAppRequest{ID: fmt.Sprintf("app-%d", i)})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create app %d: expected 201, got %d body=%s", i, rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, server, http.MethodGet, "/api/apps", "bob", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("bob lists apps: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var visible accesshttp.ListAppsResponse
	if err := json.NewDecoder(rr.Body).Decode(&visible); err != nil {
		t.Fatalf("decode apps failed: %v", err)
	}
	if len(visible.Results) != 0 {
		t.Fatalf("expected no apps visible to bob, got %d", len(visible.Results))
	}

	rr = doJSON(t, server, http.MethodGet, "/api/apps", "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("superuser lists apps: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	visible = accesshttp.ListAppsResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&visible); err != nil {
		t.Fatalf("decode apps failed: %v", err)
	}
	if len(visible.Results) != 2 {
		t.Fatalf("expected superuser to see 2 apps, got %d", len(visible.Results))
	}
}

func TestDeleteAppReturnsNoContent(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")
	registerTestUser(t, server, "owner")

	rr := doJSON(t, server, http.MethodPost, "/api/apps", "owner", accesshttp.CreateAppRequest{ID: "autotest"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create app: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/apps/autotest", "owner", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete app: expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/apps/autotest", "owner", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCheckAccessEndpoint(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")
	registerTestUser(t, server, "bob")

	rr := doJSON(t, server, http.MethodPost, "/api/access/check", "", accesshttp.CheckAccessRequest{
		Username:  "alice",
		Operation: "admins.manage",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("check access: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var decision accesshttp.CheckAccessResponse
	if err := json.NewDecoder(rr.Body).Decode(&decision); err != nil {
		t.Fatalf("decode decision failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected superuser allowed, reason=%s", decision.Reason)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/access/check", "", accesshttp.CheckAccessRequest{
		Username:  "bob",
		Operation: "admins.manage",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("check access: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	decision = accesshttp.CheckAccessResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&decision); err != nil {
		t.Fatalf("decode decision failed: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected regular user denied, reason=%s", decision.Reason)
	}
}

func TestGetUserRequiresIdentityAndReturnsAccount(t *testing.T) {
	server := newTestServer()
	registerTestUser(t, server, "alice")

	rr := doJSON(t, server, http.MethodGet, "/api/users/alice", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/users/alice", "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/users/ghost", "alice", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodHead, "/api/users/alice", "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for existence probe, got %d", rr.Code)
	}
	rr = doJSON(t, server, http.MethodHead, "/api/users/ghost", "alice", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing existence probe, got %d", rr.Code)
	}
}
