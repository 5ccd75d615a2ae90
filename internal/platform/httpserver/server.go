package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	accesscontrol "drydock/contexts/identity-access/access-control"
	accesserrors "drydock/contexts/identity-access/access-control/domain/errors"
	accesshttp "drydock/contexts/identity-access/access-control/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	accessControl accesscontrol.Module
}

func New(
	accessControlModule accesscontrol.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		accessControl: accessControlModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("GET /api/users/{username}", s.handleGetUser)
	s.mux.HandleFunc("HEAD /api/users/{username}", s.handleUserExists)

	s.mux.HandleFunc("GET /api/admin/perms", s.handleListAdmins)
	s.mux.HandleFunc("POST /api/admin/perms", s.handleGrantAdmin)
	s.mux.HandleFunc("DELETE /api/admin/perms/{username}", s.handleRevokeAdmin)

	s.mux.HandleFunc("GET /api/apps", s.handleListApps)
	s.mux.HandleFunc("POST /api/apps", s.handleCreateApp)
	s.mux.HandleFunc("DELETE /api/apps/{app_id}", s.handleDeleteApp)

	s.mux.HandleFunc("GET /api/apps/{app_id}/perms", s.handleListAppPerms)
	s.mux.HandleFunc("POST /api/apps/{app_id}/perms", s.handleGrantAppPerm)
	s.mux.HandleFunc("DELETE /api/apps/{app_id}/perms/{username}", s.handleRevokeAppPerm)

	s.mux.HandleFunc("POST /api/access/check", s.handleCheckAccess)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req accesshttp.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAccessError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.accessControl.Handler.RegisterUserHandler(r.Context(), req)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireCaller(w, r); !ok {
		return
	}

	resp, err := s.accessControl.Handler.GetUserHandler(r.Context(), r.PathValue("username"))
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserExists(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireCaller(w, r); !ok {
		return
	}

	exists, err := s.accessControl.Handler.UserExistsHandler(r.Context(), r.PathValue("username"))
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	resp, err := s.accessControl.Handler.ListAdminsHandler(r.Context(), caller)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req accesshttp.GrantAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAccessError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.accessControl.Handler.GrantAdminHandler(r.Context(), caller, req)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRevokeAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	err := s.accessControl.Handler.RevokeAdminHandler(r.Context(), caller, r.PathValue("username"))
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	resp, err := s.accessControl.Handler.ListAppsHandler(r.Context(), caller)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req accesshttp.CreateAppRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAccessError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.accessControl.Handler.CreateAppHandler(r.Context(), caller, req)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	err := s.accessControl.Handler.DeleteAppHandler(r.Context(), caller, r.PathValue("app_id"))
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAppPerms(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	resp, err := s.accessControl.Handler.ListAppUsersHandler(r.Context(), caller, r.PathValue("app_id"))
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantAppPerm(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req accesshttp.GrantAppPermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAccessError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.accessControl.Handler.GrantAppAccessHandler(r.Context(), caller, r.PathValue("app_id"), req)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRevokeAppPerm(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	err := s.accessControl.Handler.RevokeAppAccessHandler(
		r.Context(),
		caller,
		r.PathValue("app_id"),
		r.PathValue("username"),
	)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	var req accesshttp.CheckAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAccessError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		req.Username = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}

	resp, err := s.accessControl.Handler.CheckAccessHandler(r.Context(), req)
	if err != nil {
		writeAccessDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if caller == "" {
		writeAccessError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return caller, true
}

func writeAccessDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accesserrors.ErrInvalidUsername),
		errors.Is(err, accesserrors.ErrInvalidEmail),
		errors.Is(err, accesserrors.ErrInvalidPassword),
		errors.Is(err, accesserrors.ErrInvalidAppID):
		writeAccessError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, accesserrors.ErrCallerRequired):
		writeAccessError(w, http.StatusUnauthorized, "missing_user", err.Error())
	case errors.Is(err, accesserrors.ErrForbidden):
		writeAccessError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, accesserrors.ErrUserNotFound),
		errors.Is(err, accesserrors.ErrAppNotFound),
		errors.Is(err, accesserrors.ErrAdminGrantNotFound),
		errors.Is(err, accesserrors.ErrPermissionNotFound):
		writeAccessError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, accesserrors.ErrUserExists),
		errors.Is(err, accesserrors.ErrAppExists),
		errors.Is(err, accesserrors.ErrOwnerImplicit):
		writeAccessError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeAccessError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAccessError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, accesshttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
