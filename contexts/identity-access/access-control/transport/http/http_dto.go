package httptransport

import "time"

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse describes one user account. The superuser flag is derived
// from the admin grant relation, never stored on the account.
type UserResponse struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListAdminsResponse struct {
	Results []UserResponse `json:"results"`
}

// GrantAdminRequest names the user to promote.
type GrantAdminRequest struct {
	Username string `json:"username"`
}

// CreateAppRequest carries an optional app identifier; when omitted the
// service generates one.
type CreateAppRequest struct {
	ID string `json:"id,omitempty"`
}

type AppResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created"`
}

type ListAppsResponse struct {
	Results []AppResponse `json:"results"`
}

// GrantAppPermRequest names the user to add to an app's sharing set.
type GrantAppPermRequest struct {
	Username string `json:"username"`
}

// AppPermsResponse lists the usernames in an app's sharing set, sorted.
type AppPermsResponse struct {
	Users []string `json:"users"`
}

// CheckAccessRequest asks for a single access decision. An empty app_id
// means global scope.
type CheckAccessRequest struct {
	Username  string `json:"username"`
	AppID     string `json:"app_id,omitempty"`
	Operation string `json:"operation"`
}

type CheckAccessResponse struct {
	Username  string    `json:"username"`
	AppID     string    `json:"app_id,omitempty"`
	Operation string    `json:"operation"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checked_at"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
