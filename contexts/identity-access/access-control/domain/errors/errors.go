package errors

import "errors"

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidAppID    = errors.New("invalid app id")
	ErrCallerRequired  = errors.New("caller identity is required")

	ErrUserExists = errors.New("user already exists")
	ErrAppExists  = errors.New("app already exists")

	ErrUserNotFound       = errors.New("user not found")
	ErrAppNotFound        = errors.New("app not found")
	ErrAdminGrantNotFound = errors.New("admin grant not found")
	ErrPermissionNotFound = errors.New("app permission not found")

	ErrForbidden     = errors.New("forbidden")
	ErrOwnerImplicit = errors.New("owner already has implicit access")
)
