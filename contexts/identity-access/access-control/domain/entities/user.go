package entities

import "time"

// User is a platform account. IsSuperuser is derived from the admin grant
// relation, never stored as a mutable field on the user itself.
type User struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedSeq   int64     `json:"-"`
}
