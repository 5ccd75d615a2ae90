package entities

import "time"

// AdminGrant marks a user as superuser. Kept as a first-class relation so
// listing and auditing stay simple set queries.
type AdminGrant struct {
	Username  string    `json:"username"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}
