package entities

import "time"

// AccessDecision is returned by access check queries.
type AccessDecision struct {
	Username  string    `json:"username"`
	AppID     string    `json:"app_id,omitempty"`
	Operation string    `json:"operation"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checked_at"`
}
