package entities

import "time"

// App is an owned platform resource. Owner is set at creation and never
// changes; the owner has implicit full access and is never a member of the
// app's sharing set.
type App struct {
	AppID     string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}
