package entities

import "time"

// AppPermission is one member of an app's sharing set. The member is always
// a user other than the app owner; membership is a set, duplicates do not
// exist.
type AppPermission struct {
	AppID     string    `json:"app_id"`
	Username  string    `json:"username"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}
