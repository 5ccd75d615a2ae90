package services

import "drydock/contexts/identity-access/access-control/domain/entities"

// Operation names what the caller is trying to do with the scope.
type Operation string

const (
	// OpManageAdmins covers listing, granting, and revoking superusers.
	OpManageAdmins Operation = "admins.manage"
	// OpManageSharing covers granting and revoking app sharing, and app
	// deletion.
	OpManageSharing Operation = "sharing.manage"
	// OpViewApp covers viewing or using an app, including listing its
	// sharing set.
	OpViewApp Operation = "app.view"
)

// Scope is either global (App nil) or one app plus its resolved sharing
// set. Decide consumes only what the scope carries; it never reaches into
// storage.
type Scope struct {
	App     *entities.App
	Sharing []string
}

// Global returns the scope for platform-wide administrative operations.
func Global() Scope {
	return Scope{}
}

// ForApp returns the scope for one app. sharing holds the usernames of the
// app's sharing set, owner excluded.
func ForApp(app entities.App, sharing []string) Scope {
	return Scope{App: &app, Sharing: sharing}
}

// Decision is the allow/deny outcome with the matching reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const (
	ReasonSuperuser    = "superuser"
	ReasonOwner        = "owner"
	ReasonSharedAccess = "shared_access"
	ReasonInsufficient = "insufficient_privilege"
)

// Decide evaluates the access rules in order, first match wins:
//
//  1. global scope requires a superuser caller
//  2. app management requires the owner or a superuser
//  3. app view requires the owner, a superuser, or a sharing-set member
//
// It is pure: the outcome depends only on the resolved caller and scope.
func Decide(caller entities.User, scope Scope, op Operation) Decision {
	if scope.App == nil {
		if caller.IsSuperuser {
			return Decision{Allowed: true, Reason: ReasonSuperuser}
		}
		return Decision{Reason: ReasonInsufficient}
	}

	switch op {
	case OpManageSharing:
		if caller.Username == scope.App.Owner {
			return Decision{Allowed: true, Reason: ReasonOwner}
		}
		if caller.IsSuperuser {
			return Decision{Allowed: true, Reason: ReasonSuperuser}
		}
	case OpViewApp:
		if caller.Username == scope.App.Owner {
			return Decision{Allowed: true, Reason: ReasonOwner}
		}
		if caller.IsSuperuser {
			return Decision{Allowed: true, Reason: ReasonSuperuser}
		}
		for _, member := range scope.Sharing {
			if member == caller.Username {
				return Decision{Allowed: true, Reason: ReasonSharedAccess}
			}
		}
	}
	return Decision{Reason: ReasonInsufficient}
}
