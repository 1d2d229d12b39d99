package types

import (
	"fmt"
	"strings"
)

// Role is the access level of a principal.
type Role string

const (
	RoleUser    Role = "USER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
)

// ParseRole normalizes a role name. An empty name is RoleUser.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case "":
		return RoleUser, nil
	case RoleUser, RoleAdmin, RoleManager:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Claims is the verified identity attached to a request or connection.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// WebSocket event names.
const (
	EventAuthenticate      = "authenticate"
	EventAuthenticated     = "authenticated"
	EventAuthError         = "authError"
	EventOnlineUsersUpdate = "onlineUsersUpdate"
	EventError             = "error"
)

// PresenceUser is the public projection of one live connection.
type PresenceUser struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Snapshot is a point-in-time copy of the presence registry. Count is the
// number of connections, so a user with two tabs open counts twice.
type Snapshot struct {
	Count int            `json:"count"`
	Users []PresenceUser `json:"users"`
}
