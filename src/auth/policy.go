package auth

import "github.com/orchestra-mcp/expense/src/types"

// Decision is the outcome of an access check.
type Decision int

const (
	// Deny means the operation is not permitted.
	Deny Decision = iota

	// Allow means the operation is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Err returns nil for Allow and ErrForbidden for Deny.
func (d Decision) Err() error {
	if d == Allow {
		return nil
	}
	return ErrForbidden
}

// Authorize decides read and write access to a resource owned by ownerID.
// Owners may touch their own resources; admins may touch anyone's.
func Authorize(c types.Claims, ownerID int64) Decision {
	if c.ID == ownerID || c.Role == types.RoleAdmin {
		return Allow
	}
	return Deny
}

// RequireRole allows only principals holding exactly role.
func RequireRole(c types.Claims, role types.Role) Decision {
	if c.Role == role {
		return Allow
	}
	return Deny
}
