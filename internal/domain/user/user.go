package user

import "strings"

// Role mirrors the marketplace roles issued by the identity provider.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RoleBroker Role = "broker"
	RoleAdmin  Role = "admin"
)

// ParseRole normalizes a role string; unknown values come back as-is with
// ok=false so callers can decide whether to reject.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleTenant, RoleOwner, RoleBroker, RoleAdmin:
		return role, true
	default:
		return role, false
	}
}

// CanInitiateContact reports whether the role may open a brand-new
// conversation. Owners and brokers answer inquiries; they do not start them.
func CanInitiateContact(r Role) bool {
	return r == RoleTenant || r == RoleAdmin
}
