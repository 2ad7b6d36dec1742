package domain

// Role is the kind of principal calling the API.
type Role string

const (
	RolePassenger  Role = "passenger"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Actor is the request-scoped identity every core operation receives.
type Actor struct {
	ID   string
	Role Role
	// AdminID is the brand scope of a passenger or driver. For an admin it
	// equals ID.
	AdminID string
}

// IsStaff reports whether the actor is an admin or a superadmin.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

// ManagesScope reports whether the actor may administer resources in the
// given brand scope. An empty scope is the direct fleet.
func (a Actor) ManagesScope(adminID string) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return adminID != "" && adminID == a.ID
	}
	return false
}
