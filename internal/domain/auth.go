package domain

// Role enumerates the roles supplied by the identity context.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleAgent      Role = "AGENT"
	RoleTechnician Role = "TECHNICIAN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleTechnician:
		return true
	}
	return false
}

// Actor is the caller identity attached to every engine operation.
// The engine never derives it; the transport layer supplies it.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
