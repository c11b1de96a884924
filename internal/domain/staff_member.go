package domain

import "time"

// StaffMember models an admin, agent or field technician.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTechnician reports whether the member can be assigned to interventions.
func (s *StaffMember) IsTechnician() bool {
	return s != nil && s.Active && s.Role == RoleTechnician
}
