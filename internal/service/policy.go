package service

import (
	"github.com/spec-kit/sav-service/internal/domain"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// Operation names an engine entry point for authorization.
type Operation string

const (
	OpOpenTicket                     Operation = "OpenTicket"
	OpAssignTechnician               Operation = "AssignTechnician"
	OpGetTicket                      Operation = "GetTicket"
	OpListTickets                    Operation = "ListTickets"
	OpTicketHistory                  Operation = "TicketHistory"
	OpCreateIntervention             Operation = "CreateIntervention"
	OpAssignTechnicianToIntervention Operation = "AssignTechnicianToIntervention"
	OpUpdateDiagnosticNotes          Operation = "UpdateDiagnosticNotes"
	OpCreateWorkOrder                Operation = "CreateWorkOrder"
	OpStartWork                      Operation = "StartWork"
	OpFinishWork                     Operation = "FinishWork"
	OpCloseWorkOrder                 Operation = "CloseWorkOrder"
)

var (
	anyRole         = []domain.Role{domain.RoleAdmin, domain.RoleAgent, domain.RoleTechnician}
	adminOnly       = []domain.Role{domain.RoleAdmin}
	adminOrAgent    = []domain.Role{domain.RoleAdmin, domain.RoleAgent}
	adminOrAssignee = []domain.Role{domain.RoleAdmin, domain.RoleTechnician}
)

// rolePolicy is the single declaration of which roles may attempt each operation.
// Technicians passing this check are further restricted to records assigned to them.
var rolePolicy = map[Operation][]domain.Role{
	OpOpenTicket:                     adminOrAgent,
	OpAssignTechnician:               adminOnly,
	OpGetTicket:                      anyRole,
	OpListTickets:                    anyRole,
	OpTicketHistory:                  anyRole,
	OpCreateIntervention:             adminOrAgent,
	OpAssignTechnicianToIntervention: adminOnly,
	OpUpdateDiagnosticNotes:          adminOrAssignee,
	OpCreateWorkOrder:                adminOnly,
	OpStartWork:                      adminOrAssignee,
	OpFinishWork:                     adminOrAssignee,
	OpCloseWorkOrder:                 adminOnly,
}

// AllowedRoles returns the roles permitted for op.
func AllowedRoles(op Operation) []domain.Role {
	return append([]domain.Role(nil), rolePolicy[op]...)
}

func authorize(actor domain.Actor, op Operation) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return apperrors.NewUnauthorized("actor identity required")
	}
	for _, role := range rolePolicy[op] {
		if role == actor.Role {
			return nil
		}
	}
	return apperrors.NewForbidden(string(actor.Role) + " may not perform " + string(op))
}

// requireAssignee restricts technicians to records they are assigned to. Admins pass.
func requireAssignee(actor domain.Actor, op Operation, assigned bool) error {
	if actor.IsAdmin() || assigned {
		return nil
	}
	return apperrors.NewForbidden(string(op) + " is restricted to the assigned technician")
}
