// internal/app/policy/accesspolicy/accesspolicy.go
package accesspolicy

import (
	"strings"

	"github.com/dalemusser/ekomurojaat/internal/domain/models"
)

// Operation names a role-gated action. Routes declare the operation they
// perform and the session middleware checks it against the table below.
type Operation string

const (
	// Citizen area.
	OpCitizenDashboard   Operation = "citizen.dashboard"
	OpOwnComplaintList   Operation = "citizen.complaints.list"
	OpOwnComplaintView   Operation = "citizen.complaints.view"
	OpOwnComplaintCreate Operation = "citizen.complaints.create"
	OpOwnComplaintDelete Operation = "citizen.complaints.delete"
	OpProfileView        Operation = "citizen.profile"

	// Management area.
	OpAdminDashboard     Operation = "admin.dashboard"
	OpComplaintList      Operation = "admin.complaints.list"
	OpComplaintView      Operation = "admin.complaints.view"
	OpComplaintUpdate    Operation = "admin.complaints.update"
	OpPriorityAssign     Operation = "admin.priority.assign"
	OpOrganizationManage Operation = "admin.organizations"
	OpAccountManage      Operation = "admin.accounts"
	OpGeographyManage    Operation = "admin.geography"

	// Moderator area.
	OpModeratorDashboard    Operation = "moderator.dashboard"
	OpAssignedComplaintList Operation = "moderator.complaints.list"
	OpAssignedComplaintView Operation = "moderator.complaints.view"
	OpAssignedComplaintEdit Operation = "moderator.complaints.update"
)

var table = map[string]map[Operation]bool{
	models.RoleCitizen: {
		OpCitizenDashboard:   true,
		OpOwnComplaintList:   true,
		OpOwnComplaintView:   true,
		OpOwnComplaintCreate: true,
		OpOwnComplaintDelete: true,
		OpProfileView:        true,
	},
	models.RoleAdmin: {
		OpAdminDashboard:     true,
		OpComplaintList:      true,
		OpComplaintView:      true,
		OpComplaintUpdate:    true,
		OpPriorityAssign:     true,
		OpOrganizationManage: true,
		OpAccountManage:      true,
		OpGeographyManage:    true,
	},
	models.RoleModerator: {
		OpModeratorDashboard:    true,
		OpAssignedComplaintList: true,
		OpAssignedComplaintView: true,
		OpAssignedComplaintEdit: true,
	},
}

// Allowed reports whether an account with the given role may perform op.
// Unknown roles and unknown operations are denied.
func Allowed(role string, op Operation) bool {
	ops, ok := table[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return false
	}
	return ops[op]
}

// LandingPath is where a freshly signed-in account is sent.
func LandingPath(role string) string {
	switch strings.ToLower(role) {
	case models.RoleAdmin:
		return "/dashboard/management/"
	case models.RoleModerator:
		return "/moderator/dashboard/"
	default:
		return "/user/dashboard/"
	}
}
