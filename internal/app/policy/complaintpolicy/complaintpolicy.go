// internal/app/policy/complaintpolicy/complaintpolicy.go
package complaintpolicy

import (
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/system/authz"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the account on whose behalf complaints are read or written.
type Actor struct {
	ID             primitive.ObjectID
	Role           string
	OrganizationID primitive.ObjectID // NilObjectID when the account has none
}

// ActorFromRequest builds the Actor for the signed-in account.
func ActorFromRequest(r *http.Request) (Actor, bool) {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return Actor{}, false
	}
	return Actor{ID: uid, Role: role, OrganizationID: authz.UserOrgID(r)}, true
}

// matchNothing is a filter no complaint can satisfy.
var matchNothing = bson.M{"_id": primitive.NilObjectID}

// ScopeFilter returns the Mongo filter restricting complaints to those the
// actor may see: citizens their own, moderators their organization's queue,
// administrators everything. A moderator without an organization and any
// unknown role get an empty scope.
func ScopeFilter(a Actor) bson.M {
	switch a.Role {
	case models.RoleAdmin:
		return bson.M{}
	case models.RoleCitizen:
		return bson.M{"owner_id": a.ID}
	case models.RoleModerator:
		if a.OrganizationID.IsZero() {
			return matchNothing
		}
		return bson.M{"assigned_organization_id": a.OrganizationID}
	}
	return matchNothing
}

// CanView reports whether c falls inside the actor's scope. It mirrors
// ScopeFilter for complaints that are already loaded.
func CanView(a Actor, c models.Complaint) bool {
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCitizen:
		return c.OwnerID == a.ID
	case models.RoleModerator:
		return !a.OrganizationID.IsZero() &&
			c.AssignedOrganizationID != nil &&
			*c.AssignedOrganizationID == a.OrganizationID
	}
	return false
}

// IsStaff reports whether opening the complaint counts as an official view
// (used to stamp viewed_at).
func IsStaff(a Actor) bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleModerator
}
