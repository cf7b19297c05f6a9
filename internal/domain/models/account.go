// internal/domain/models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account roles.
const (
	RoleCitizen   = "citizen"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Roles lists every assignable role in display order.
var Roles = []string{RoleCitizen, RoleModerator, RoleAdmin}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	for _, want := range Roles {
		if r == want {
			return true
		}
	}
	return false
}

// Account is a person who can sign in. OrganizationID is only meaningful
// for moderators and is cleared when the organization is deleted.
type Account struct {
	ID             primitive.ObjectID  `bson:"_id"`
	Username       string              `bson:"username"`
	UsernameCI     string              `bson:"username_ci"`
	Email          string              `bson:"email"`
	PasswordHash   string              `bson:"password_hash"`
	FirstName      string              `bson:"first_name"`
	LastName       string              `bson:"last_name"`
	Role           string              `bson:"role"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty"`
	Phone          string              `bson:"phone"`
	Avatar         string              `bson:"avatar,omitempty"`
	IsActive       bool                `bson:"is_active"`
	LastLoginAt    *time.Time          `bson:"last_login_at,omitempty"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}

// DisplayName returns the full name when known, otherwise the username.
func (a Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	case a.LastName != "":
		return a.LastName
	}
	return a.Username
}
