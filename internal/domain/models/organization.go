// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is the body responsible for resolving complaints routed to it.
// DistrictID is cleared (not cascaded) when its district is deleted.
type Organization struct {
	ID         primitive.ObjectID  `bson:"_id"`
	Name       string              `bson:"name"`
	NameCI     string              `bson:"name_ci"` // ← always stored
	Address    string              `bson:"address"`
	Phone      string              `bson:"phone"`
	Email      string              `bson:"email"`
	DistrictID *primitive.ObjectID `bson:"district_id,omitempty"`
	CreatedAt  time.Time           `bson:"created_at"`
	UpdatedAt  time.Time           `bson:"updated_at"`
}
