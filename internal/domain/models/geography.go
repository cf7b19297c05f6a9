// internal/domain/models/geography.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Region is the root of the administrative hierarchy.
type Region struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	NameCI    string             `bson:"name_ci"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// District belongs to exactly one Region and is removed with it.
type District struct {
	ID        primitive.ObjectID `bson:"_id"`
	RegionID  primitive.ObjectID `bson:"region_id"`
	Name      string             `bson:"name"`
	NameCI    string             `bson:"name_ci"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}
