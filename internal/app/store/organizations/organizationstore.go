// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/system/txn"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

var ErrDuplicateOrganization = errors.New("an organization with this name already exists")

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("organizations")}
}

func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.NameCI = text.Fold(org.Name)
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, org)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// Exists reports whether an organization with id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
	return n > 0, err
}

// Update replaces an organization's editable fields and refreshes UpdatedAt.
// A nil DistrictID clears the district link.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, org models.Organization) error {
	set := bson.M{
		"name":       org.Name,
		"name_ci":    text.Fold(org.Name),
		"address":    org.Address,
		"phone":      org.Phone,
		"email":      org.Email,
		"updated_at": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if org.DistrictID != nil {
		set["district_id"] = *org.DistrictID
	} else {
		update["$unset"] = bson.M{"district_id": ""}
	}
	_, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateOrganization
		}
		return err
	}
	return nil
}

// Delete removes an organization. Moderators of it lose their affiliation
// and complaints routed to it become unassigned. Returns the number of
// organizations deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	var deleted int64
	err := txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
		if _, err := s.db.Collection("accounts").UpdateMany(ctx,
			bson.M{"organization_id": id},
			bson.M{"$unset": bson.M{"organization_id": ""}}); err != nil {
			return err
		}
		if _, err := s.db.Collection("complaints").UpdateMany(ctx,
			bson.M{"assigned_organization_id": id},
			bson.M{"$unset": bson.M{"assigned_organization_id": ""}}); err != nil {
			return err
		}
		res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	return deleted, err
}

// NameExistsForOther checks if an organization with the given name exists, excluding the specified ID.
// Pass primitive.NilObjectID when creating.
func (s *Store) NameExistsForOther(ctx context.Context, name string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"name_ci": text.Fold(name),
		"_id":     bson.M{"$ne": excludeID},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find returns organizations matching the given filter with optional find options.
// The caller is responsible for building the filter and options (pagination, sorting, projection).
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Organization, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// List returns every organization sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Organization, error) {
	return s.Find(ctx, bson.M{}, SortByName())
}

// SortByName is the default listing order.
func SortByName() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
}

// Names maps every organization id to its name.
func (s *Store) Names(ctx context.Context) (map[primitive.ObjectID]string, error) {
	orgs, err := s.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]string, len(orgs))
	for _, o := range orgs {
		out[o.ID] = o.Name
	}
	return out, nil
}

// Count returns the number of organizations matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
