// internal/app/store/regions/regionstore.go
package regionstore

import (
	"context"
	"errors"
	"time"

	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/txn"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDuplicateRegion = errors.New("a region with this name already exists")

type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("regions")}
}

func (s *Store) Create(ctx context.Context, name string) (models.Region, error) {
	now := time.Now().UTC()
	r := models.Region{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Region{}, ErrDuplicateRegion
		}
		return models.Region{}, err
	}
	return r, nil
}

// Ensure returns the region named name, creating it if needed. created is
// true when a new record was inserted.
func (s *Store) Ensure(ctx context.Context, name string) (r models.Region, created bool, err error) {
	err = s.c.FindOne(ctx, bson.M{"name_ci": text.Fold(name)}).Decode(&r)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Region{}, false, err
	}
	r, err = s.Create(ctx, name)
	return r, err == nil, err
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Region, error) {
	var r models.Region
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return models.Region{}, err
	}
	return r, nil
}

// List returns every region sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Region, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Region
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Names maps every region id to its name.
func (s *Store) Names(ctx context.Context) (map[primitive.ObjectID]string, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]string, len(all))
	for _, r := range all {
		out[r.ID] = r.Name
	}
	return out, nil
}

func (s *Store) Rename(ctx context.Context, id primitive.ObjectID, name string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"name":       name,
		"name_ci":    text.Fold(name),
		"updated_at": time.Now().UTC(),
	}})
	if err != nil && wafflemongo.IsDup(err) {
		return ErrDuplicateRegion
	}
	return err
}

// Delete removes a region with its districts. Complaints keep existing with
// region and district cleared; organizations lose their district link.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	var deleted int64
	err := txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
		if _, err := districtstore.DeleteWhere(ctx, s.db, bson.M{"region_id": id}); err != nil {
			return err
		}
		if _, err := s.db.Collection("complaints").UpdateMany(ctx,
			bson.M{"region_id": id},
			bson.M{"$unset": bson.M{"region_id": ""}}); err != nil {
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

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
