// internal/app/store/districts/districtstore.go
package districtstore

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

var ErrDuplicateDistrict = errors.New("a district with this name already exists in the region")

type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("districts")}
}

func (s *Store) Create(ctx context.Context, regionID primitive.ObjectID, name string) (models.District, error) {
	now := time.Now().UTC()
	d := models.District{
		ID:        primitive.NewObjectID(),
		RegionID:  regionID,
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, d); err != nil {
		if wafflemongo.IsDup(err) {
			return models.District{}, ErrDuplicateDistrict
		}
		return models.District{}, err
	}
	return d, nil
}

// Ensure returns the district named name in regionID, creating it if needed.
func (s *Store) Ensure(ctx context.Context, regionID primitive.ObjectID, name string) (models.District, bool, error) {
	var d models.District
	err := s.c.FindOne(ctx, bson.M{"region_id": regionID, "name_ci": text.Fold(name)}).Decode(&d)
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.District{}, false, err
	}
	d, err = s.Create(ctx, regionID, name)
	return d, err == nil, err
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.District, error) {
	var d models.District
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return models.District{}, err
	}
	return d, nil
}

// InRegion reports whether districtID belongs to regionID.
func (s *Store) InRegion(ctx context.Context, districtID, regionID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": districtID, "region_id": regionID})
	return n > 0, err
}

// ListByRegion returns the region's districts sorted by name.
func (s *Store) ListByRegion(ctx context.Context, regionID primitive.ObjectID) ([]models.District, error) {
	return s.find(ctx, bson.M{"region_id": regionID})
}

// ListAll returns every district sorted by name.
func (s *Store) ListAll(ctx context.Context) ([]models.District, error) {
	return s.find(ctx, bson.M{})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.District, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.District
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Names maps every district id to its name.
func (s *Store) Names(ctx context.Context) (map[primitive.ObjectID]string, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]string, len(all))
	for _, d := range all {
		out[d.ID] = d.Name
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
		return ErrDuplicateDistrict
	}
	return err
}

// Delete removes a district. Organizations and complaints that referenced it
// keep existing with their district cleared.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	var deleted int64
	err := txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
		n, err := DeleteWhere(ctx, s.db, bson.M{"_id": id})
		deleted = n
		return err
	})
	return deleted, err
}

// DeleteWhere deletes every district matching filter and clears references
// to them. It does not open its own transaction.
func DeleteWhere(ctx context.Context, db *mongo.Database, filter bson.M) (int64, error) {
	c := db.Collection("districts")
	cur, err := c.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	ref := bson.M{"district_id": bson.M{"$in": ids}}
	unset := bson.M{"$unset": bson.M{"district_id": ""}}
	if _, err := db.Collection("organizations").UpdateMany(ctx, ref, unset); err != nil {
		return 0, err
	}
	if _, err := db.Collection("complaints").UpdateMany(ctx, ref, unset); err != nil {
		return 0, err
	}
	res, err := c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
