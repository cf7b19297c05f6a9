// internal/app/store/complaints/complaintstore.go
package complaintstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/txn"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotDeletable is returned by DeleteOwned when the complaint changed
// between the caller's check and the delete.
var ErrNotDeletable = errors.New("complaint can no longer be deleted")

type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("complaints")}
}

// Create inserts a new complaint in status new with the default priority
// and no organization.
func (s *Store) Create(ctx context.Context, c models.Complaint) (models.Complaint, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Status = models.StatusNew
	if c.Priority == "" {
		c.Priority = models.DefaultPriority
	}
	c.AssignedOrganizationID = nil
	c.AnswerText = ""
	c.ViewedAt = nil
	c.ClosedAt = nil
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Complaint{}, err
	}
	return c, nil
}

// GetByID loads a complaint regardless of scope.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Complaint, error) {
	return s.GetScoped(ctx, id, bson.M{})
}

// GetScoped loads a complaint only if it also matches scope. A complaint
// outside the scope is reported as mongo.ErrNoDocuments.
func (s *Store) GetScoped(ctx context.Context, id primitive.ObjectID, scope bson.M) (models.Complaint, error) {
	var c models.Complaint
	if err := s.c.FindOne(ctx, and(scope, bson.M{"_id": id})).Decode(&c); err != nil {
		return models.Complaint{}, err
	}
	return c, nil
}

// Find returns complaints matching filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Complaint, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Complaint
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of complaints matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// NewestFirst is the listing order used everywhere complaints are shown.
func NewestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
}

// Recent returns the n newest complaints in scope.
func (s *Store) Recent(ctx context.Context, scope bson.M, n int64) ([]models.Complaint, error) {
	return s.Find(ctx, scope, NewestFirst().SetLimit(n))
}

// TopHighPriority returns the newest unresolved high-priority complaints in scope.
func (s *Store) TopHighPriority(ctx context.Context, scope bson.M) ([]models.Complaint, error) {
	return s.Find(ctx, and(scope, reporting.UnresolvedHighPriority()), NewestFirst().SetLimit(reporting.TopN))
}

// ForMap returns the located complaints in scope with only the fields the
// map needs.
func (s *Store) ForMap(ctx context.Context, scope bson.M) ([]models.Complaint, error) {
	opts := NewestFirst().SetProjection(bson.M{
		"title":       1,
		"location":    1,
		"priority":    1,
		"status":      1,
		"region_id":   1,
		"district_id": 1,
		"owner_id":    1,
		"created_at":  1,
	})
	return s.Find(ctx, and(scope, bson.M{"location": bson.M{"$ne": nil}}), opts)
}

// Stats holds the per-status and per-priority counts of a complaint set.
type Stats struct {
	Status   reporting.StatusCounts
	Priority reporting.PriorityCounts
}

// Stats counts complaints in scope by status and by priority in one round trip.
func (s *Store) Stats(ctx context.Context, scope bson.M) (Stats, error) {
	group := func(field string) bson.A {
		return bson.A{bson.M{"$group": bson.M{
			"_id": bson.M{"$ifNull": bson.A{"$" + field, ""}},
			"n":   bson.M{"$sum": 1},
		}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scope}},
		{{Key: "$facet", Value: bson.M{
			"status":   group("status"),
			"priority": group("priority"),
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	defer cur.Close(ctx)

	type bucket struct {
		Key string `bson:"_id"`
		N   int64  `bson:"n"`
	}
	var rows []struct {
		Status   []bucket `bson:"status"`
		Priority []bucket `bson:"priority"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, err
	}
	if len(rows) == 0 {
		return Stats{}, nil
	}
	toMap := func(bs []bucket) map[string]int64 {
		m := make(map[string]int64, len(bs))
		for _, b := range bs {
			m[b.Key] += b.N
		}
		return m
	}
	return Stats{
		Status:   reporting.StatusCountsFrom(toMap(rows[0].Status)),
		Priority: reporting.PriorityCountsFrom(toMap(rows[0].Priority)),
	}, nil
}

// RegionCount is one row of the region ranking.
type RegionCount struct {
	RegionID primitive.ObjectID `bson:"_id"`
	Name     string             `bson:"name"`
	Count    int64              `bson:"count"`
}

// TopRegions ranks regions by number of complaints in scope. Complaints
// without a region are not ranked.
func (s *Store) TopRegions(ctx context.Context, scope bson.M, n int64) ([]RegionCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: and(scope, bson.M{"region_id": bson.M{"$ne": nil}})}},
		{{Key: "$group", Value: bson.M{"_id": "$region_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: n}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "regions",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "region",
		}}},
		{{Key: "$project", Value: bson.M{
			"count": 1,
			"name":  bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$region.name", 0}}, ""}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []RegionCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes the workflow-controlled fields of c back, provided the
// complaint still matches scope. Callers mutate c through the workflow
// package first. Returns mongo.ErrNoDocuments when nothing matched.
func (s *Store) Save(ctx context.Context, c models.Complaint, scope bson.M) error {
	set := bson.M{
		"status":      c.Status,
		"priority":    c.Priority,
		"answer_text": c.AnswerText,
		"updated_at":  c.UpdatedAt,
	}
	unset := bson.M{}
	if c.AssignedOrganizationID != nil {
		set["assigned_organization_id"] = *c.AssignedOrganizationID
	} else {
		unset["assigned_organization_id"] = ""
	}
	if c.ClosedAt != nil {
		set["closed_at"] = *c.ClosedAt
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.c.UpdateOne(ctx, and(scope, bson.M{"_id": c.ID}), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetPriority assigns a priority without touching the status. It returns
// the updated complaint and the priority it had before.
func (s *Store) SetPriority(ctx context.Context, id primitive.ObjectID, p models.Priority, now time.Time) (models.Complaint, models.Priority, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Complaint{}, "", err
	}
	prev := c.Priority
	if err := workflow.AssignPriority(&c, p, now); err != nil {
		return models.Complaint{}, "", err
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"priority": c.Priority, "updated_at": c.UpdatedAt}})
	if err != nil {
		return models.Complaint{}, "", err
	}
	if res.MatchedCount == 0 {
		return models.Complaint{}, "", mongo.ErrNoDocuments
	}
	return c, prev, nil
}

// MarkViewed stamps viewed_at unless it is already set. It reports whether
// this call set it.
func (s *Store) MarkViewed(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "viewed_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"viewed_at": now.UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// DeleteOwned removes a complaint of ownerID only while it is still new and
// unassigned, together with its image records. It returns the paths of the
// removed images for file cleanup.
func (s *Store) DeleteOwned(ctx context.Context, id, ownerID primitive.ObjectID) ([]string, error) {
	filter := bson.M{
		"_id":                      id,
		"owner_id":                 ownerID,
		"status":                   models.StatusNew,
		"assigned_organization_id": bson.M{"$exists": false},
	}
	var paths []string
	err := txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
		paths = nil
		res, err := s.c.DeleteOne(ctx, filter)
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotDeletable
		}
		paths, err = deleteImages(ctx, s.db.Collection("complaint_images"), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func deleteImages(ctx context.Context, images *mongo.Collection, complaintID primitive.ObjectID) ([]string, error) {
	filter := bson.M{"complaint_id": complaintID}
	cur, err := images.Find(ctx, filter, options.Find().SetProjection(bson.M{"path": 1}))
	if err != nil {
		return nil, err
	}
	var imgs []models.ComplaintImage
	if err := cur.All(ctx, &imgs); err != nil {
		return nil, err
	}
	if _, err := images.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(imgs))
	for _, img := range imgs {
		paths = append(paths, img.Path)
	}
	return paths, nil
}

// and combines two filters; an empty filter drops out.
func and(a, b bson.M) bson.M {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	return bson.M{"$and": bson.A{a, b}}
}
