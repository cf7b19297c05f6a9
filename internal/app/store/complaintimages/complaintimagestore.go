// internal/app/store/complaintimages/complaintimagestore.go
package complaintimagestore

import (
	"context"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("complaint_images")}
}

// Create records an image already written to media storage.
func (s *Store) Create(ctx context.Context, img models.ComplaintImage) (models.ComplaintImage, error) {
	img.ID = primitive.NewObjectID()
	img.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, img); err != nil {
		return models.ComplaintImage{}, err
	}
	return img, nil
}

// ListByComplaint returns a complaint's images in upload order.
func (s *Store) ListByComplaint(ctx context.Context, complaintID primitive.ObjectID) ([]models.ComplaintImage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"complaint_id": complaintID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ComplaintImage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByComplaints maps complaint ids to their image counts.
func (s *Store) CountByComplaints(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	out := make(map[primitive.ObjectID]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"complaint_id": bson.M{"$in": ids}}}},
		{{Key: "$group", Value: bson.M{"_id": "$complaint_id", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int64              `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.N
	}
	return out, cur.Err()
}
