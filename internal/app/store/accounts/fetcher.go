package accountstore

import (
	"context"

	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher to load fresh account data on each request.
type Fetcher struct {
	accounts *mongo.Collection
	orgs     *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{
		accounts: db.Collection("accounts"),
		orgs:     db.Collection("organizations"),
	}
}

// FetchUser returns nil if the account is missing, inactive, or any error occurs.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var a models.Account
	proj := options.FindOne().SetProjection(bson.M{
		"_id":             1,
		"username":        1,
		"first_name":      1,
		"last_name":       1,
		"email":           1,
		"role":            1,
		"is_active":       1,
		"organization_id": 1,
	})
	if err := f.accounts.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&a); err != nil {
		return nil
	}
	if !a.IsActive {
		return nil
	}

	su := &auth.SessionUser{
		ID:      a.ID.Hex(),
		Name:    a.DisplayName(),
		LoginID: a.Username,
		Email:   a.Email,
		Role:    a.Role,
	}

	if a.Role == models.RoleModerator && a.OrganizationID != nil {
		su.OrganizationID = a.OrganizationID.Hex()

		var org models.Organization
		orgProj := options.FindOne().SetProjection(bson.M{"name": 1})
		if err := f.orgs.FindOne(ctx, bson.M{"_id": a.OrganizationID}, orgProj).Decode(&org); err == nil {
			su.OrganizationName = org.Name
		}
		// a missing org still yields a user; the moderator sees an empty queue
	}
	return su
}
