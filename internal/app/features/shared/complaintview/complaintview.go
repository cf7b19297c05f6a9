// Package complaintview builds the complaint view models shared by the
// citizen, moderator and management pages.
package complaintview

import (
	"context"
	"fmt"
	"time"

	complaintimagestore "github.com/dalemusser/ekomurojaat/internal/app/store/complaintimages"
	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	organizationstore "github.com/dalemusser/ekomurojaat/internal/app/store/organizations"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Row is one complaint in a list.
type Row struct {
	ID            string
	URL           string
	Title         string
	Status        models.ComplaintStatus
	StatusLabel   string
	Priority      models.Priority
	PriorityLabel string
	Region        string
	District      string
	HasLocation   bool
	CreatedAt     time.Time
}

// Rows converts complaints to list rows. urlFormat receives the hex id,
// e.g. "/user/complaint/%s/".
func Rows(cs []models.Complaint, names reporting.Names, urlFormat string) []Row {
	out := make([]Row, 0, len(cs))
	for _, c := range cs {
		out = append(out, Row{
			ID:            c.ID.Hex(),
			URL:           fmt.Sprintf(urlFormat, c.ID.Hex()),
			Title:         c.Title,
			Status:        c.Status,
			StatusLabel:   workflow.StatusLabel(c.Status),
			Priority:      c.Priority,
			PriorityLabel: workflow.PriorityLabel(c.Priority),
			Region:        names.Region(c.RegionID),
			District:      names.District(c.DistrictID),
			HasLocation:   c.Location != nil,
			CreatedAt:     c.CreatedAt,
		})
	}
	return out
}

// LoadNames reads every region and district name.
func LoadNames(ctx context.Context, db *mongo.Database) (reporting.Names, error) {
	regions, err := regionstore.New(db).Names(ctx)
	if err != nil {
		return reporting.Names{}, err
	}
	districts, err := districtstore.New(db).Names(ctx)
	if err != nil {
		return reporting.Names{}, err
	}
	return reporting.Names{Regions: regions, Districts: districts}, nil
}

// Image is an attached photo ready for display.
type Image struct {
	URL         string
	ContentType string
}

// Detail is the full complaint page.
type Detail struct {
	Row
	Description    string
	AnswerText     string
	OwnerName      string
	OwnerPhone     string
	OrganizationID string
	Organization   string
	Lat            float64
	Lng            float64
	UpdatedAt      time.Time
	ViewedAt       *time.Time
	ClosedAt       *time.Time
	Images         []Image
	CanDelete      bool
	DeleteBlocker  string
}

// LoadDetail resolves names, the owner, the organization and images of c.
func LoadDetail(ctx context.Context, db *mongo.Database, media *imagestore.Store, c models.Complaint, urlFormat string) (Detail, error) {
	names, err := LoadNames(ctx, db)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{
		Row:         Rows([]models.Complaint{c}, names, urlFormat)[0],
		Description: c.Description,
		AnswerText:  c.AnswerText,
		UpdatedAt:   c.UpdatedAt,
		ViewedAt:    c.ViewedAt,
		ClosedAt:    c.ClosedAt,
	}
	if c.Location != nil {
		d.Lat, d.Lng = c.Location.Lat(), c.Location.Lng()
	}

	var owner models.Account
	proj := options.FindOne().SetProjection(bson.M{"username": 1, "first_name": 1, "last_name": 1, "phone": 1})
	if err := db.Collection("accounts").FindOne(ctx, bson.M{"_id": c.OwnerID}, proj).Decode(&owner); err == nil {
		d.OwnerName = owner.DisplayName()
		d.OwnerPhone = owner.Phone
	} else if err != mongo.ErrNoDocuments {
		return Detail{}, err
	}

	if c.AssignedOrganizationID != nil {
		d.OrganizationID = c.AssignedOrganizationID.Hex()
		org, err := organizationstore.New(db).GetByID(ctx, *c.AssignedOrganizationID)
		if err == nil {
			d.Organization = org.Name
		} else if err != mongo.ErrNoDocuments {
			return Detail{}, err
		}
	}

	imgs, err := complaintimagestore.New(db).ListByComplaint(ctx, c.ID)
	if err != nil {
		return Detail{}, err
	}
	for _, img := range imgs {
		d.Images = append(d.Images, Image{URL: media.URL(img.Path), ContentType: img.ContentType})
	}

	if err := workflow.CanDelete(c); err != nil {
		d.DeleteBlocker = DeleteBlockerMessage(err)
	} else {
		d.CanDelete = true
	}
	return d, nil
}

// DeleteBlockerMessage explains why a citizen can no longer delete a complaint.
func DeleteBlockerMessage(err error) string {
	switch err {
	case workflow.ErrOrganizationAssigned:
		return "This complaint has already been assigned to an organization and can no longer be deleted."
	case workflow.ErrNotNew:
		return "Work on this complaint has started, so it can no longer be deleted."
	}
	return "This complaint can no longer be deleted."
}

// ParseID reads a hex ObjectID from a URL parameter.
func ParseID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	return id, err == nil
}
