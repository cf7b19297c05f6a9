// internal/domain/models/complaint.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	StatusNew        ComplaintStatus = "new"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusClosed     ComplaintStatus = "closed"
	StatusRejected   ComplaintStatus = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []ComplaintStatus{StatusNew, StatusInProgress, StatusClosed, StatusRejected}

// Priority is the triage level of a complaint.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is applied to new complaints.
const DefaultPriority = PriorityMedium

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// GeoPoint is a GeoJSON point. Coordinates are stored as [lng, lat] so the
// 2dsphere index can use them directly.
type GeoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

// NewPoint builds a GeoJSON point from a latitude and longitude.
func NewPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Lat returns the latitude, or 0 for a malformed point.
func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Lng returns the longitude, or 0 for a malformed point.
func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Complaint is a citizen-submitted issue report.
type Complaint struct {
	ID                     primitive.ObjectID  `bson:"_id"`
	Title                  string              `bson:"title"`
	Description            string              `bson:"description"`
	RegionID               *primitive.ObjectID `bson:"region_id,omitempty"`
	DistrictID             *primitive.ObjectID `bson:"district_id,omitempty"`
	Location               *GeoPoint           `bson:"location,omitempty"`
	Status                 ComplaintStatus     `bson:"status"`
	Priority               Priority            `bson:"priority,omitempty"`
	OwnerID                primitive.ObjectID  `bson:"owner_id"`
	AssignedOrganizationID *primitive.ObjectID `bson:"assigned_organization_id,omitempty"`
	AnswerText             string              `bson:"answer_text,omitempty"`
	CreatedAt              time.Time           `bson:"created_at"`
	UpdatedAt              time.Time           `bson:"updated_at"`
	ViewedAt               *time.Time          `bson:"viewed_at,omitempty"`
	ClosedAt               *time.Time          `bson:"closed_at,omitempty"`
}

// ComplaintImage is a photo attached to a complaint. Path is relative to the
// media root and is removed with the complaint.
type ComplaintImage struct {
	ID          primitive.ObjectID `bson:"_id"`
	ComplaintID primitive.ObjectID `bson:"complaint_id"`
	Path        string             `bson:"path"`
	ContentType string             `bson:"content_type"`
	Size        int64              `bson:"size"`
	CreatedAt   time.Time          `bson:"created_at"`
}
