// Package reporting derives dashboard figures and the map payload from
// complaint data. Nothing here is persisted; callers recompute per request.
package reporting

import (
	"encoding/json"
	"html/template"
	"math"

	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TopN is the size of the high-priority unresolved list.
const TopN = 10

// PriorityUnset is the filter value for complaints with no priority stored.
const PriorityUnset = "unset"

// StatusCounts holds complaint totals per status.
type StatusCounts struct {
	New        int64
	InProgress int64
	Closed     int64
	Rejected   int64
}

// Total is the sum over every status.
func (c StatusCounts) Total() int64 { return c.New + c.InProgress + c.Closed + c.Rejected }

// Open counts complaints that are not yet resolved.
func (c StatusCounts) Open() int64 { return c.New + c.InProgress }

// SuccessRate is the closed share of Total as a percentage.
func (c StatusCounts) SuccessRate() float64 { return SuccessRate(c.Closed, c.Total()) }

// StatusCountsFrom builds StatusCounts from a status → count map.
func StatusCountsFrom(m map[string]int64) StatusCounts {
	return StatusCounts{
		New:        m[string(models.StatusNew)],
		InProgress: m[string(models.StatusInProgress)],
		Closed:     m[string(models.StatusClosed)],
		Rejected:   m[string(models.StatusRejected)],
	}
}

// PriorityCounts holds complaint totals per priority.
type PriorityCounts struct {
	Low    int64
	Medium int64
	High   int64
	Unset  int64
}

// PriorityCountsFrom builds PriorityCounts from a priority → count map.
// The empty key counts complaints stored without a priority.
func PriorityCountsFrom(m map[string]int64) PriorityCounts {
	return PriorityCounts{
		Low:    m[string(models.PriorityLow)],
		Medium: m[string(models.PriorityMedium)],
		High:   m[string(models.PriorityHigh)],
		Unset:  m[""],
	}
}

// SuccessRate returns closed/total*100 rounded to one decimal, or 0 when total is 0.
func SuccessRate(closed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(closed)/float64(total)*1000) / 10
}

// UnresolvedHighPriority selects high-priority complaints that are new or in progress.
func UnresolvedHighPriority() bson.M {
	return bson.M{
		"priority": models.PriorityHigh,
		"status":   bson.M{"$in": []models.ComplaintStatus{models.StatusNew, models.StatusInProgress}},
	}
}

// PriorityFilter translates a priority board filter value into a query.
// ok is false for unknown values.
func PriorityFilter(v string) (bson.M, bool) {
	if v == PriorityUnset {
		return bson.M{"$or": []bson.M{
			{"priority": bson.M{"$exists": false}},
			{"priority": ""},
		}}, true
	}
	p, err := workflow.ParsePriority(v)
	if err != nil {
		return nil, false
	}
	return bson.M{"priority": p}, true
}

// MapPoint is one marker on the complaints map.
type MapPoint struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Priority string  `json:"priority"`
	Status   string  `json:"status"`
	Region   string  `json:"region,omitempty"`
	District string  `json:"district,omitempty"`
}

// Names resolves region and district ids to display names.
type Names struct {
	Regions   map[primitive.ObjectID]string
	Districts map[primitive.ObjectID]string
}

// Region returns the region name, or "" when unknown.
func (n Names) Region(id *primitive.ObjectID) string {
	if id == nil || n.Regions == nil {
		return ""
	}
	return n.Regions[*id]
}

// District returns the district name, or "" when unknown.
func (n Names) District(id *primitive.ObjectID) string {
	if id == nil || n.Districts == nil {
		return ""
	}
	return n.Districts[*id]
}

// MapPoints returns a marker per complaint with a location. Complaints
// without one are skipped.
func MapPoints(complaints []models.Complaint, names Names) []MapPoint {
	out := make([]MapPoint, 0, len(complaints))
	for _, c := range complaints {
		if c.Location == nil || len(c.Location.Coordinates) < 2 {
			continue
		}
		out = append(out, MapPoint{
			ID:       c.ID.Hex(),
			Title:    c.Title,
			Lat:      c.Location.Lat(),
			Lng:      c.Location.Lng(),
			Priority: string(c.Priority),
			Status:   workflow.StatusLabel(c.Status),
			Region:   names.Region(c.RegionID),
			District: names.District(c.DistrictID),
		})
	}
	return out
}

// MapJSON encodes points for embedding in a <script> block.
// encoding/json escapes <, > and & so the result is safe inside HTML.
func MapJSON(points []MapPoint) (template.JS, error) {
	if points == nil {
		points = []MapPoint{}
	}
	b, err := json.Marshal(points)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}
