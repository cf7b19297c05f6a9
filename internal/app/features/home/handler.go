package home

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// pageSize is the number of complaints listed under the map.
const pageSize = 20

// Handler holds dependencies needed to serve the public pages.
type Handler struct {
	DB     *mongo.Database
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:     db,
		Log:    logger,
		ErrLog: errLog,
	}
}

type homeData struct {
	viewdata.BaseVM

	Regions   []models.Region
	Districts []models.District
	Region    string
	District  string

	ComplaintsCount int64
	Complaints      []complaintview.Row
	TopHigh         []complaintview.Row
	MapPoints       template.JS
	Page            paging.Page
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – redirect                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/home/", http.StatusFound)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /home/?region=&district=                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeHome renders the public map with the region/district filter. The
// urgent list is site-wide and ignores the filter.
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	regions, err := regionstore.New(h.DB).List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list regions failed", err, "Failed to load regions.", "/home/")
		return
	}

	var data homeData
	filter, err := h.geoFilter(ctx, r, regions, &data)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list districts failed", err, "Failed to load districts.", "/home/")
		return
	}

	store := complaintstore.New(h.DB)
	total, err := store.Count(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load complaints.", "/home/")
		return
	}
	page := paging.FromRequest(r, pageSize, total)
	list, err := store.Find(ctx, filter, page.FindOptions(complaintstore.NewestFirst()))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list complaints failed", err, "Failed to load complaints.", "/home/")
		return
	}
	top, err := store.TopHighPriority(ctx, bson.M{})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "top complaints failed", err, "Failed to load complaints.", "/home/")
		return
	}
	located, err := store.ForMap(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "map complaints failed", err, "Failed to load the map.", "/home/")
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load regions.", "/home/")
		return
	}
	mapJSON, err := reporting.MapJSON(reporting.MapPoints(located, names))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "encode map failed", err, "Failed to load the map.", "/home/")
		return
	}

	data.BaseVM = viewdata.NewBaseVM(w, r, "Complaints map", "/home/")
	data.Regions = regions
	data.ComplaintsCount = total
	data.Complaints = complaintview.Rows(list, names, publicURL)
	data.TopHigh = complaintview.Rows(top, names, publicURL)
	data.MapPoints = mapJSON
	data.Page = page

	templates.Render(w, r, "home", data)
}

// geoFilter builds the complaint filter from the region and district query
// parameters and fills the select state in data. Unknown ids are ignored. A
// district alone selects its region for the form; a district outside the
// chosen region is ignored.
func (h *Handler) geoFilter(ctx context.Context, r *http.Request, regions []models.Region, data *homeData) (bson.M, error) {
	filter := bson.M{}
	districts := districtstore.New(h.DB)

	var region primitive.ObjectID
	if rid, err := primitive.ObjectIDFromHex(query.Get(r, "region")); err == nil {
		for _, rg := range regions {
			if rg.ID == rid {
				region = rid
				filter["region_id"] = rid
				break
			}
		}
	}

	if did, err := primitive.ObjectIDFromHex(query.Get(r, "district")); err == nil {
		d, err := districts.GetByID(ctx, did)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return nil, err
		case region.IsZero():
			region = d.RegionID
			data.District = did.Hex()
			filter["district_id"] = did
		case d.RegionID == region:
			data.District = did.Hex()
			filter["district_id"] = did
		}
	}

	if region.IsZero() {
		return filter, nil
	}
	data.Region = region.Hex()
	list, err := districts.ListByRegion(ctx, region)
	if err != nil {
		return nil, err
	}
	data.Districts = list
	return filter, nil
}

// publicURL points anchors at the map section; complaint detail pages are
// only available to the owner and staff.
const publicURL = "/home/#c-%s"

/*─────────────────────────────────────────────────────────────────────────────*
| GET /geo/regions/{id}/districts                                             |
*─────────────────────────────────────────────────────────────────────────────*/

type districtJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServeDistricts returns the districts of a region for cascading selects.
// An unknown region yields an empty list.
func (h *Handler) ServeDistricts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad region id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	districts, err := districtstore.New(h.DB).ListByRegion(ctx, rid)
	if err != nil {
		h.Log.Error("list districts failed", zap.Error(err), zap.String("region_id", rid.Hex()))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "failed to load districts"})
		return
	}

	out := make([]districtJSON, 0, len(districts))
	for _, d := range districts {
		out = append(out, districtJSON{ID: d.ID.Hex(), Name: d.Name})
	}
	_ = json.NewEncoder(w).Encode(out)
}
