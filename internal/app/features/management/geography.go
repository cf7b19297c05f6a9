// internal/app/features/management/geography.go
package management

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/normalize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type geoNameInput struct {
	Name string `form:"name" validate:"required,max=100" label:"Name"`
}

// readGeoName cleans and validates a region or district name.
func readGeoName(raw string) (string, string) {
	name := normalize.Name(htmlsanitize.PlainText(raw))
	if res := inputval.Validate(geoNameInput{Name: name}); res.HasErrors() {
		return name, res.First()
	}
	return name, ""
}

// ServeRegions lists regions with their district and complaint counts.
func (h *Handler) ServeRegions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	h.renderRegions(ctx, w, r, regionListData{})
}

func (h *Handler) renderRegions(ctx context.Context, w http.ResponseWriter, r *http.Request, data regionListData) {
	regions, err := regionstore.New(h.DB).List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list regions failed", err, "Failed to load regions.", dashboardPath)
		return
	}
	districts := districtstore.New(h.DB)
	complaints := h.DB.Collection("complaints")
	for _, rg := range regions {
		nd, err := districts.Count(ctx, bson.M{"region_id": rg.ID})
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count districts failed", err, "Failed to load regions.", dashboardPath)
			return
		}
		nc, err := complaints.CountDocuments(ctx, bson.M{"region_id": rg.ID})
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load regions.", dashboardPath)
			return
		}
		data.Regions = append(data.Regions, regionRow{ID: rg.ID.Hex(), Name: rg.Name, Districts: nd, Complaints: nc})
	}
	formutil.SetBase(&data.Base, w, r, "Regions", dashboardPath)
	templates.Render(w, r, "management_regions", data)
}

// HandleRegionCreate adds a region.
func (h *Handler) HandleRegionCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", regionsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	name, msg := readGeoName(r.FormValue("name"))
	data := regionListData{Name: name}
	if msg != "" {
		data.SetFieldErrors(map[string]string{"name": msg})
		h.renderRegions(ctx, w, r, data)
		return
	}
	rg, err := regionstore.New(h.DB).Create(ctx, name)
	if errors.Is(err, regionstore.ErrDuplicateRegion) {
		data.SetFieldErrors(map[string]string{"name": "A region with this name already exists."})
		h.renderRegions(ctx, w, r, data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create region failed", err, "Failed to create the region.", regionsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventRegionCreated, actor.ID, rg.ID, map[string]string{"name": rg.Name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("Region %q created.", rg.Name))
	http.Redirect(w, r, fmt.Sprintf(regionURL, rg.ID.Hex()), http.StatusSeeOther)
}

// loadRegion fetches the region named by {id} or writes a 404.
func (h *Handler) loadRegion(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Region, bool) {
	id, ok := complaintview.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.ErrLog.NotFound(w, r, regionsPath)
		return models.Region{}, false
	}
	rg, err := regionstore.New(h.DB).GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.NotFound(w, r, regionsPath)
		return models.Region{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load region failed", err, "Failed to load the region.", regionsPath)
		return models.Region{}, false
	}
	return rg, true
}

// ServeRegion shows a region with its districts.
func (h *Handler) ServeRegion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	h.renderRegion(ctx, w, r, rg, regionDetailData{})
}

func (h *Handler) renderRegion(ctx context.Context, w http.ResponseWriter, r *http.Request, rg models.Region, data regionDetailData) {
	ds, err := districtstore.New(h.DB).ListByRegion(ctx, rg.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list districts failed", err, "Failed to load the region.", regionsPath)
		return
	}
	complaints := h.DB.Collection("complaints")
	orgs := h.DB.Collection("organizations")
	for _, d := range ds {
		nc, err := complaints.CountDocuments(ctx, bson.M{"district_id": d.ID})
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load the region.", regionsPath)
			return
		}
		no, err := orgs.CountDocuments(ctx, bson.M{"district_id": d.ID})
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count organizations failed", err, "Failed to load the region.", regionsPath)
			return
		}
		data.Districts = append(data.Districts, districtRow{ID: d.ID.Hex(), Name: d.Name, Complaints: nc, Organizations: no})
	}
	formutil.SetBase(&data.Base, w, r, rg.Name, regionsPath)
	data.ID = rg.ID.Hex()
	data.Name = rg.Name
	templates.Render(w, r, "management_region", data)
}

// HandleRegionRename renames a region.
func (h *Handler) HandleRegionRename(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", regionsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	name, msg := readGeoName(r.FormValue("name"))
	if msg != "" {
		data := regionDetailData{NewName: name}
		data.SetFieldErrors(map[string]string{"name": msg})
		h.renderRegion(ctx, w, r, rg, data)
		return
	}
	err := regionstore.New(h.DB).Rename(ctx, rg.ID, name)
	if errors.Is(err, regionstore.ErrDuplicateRegion) {
		data := regionDetailData{NewName: name}
		data.SetFieldErrors(map[string]string{"name": "A region with this name already exists."})
		h.renderRegion(ctx, w, r, rg, data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "rename region failed", err, "Failed to rename the region.", regionsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventRegionUpdated, actor.ID, rg.ID, map[string]string{"from": rg.Name, "to": name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("Region renamed to %q.", name))
	http.Redirect(w, r, fmt.Sprintf(regionURL, rg.ID.Hex()), http.StatusSeeOther)
}

// HandleRegionDelete removes a region and its districts. Complaints and
// organizations that referenced them are kept with the links cleared.
func (h *Handler) HandleRegionDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	rg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	n, err := regionstore.New(h.DB).Delete(ctx, rg.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete region failed", err, "Failed to delete the region.", regionsPath)
		return
	}
	if n == 0 {
		h.ErrLog.NotFound(w, r, regionsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventRegionDeleted, actor.ID, rg.ID, map[string]string{"name": rg.Name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("Region %q deleted.", rg.Name))
	http.Redirect(w, r, regionsPath, http.StatusSeeOther)
}

// HandleDistrictCreate adds a district to the region.
func (h *Handler) HandleDistrictCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", regionsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	name, msg := readGeoName(r.FormValue("district_name"))
	data := regionDetailData{NewName: name}
	if msg != "" {
		data.SetFieldErrors(map[string]string{"district_name": msg})
		h.renderRegion(ctx, w, r, rg, data)
		return
	}
	d, err := districtstore.New(h.DB).Create(ctx, rg.ID, name)
	if errors.Is(err, districtstore.ErrDuplicateDistrict) {
		data.SetFieldErrors(map[string]string{"district_name": "This region already has a district with this name."})
		h.renderRegion(ctx, w, r, rg, data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create district failed", err, "Failed to create the district.", regionsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventDistrictSaved, actor.ID, d.ID, map[string]string{
		"region": rg.Name,
		"name":   d.Name,
	})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("District %q added.", d.Name))
	http.Redirect(w, r, fmt.Sprintf(regionURL, rg.ID.Hex()), http.StatusSeeOther)
}

// loadDistrict fetches the district named by {did} within the region named
// by {id}. A district of another region is treated as missing.
func (h *Handler) loadDistrict(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Region, models.District, bool) {
	rg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return rg, models.District{}, false
	}
	back := fmt.Sprintf(regionURL, rg.ID.Hex())
	did, ok := complaintview.ParseID(chi.URLParam(r, "did"))
	if !ok {
		h.ErrLog.NotFound(w, r, back)
		return rg, models.District{}, false
	}
	d, err := districtstore.New(h.DB).GetByID(ctx, did)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && d.RegionID != rg.ID) {
		h.ErrLog.NotFound(w, r, back)
		return rg, models.District{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load district failed", err, "Failed to load the district.", back)
		return rg, models.District{}, false
	}
	return rg, d, true
}

// HandleDistrictRename renames a district. Problems come back as flash notices.
func (h *Handler) HandleDistrictRename(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", regionsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rg, d, ok := h.loadDistrict(ctx, w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf(regionURL, rg.ID.Hex())

	name, msg := readGeoName(r.FormValue("name"))
	if msg != "" {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, msg)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	err := districtstore.New(h.DB).Rename(ctx, d.ID, name)
	if errors.Is(err, districtstore.ErrDuplicateDistrict) {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "This region already has a district with this name.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "rename district failed", err, "Failed to rename the district.", back)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventDistrictSaved, actor.ID, d.ID, map[string]string{"from": d.Name, "to": name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("District renamed to %q.", name))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// HandleDistrictDelete removes a district; complaints and organizations in
// it keep existing with the district cleared.
func (h *Handler) HandleDistrictDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rg, d, ok := h.loadDistrict(ctx, w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf(regionURL, rg.ID.Hex())
	if _, err := districtstore.New(h.DB).Delete(ctx, d.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "delete district failed", err, "Failed to delete the district.", back)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventDistrictDelete, actor.ID, d.ID, map[string]string{"name": d.Name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("District %q deleted.", d.Name))
	http.Redirect(w, r, back, http.StatusSeeOther)
}
