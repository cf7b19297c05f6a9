// internal/app/features/citizen/create.go
package citizen

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	complaintimagestore "github.com/dalemusser/ekomurojaat/internal/app/store/complaintimages"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/limits"
	"github.com/dalemusser/ekomurojaat/internal/app/system/metrics"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type createInput struct {
	Title       string `form:"title" validate:"required,max=200" label:"Title"`
	Description string `form:"description" validate:"required,max=5000" label:"Description"`
}

type coordInput struct {
	Lat float64 `form:"lat" validate:"latitude" label:"Latitude"`
	Lng float64 `form:"lng" validate:"longitude" label:"Longitude"`
}

// ServeCreate renders the new-complaint form.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var data createData
	if err := h.loadGeo(ctx, &data); err != nil {
		h.ErrLog.LogServerError(w, r, "load regions failed", err, "Failed to load the form.", dashboardPath)
		return
	}
	h.renderCreate(w, r, data)
}

func (h *Handler) renderCreate(w http.ResponseWriter, r *http.Request, data createData) {
	formutil.SetBase(&data.Base, w, r, "New complaint", dashboardPath)
	data.MaxImages = h.MaxImages
	if h.Media != nil {
		data.MaxImageMB = h.Media.MaxBytes() >> 20
	}
	templates.Render(w, r, "citizen_complaint_form", data)
}

// loadGeo fills the region list and, when a region is selected, its districts.
func (h *Handler) loadGeo(ctx context.Context, data *createData) error {
	regions, err := regionstore.New(h.DB).List(ctx)
	if err != nil {
		return err
	}
	data.Regions = regions
	if rid, err := primitive.ObjectIDFromHex(data.Region); err == nil {
		districts, err := districtstore.New(h.DB).ListByRegion(ctx, rid)
		if err != nil {
			return err
		}
		data.Districts = districts
	}
	return nil
}

// HandleCreate stores a new complaint and its images. Images are saved one
// by one; a failed image is logged and skipped without undoing the others.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	if err := h.parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse complaint form failed", err, "The upload is too large or malformed.", "/user/complaint/create/")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	data := createData{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Region:      strings.TrimSpace(r.FormValue("region")),
		District:    strings.TrimSpace(r.FormValue("district")),
		Lat:         strings.TrimSpace(r.FormValue("lat")),
		Lng:         strings.TrimSpace(r.FormValue("lng")),
	}

	fail := func(errs map[string]string) {
		if err := h.loadGeo(ctx, &data); err != nil {
			h.ErrLog.LogServerError(w, r, "load regions failed", err, "Failed to load the form.", dashboardPath)
			return
		}
		data.SetFieldErrors(errs)
		h.renderCreate(w, r, data)
	}

	in := createInput{
		Title:       htmlsanitize.PlainText(data.Title),
		Description: htmlsanitize.PlainText(data.Description),
	}
	errs := inputval.Validate(in).ByField()

	location, locErrs := parseLocation(data.Lat, data.Lng)
	for k, v := range locErrs {
		errs[k] = v
	}

	regionID, districtID, geoErrs, err := h.resolveGeo(ctx, data.Region, data.District)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resolve region failed", err, "Failed to check the region.", dashboardPath)
		return
	}
	for k, v := range geoErrs {
		errs[k] = v
	}
	if len(errs) > 0 {
		fail(errs)
		return
	}

	c, err := complaintstore.New(h.DB).Create(ctx, models.Complaint{
		Title:       in.Title,
		Description: in.Description,
		RegionID:    regionID,
		DistrictID:  districtID,
		Location:    location,
		OwnerID:     actor.ID,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create complaint failed", err, "Failed to submit the complaint.", dashboardPath)
		return
	}
	metrics.ComplaintsCreated.Inc()

	saved, skipped := h.saveImages(ctx, r, c.ID)
	h.AuditLog.ComplaintCreated(r, actor.ID, c.ID, saved)

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, "Your complaint was submitted.")
	if skipped > 0 {
		h.SessionMgr.AddFlash(w, r, auth.FlashError,
			fmt.Sprintf("%d image(s) could not be saved. Only JPEG, PNG, GIF and WebP files up to the size limit are accepted.", skipped))
	}
	http.Redirect(w, r, fmt.Sprintf(detailURL, c.ID.Hex()), http.StatusSeeOther)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	limit := int64(h.MaxImages)*h.maxImageBytes() + limits.MaxFormSize
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := r.ParseMultipartForm(limits.MultipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func (h *Handler) maxImageBytes() int64 {
	if h.Media == nil {
		return 0
	}
	return h.Media.MaxBytes()
}

// parseLocation reads an optional coordinate pair. Both or neither must be set.
func parseLocation(latS, lngS string) (*models.GeoPoint, map[string]string) {
	if latS == "" && lngS == "" {
		return nil, nil
	}
	errs := map[string]string{}
	lat, latErr := strconv.ParseFloat(latS, 64)
	lng, lngErr := strconv.ParseFloat(lngS, 64)
	if latErr != nil {
		errs["lat"] = "Latitude must be a number."
	}
	if lngErr != nil {
		errs["lng"] = "Longitude must be a number."
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if res := inputval.Validate(coordInput{Lat: lat, Lng: lng}); res.HasErrors() {
		return nil, res.ByField()
	}
	return models.NewPoint(lat, lng), nil
}

// resolveGeo checks the optional region/district pair. A district alone
// implies its region; a district outside the chosen region is rejected.
func (h *Handler) resolveGeo(ctx context.Context, regionHex, districtHex string) (*primitive.ObjectID, *primitive.ObjectID, map[string]string, error) {
	errs := map[string]string{}
	var regionID, districtID *primitive.ObjectID

	if regionHex != "" {
		rid, err := primitive.ObjectIDFromHex(regionHex)
		if err != nil {
			errs["region"] = "Choose a region from the list."
			return nil, nil, errs, nil
		}
		if _, err := regionstore.New(h.DB).GetByID(ctx, rid); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				errs["region"] = "Choose a region from the list."
				return nil, nil, errs, nil
			}
			return nil, nil, nil, err
		}
		regionID = &rid
	}

	if districtHex != "" {
		did, err := primitive.ObjectIDFromHex(districtHex)
		if err != nil {
			errs["district"] = "Choose a district from the list."
			return nil, nil, errs, nil
		}
		d, err := districtstore.New(h.DB).GetByID(ctx, did)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				errs["district"] = "Choose a district from the list."
				return nil, nil, errs, nil
			}
			return nil, nil, nil, err
		}
		if regionID != nil && d.RegionID != *regionID {
			errs["district"] = "The district does not belong to the selected region."
			return nil, nil, errs, nil
		}
		rid := d.RegionID
		regionID = &rid
		districtID = &did
	}
	return regionID, districtID, nil, nil
}

func (h *Handler) saveImages(ctx context.Context, r *http.Request, complaintID primitive.ObjectID) (saved, skipped int) {
	if r.MultipartForm == nil || h.Media == nil {
		return 0, 0
	}
	files := r.MultipartForm.File["images"]
	if len(files) > h.MaxImages {
		skipped = len(files) - h.MaxImages
		files = files[:h.MaxImages]
	}

	images := complaintimagestore.New(h.DB)
	for _, fh := range files {
		if err := h.saveImage(ctx, images, complaintID, fh); err != nil {
			metrics.ImageUploads.WithLabelValues(metrics.ResultFailed).Inc()
			h.Log.Warn("complaint image skipped",
				zap.Error(err),
				zap.String("complaint_id", complaintID.Hex()),
				zap.String("filename", fh.Filename),
				zap.Int64("size", fh.Size))
			skipped++
			continue
		}
		metrics.ImageUploads.WithLabelValues(metrics.ResultOK).Inc()
		saved++
	}
	return saved, skipped
}

func (h *Handler) saveImage(ctx context.Context, images *complaintimagestore.Store, complaintID primitive.ObjectID, fh *multipart.FileHeader) error {
	s, err := h.Media.SaveUpload(ctx, fh, time.Now())
	if err != nil {
		return err
	}
	if _, err := images.Create(ctx, models.ComplaintImage{
		ComplaintID: complaintID,
		Path:        s.Path,
		ContentType: s.ContentType,
		Size:        s.Size,
	}); err != nil {
		if derr := h.Media.Delete(ctx, s.Path); derr != nil {
			h.Log.Warn("remove orphaned image failed", zap.Error(derr), zap.String("path", s.Path))
		}
		return err
	}
	return nil
}
