// internal/app/features/management/organizations.go
package management

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	organizationstore "github.com/dalemusser/ekomurojaat/internal/app/store/organizations"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/normalize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type orgInput struct {
	Name    string `form:"name" validate:"required,max=200" label:"Name"`
	Address string `form:"address" validate:"max=500" label:"Address"`
	Phone   string `form:"phone" validate:"phone" label:"Phone"`
	Email   string `form:"email" validate:"omitempty,email,max=254" label:"Email"`
}

// ServeOrganizations lists organizations by name with their workload.
func (h *Handler) ServeOrganizations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	orgs := organizationstore.New(h.DB)
	total, err := orgs.Count(ctx, bson.M{})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count organizations failed", err, "Failed to load organizations.", dashboardPath)
		return
	}
	page := paging.FromRequest(r, pageSize, total)
	list, err := orgs.Find(ctx, bson.M{}, page.FindOptions(organizationstore.SortByName()))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list organizations failed", err, "Failed to load organizations.", dashboardPath)
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load organizations.", dashboardPath)
		return
	}

	rows := make([]orgRow, 0, len(list))
	for _, o := range list {
		mods, complaints, err := h.orgUsage(ctx, o.ID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count organization usage failed", err, "Failed to load organizations.", dashboardPath)
			return
		}
		rows = append(rows, orgRow{
			ID:         o.ID.Hex(),
			Name:       o.Name,
			Address:    o.Address,
			Phone:      o.Phone,
			Email:      o.Email,
			District:   names.District(o.DistrictID),
			Moderators: mods,
			Complaints: complaints,
		})
	}

	templates.Render(w, r, "management_organizations", organizationListData{
		BaseVM:        viewdata.NewBaseVM(w, r, "Organizations", dashboardPath),
		Organizations: rows,
		Page:          page,
	})
}

// orgUsage counts the moderators of an organization and the complaints
// routed to it.
func (h *Handler) orgUsage(ctx context.Context, id primitive.ObjectID) (int64, int64, error) {
	mods, err := h.DB.Collection("accounts").CountDocuments(ctx, bson.M{"organization_id": id})
	if err != nil {
		return 0, 0, err
	}
	complaints, err := h.DB.Collection("complaints").CountDocuments(ctx, bson.M{"assigned_organization_id": id})
	if err != nil {
		return 0, 0, err
	}
	return mods, complaints, nil
}

// districtOptions lists every district as "Region / District", sorted by
// region then district.
func (h *Handler) districtOptions(ctx context.Context) ([]districtOption, error) {
	regions, err := regionstore.New(h.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	districts := districtstore.New(h.DB)
	var out []districtOption
	for _, rg := range regions {
		ds, err := districts.ListByRegion(ctx, rg.ID)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			out = append(out, districtOption{ID: d.ID.Hex(), Label: rg.Name + " / " + d.Name})
		}
	}
	return out, nil
}

func (h *Handler) renderOrganizationForm(ctx context.Context, w http.ResponseWriter, r *http.Request, data organizationFormData) {
	districts, err := h.districtOptions(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list districts failed", err, "Failed to load the form.", organizationsPath)
		return
	}
	title := "New organization"
	if data.IsEdit {
		title = "Edit organization"
	}
	formutil.SetBase(&data.Base, w, r, title, organizationsPath)
	data.Districts = districts
	templates.Render(w, r, "management_organization_form", data)
}

// ServeOrganizationCreate renders an empty organization form.
func (h *Handler) ServeOrganizationCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	h.renderOrganizationForm(ctx, w, r, organizationFormData{})
}

// readOrganization parses and validates the organization form. It returns
// the organization to store, the echoed form and any field errors.
func (h *Handler) readOrganization(ctx context.Context, r *http.Request, data *organizationFormData) (models.Organization, map[string]string, error) {
	data.Name = normalize.Name(htmlsanitize.PlainText(r.FormValue("name")))
	data.Address = strings.TrimSpace(htmlsanitize.PlainText(r.FormValue("address")))
	data.Phone = strings.TrimSpace(r.FormValue("phone"))
	data.Email = normalize.Email(r.FormValue("email"))
	data.District = strings.TrimSpace(r.FormValue("district"))

	errs := inputval.Validate(orgInput{
		Name:    data.Name,
		Address: data.Address,
		Phone:   data.Phone,
		Email:   data.Email,
	}).ByField()

	org := models.Organization{
		Name:    data.Name,
		Address: data.Address,
		Phone:   normalize.Phone(data.Phone),
		Email:   data.Email,
	}
	if data.District != "" {
		did, err := primitive.ObjectIDFromHex(data.District)
		if err != nil {
			errs["district"] = "Choose a district from the list."
			return org, errs, nil
		}
		if _, err := districtstore.New(h.DB).GetByID(ctx, did); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				errs["district"] = "Choose a district from the list."
				return org, errs, nil
			}
			return org, nil, err
		}
		org.DistrictID = &did
	}
	return org, errs, nil
}

// HandleOrganizationCreate stores a new organization.
func (h *Handler) HandleOrganizationCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", organizationsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var data organizationFormData
	org, errs, err := h.readOrganization(ctx, r, &data)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "check district failed", err, "Failed to create the organization.", organizationsPath)
		return
	}
	if len(errs) > 0 {
		data.SetFieldErrors(errs)
		h.renderOrganizationForm(ctx, w, r, data)
		return
	}

	created, err := organizationstore.New(h.DB).Create(ctx, org)
	if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
		data.SetFieldErrors(map[string]string{"name": "An organization with this name already exists."})
		h.renderOrganizationForm(ctx, w, r, data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create organization failed", err, "Failed to create the organization.", organizationsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventOrgCreated, actor.ID, created.ID, map[string]string{"name": created.Name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("Organization %q created.", created.Name))
	http.Redirect(w, r, organizationsPath, http.StatusSeeOther)
}

// loadOrganization fetches the organization named by {id} or writes a 404.
func (h *Handler) loadOrganization(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Organization, bool) {
	id, ok := complaintview.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.ErrLog.NotFound(w, r, organizationsPath)
		return models.Organization{}, false
	}
	org, err := organizationstore.New(h.DB).GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.NotFound(w, r, organizationsPath)
		return models.Organization{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization failed", err, "Failed to load the organization.", organizationsPath)
		return models.Organization{}, false
	}
	return org, true
}

// ServeOrganizationUpdate renders the edit form with the stored values.
func (h *Handler) ServeOrganizationUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	org, ok := h.loadOrganization(ctx, w, r)
	if !ok {
		return
	}
	data := organizationFormData{
		ID:      org.ID.Hex(),
		IsEdit:  true,
		Name:    org.Name,
		Address: org.Address,
		Phone:   org.Phone,
		Email:   org.Email,
	}
	if org.DistrictID != nil {
		data.District = org.DistrictID.Hex()
	}
	h.renderOrganizationForm(ctx, w, r, data)
}

// HandleOrganizationUpdate saves an edited organization.
func (h *Handler) HandleOrganizationUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", organizationsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	existing, ok := h.loadOrganization(ctx, w, r)
	if !ok {
		return
	}
	data := organizationFormData{ID: existing.ID.Hex(), IsEdit: true}
	org, errs, err := h.readOrganization(ctx, r, &data)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "check district failed", err, "Failed to update the organization.", organizationsPath)
		return
	}
	if len(errs) > 0 {
		data.SetFieldErrors(errs)
		h.renderOrganizationForm(ctx, w, r, data)
		return
	}

	err = organizationstore.New(h.DB).Update(ctx, existing.ID, org)
	if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
		data.SetFieldErrors(map[string]string{"name": "An organization with this name already exists."})
		h.renderOrganizationForm(ctx, w, r, data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update organization failed", err, "Failed to update the organization.", organizationsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventOrgUpdated, actor.ID, existing.ID, map[string]string{"name": org.Name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("Organization %q updated.", org.Name))
	http.Redirect(w, r, organizationsPath, http.StatusSeeOther)
}

// ServeOrganizationDelete shows what deleting the organization will detach.
func (h *Handler) ServeOrganizationDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	org, ok := h.loadOrganization(ctx, w, r)
	if !ok {
		return
	}
	mods, complaints, err := h.orgUsage(ctx, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count organization usage failed", err, "Failed to load the organization.", organizationsPath)
		return
	}

	templates.Render(w, r, "management_organization_delete", organizationDeleteData{
		BaseVM:     viewdata.NewBaseVM(w, r, "Delete organization", organizationsPath),
		ID:         org.ID.Hex(),
		Name:       org.Name,
		Moderators: mods,
		Complaints: complaints,
	})
}

// HandleOrganizationDelete removes the organization. Its moderators lose
// the affiliation and its complaints become unassigned.
func (h *Handler) HandleOrganizationDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	org, ok := h.loadOrganization(ctx, w, r)
	if !ok {
		return
	}
	n, err := organizationstore.New(h.DB).Delete(ctx, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete organization failed", err, "Failed to delete the organization.", organizationsPath)
		return
	}
	if n == 0 {
		h.ErrLog.NotFound(w, r, organizationsPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventOrgDeleted, actor.ID, org.ID, map[string]string{"name": org.Name})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("Organization %q deleted.", org.Name))
	http.Redirect(w, r, organizationsPath, http.StatusSeeOther)
}
