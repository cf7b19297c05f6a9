// internal/app/features/management/complaints.go
package management

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	organizationstore "github.com/dalemusser/ekomurojaat/internal/app/store/organizations"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/limits"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var updateMessages = map[error]string{
	workflow.ErrInvalidStatus:     "Choose a status from the list.",
	workflow.ErrInvalidPriority:   "Choose a priority from the list.",
	workflow.ErrInvalidTransition: "The complaint cannot move to this status from its current one.",
	workflow.ErrAnswerRequired:    "Write an answer before closing the complaint.",
}

type answerInput struct {
	AnswerText string `form:"answer_text" validate:"max=5000" label:"Answer"`
}

// complaintFilter builds the list filter from the query string. Unknown
// values are ignored and echoed back empty.
func complaintFilter(r *http.Request) (bson.M, string, string, string) {
	filter := bson.M{}
	status := query.Get(r, "status")
	if st, err := workflow.ParseStatus(status); err == nil {
		filter["status"] = st
		status = string(st)
	} else {
		status = ""
	}

	priority := query.Get(r, "priority")
	if pf, ok := reporting.PriorityFilter(priority); ok && priority != "" {
		for k, v := range pf {
			filter[k] = v
		}
	} else {
		priority = ""
	}

	region := query.Get(r, "region")
	if rid, err := primitive.ObjectIDFromHex(region); err == nil {
		filter["region_id"] = rid
	} else {
		region = ""
	}
	return filter, status, priority, region
}

// ServeComplaints lists every complaint, newest first, with optional
// status, priority and region filters.
func (h *Handler) ServeComplaints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	filter, status, priority, region := complaintFilter(r)

	store := complaintstore.New(h.DB)
	total, err := store.Count(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load complaints.", dashboardPath)
		return
	}
	page := paging.FromRequest(r, pageSize, total)
	list, err := store.Find(ctx, filter, page.FindOptions(complaintstore.NewestFirst()))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list complaints failed", err, "Failed to load complaints.", dashboardPath)
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load complaints.", dashboardPath)
		return
	}
	regions, err := regionstore.New(h.DB).List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list regions failed", err, "Failed to load complaints.", dashboardPath)
		return
	}

	templates.Render(w, r, "management_complaints", complaintListData{
		BaseVM:          viewdata.NewBaseVM(w, r, "Complaints", dashboardPath),
		Status:          status,
		Priority:        priority,
		Region:          region,
		StatusOptions:   workflow.StatusOptions(models.Statuses),
		PriorityOptions: priorityFilterOptions(),
		Regions:         regions,
		Complaints:      complaintview.Rows(list, names, complaintURL),
		Page:            page,
	})
}

// priorityFilterOptions adds the "unset" choice to the priority options.
func priorityFilterOptions() []workflow.Option {
	return append(workflow.PriorityOptions(), workflow.Option{
		Value: reporting.PriorityUnset,
		Label: workflow.PriorityLabel(""),
	})
}

// loadComplaint fetches the complaint named by the {id} URL parameter or
// writes a 404.
func (h *Handler) loadComplaint(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Complaint, bool) {
	id, ok := complaintview.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.ErrLog.NotFound(w, r, complaintsPath)
		return models.Complaint{}, false
	}
	c, err := complaintstore.New(h.DB).GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.NotFound(w, r, complaintsPath)
		return models.Complaint{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load complaint failed", err, "Failed to load the complaint.", complaintsPath)
		return models.Complaint{}, false
	}
	return c, true
}

// ServeComplaint shows one complaint. The first staff visit stamps viewed_at.
func (h *Handler) ServeComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, ok := h.loadComplaint(ctx, w, r)
	if !ok {
		return
	}
	if c.ViewedAt == nil {
		now := time.Now().UTC()
		set, err := complaintstore.New(h.DB).MarkViewed(ctx, c.ID, now)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "mark viewed failed", err, "Failed to load the complaint.", complaintsPath)
			return
		}
		if set {
			c.ViewedAt = &now
		}
	}
	detail, err := complaintview.LoadDetail(ctx, h.DB, h.Media, c, complaintURL)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load complaint detail failed", err, "Failed to load the complaint.", complaintsPath)
		return
	}

	templates.Render(w, r, "management_complaint", complaintDetailData{
		BaseVM:    viewdata.NewBaseVM(w, r, c.Title, complaintsPath),
		Complaint: detail,
		Terminal:  workflow.IsTerminal(c.Status),
	})
}

// reachableStatuses lists the statuses the complaint may be moved to,
// starting with its current one.
func reachableStatuses(from models.ComplaintStatus) []models.ComplaintStatus {
	out := []models.ComplaintStatus{from}
	for _, s := range models.Statuses {
		if s != from && workflow.CanTransition(from, s) {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handler) renderComplaintUpdate(ctx context.Context, w http.ResponseWriter, r *http.Request, c models.Complaint, data complaintUpdateData) {
	orgs, err := organizationstore.New(h.DB).List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list organizations failed", err, "Failed to load the form.", complaintsPath)
		return
	}
	formutil.SetBase(&data.Base, w, r, "Update complaint", fmt.Sprintf(complaintURL, c.ID.Hex()))
	data.ID = c.ID.Hex()
	data.Title = c.Title
	data.CurrentStatus = workflow.StatusLabel(c.Status)
	data.StatusOptions = workflow.StatusOptions(reachableStatuses(c.Status))
	data.PriorityOptions = workflow.PriorityOptions()
	data.Organizations = orgs
	templates.Render(w, r, "management_complaint_update", data)
}

// ServeComplaintUpdate renders the administrator edit form.
func (h *Handler) ServeComplaintUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.loadComplaint(ctx, w, r)
	if !ok {
		return
	}
	data := complaintUpdateData{
		Status:     string(c.Status),
		Priority:   string(c.Priority),
		AnswerText: c.AnswerText,
	}
	if data.Priority == "" {
		data.Priority = string(models.DefaultPriority)
	}
	if c.AssignedOrganizationID != nil {
		data.Organization = c.AssignedOrganizationID.Hex()
	}
	h.renderComplaintUpdate(ctx, w, r, c, data)
}

// HandleComplaintUpdate applies status, priority, organization and answer
// in one step. The workflow rejects the whole edit if any part is invalid.
func (h *Handler) HandleComplaintUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", complaintsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, ok := h.loadComplaint(ctx, w, r)
	if !ok {
		return
	}
	before := c

	data := complaintUpdateData{
		Status:       strings.ToLower(strings.TrimSpace(r.FormValue("status"))),
		Priority:     strings.ToLower(strings.TrimSpace(r.FormValue("priority"))),
		Organization: strings.TrimSpace(r.FormValue("organization")),
		AnswerText:   htmlsanitize.PlainText(strings.TrimSpace(r.FormValue("answer_text"))),
	}

	if res := inputval.Validate(answerInput{AnswerText: data.AnswerText}); res.HasErrors() {
		data.SetFieldErrors(res.ByField())
		h.renderComplaintUpdate(ctx, w, r, c, data)
		return
	}

	var orgID *primitive.ObjectID
	if data.Organization != "" {
		oid, err := primitive.ObjectIDFromHex(data.Organization)
		exists := false
		if err == nil {
			exists, err = organizationstore.New(h.DB).Exists(ctx, oid)
			if err != nil {
				h.ErrLog.LogServerError(w, r, "check organization failed", err, "Failed to update the complaint.", complaintsPath)
				return
			}
		}
		if !exists {
			data.SetFieldErrors(map[string]string{"organization": "Choose an organization from the list."})
			h.renderComplaintUpdate(ctx, w, r, c, data)
			return
		}
		orgID = &oid
	}

	err := workflow.ApplyAdminUpdate(&c, workflow.AdminUpdate{
		Status:         models.ComplaintStatus(data.Status),
		Priority:       models.Priority(data.Priority),
		OrganizationID: orgID,
		AnswerText:     data.AnswerText,
	}, time.Now().UTC())
	if err != nil {
		data.SetWorkflowError(err, updateMessages)
		h.renderComplaintUpdate(ctx, w, r, before, data)
		return
	}

	if err := complaintstore.New(h.DB).Save(ctx, c, bson.M{}); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.ErrLog.NotFound(w, r, complaintsPath)
			return
		}
		h.ErrLog.LogServerError(w, r, "save complaint failed", err, "Failed to update the complaint.", complaintsPath)
		return
	}
	complaintview.RecordUpdate(h.AuditLog, r, actor.ID, before, c)

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, "The complaint was updated.")
	http.Redirect(w, r, fmt.Sprintf(complaintURL, c.ID.Hex()), http.StatusSeeOther)
}
