// internal/app/features/moderator/complaints.go
package moderator

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
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/limits"
	"github.com/dalemusser/ekomurojaat/internal/app/system/navigation"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var updateMessages = map[error]string{
	workflow.ErrInvalidStatus:     "Choose a status from the list.",
	workflow.ErrStatusNotAllowed:  "Moderators can only mark a complaint in progress or closed.",
	workflow.ErrInvalidTransition: "The complaint cannot move to this status from its current one.",
	workflow.ErrAnswerRequired:    "Write an answer before closing the complaint.",
}

type answerInput struct {
	AnswerText string `form:"answer_text" validate:"max=5000" label:"Answer"`
}

// ServeList pages through the organization's complaints, newest first,
// optionally narrowed to one status.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	filter := bson.M{}
	for k, v := range complaintpolicy.ScopeFilter(actor) {
		filter[k] = v
	}
	status := query.Get(r, "status")
	if st, err := workflow.ParseStatus(status); err == nil {
		filter["status"] = st
		status = string(st)
	} else {
		status = ""
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

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

	templates.Render(w, r, "moderator_complaints", listData{
		BaseVM:        viewdata.NewBaseVM(w, r, "Assigned complaints", dashboardPath),
		Status:        status,
		StatusOptions: workflow.StatusOptions(models.Statuses),
		Complaints:    complaintview.Rows(list, names, detailURL),
		Page:          page,
	})
}

// loadAssigned fetches the complaint named by {id} if it is routed to the
// moderator's organization. Anything else writes a 404.
func (h *Handler) loadAssigned(ctx context.Context, w http.ResponseWriter, r *http.Request) (complaintpolicy.Actor, models.Complaint, bool) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return actor, models.Complaint{}, false
	}
	id, ok := complaintview.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.ErrLog.NotFound(w, r, listPath)
		return actor, models.Complaint{}, false
	}
	c, err := complaintstore.New(h.DB).GetScoped(ctx, id, complaintpolicy.ScopeFilter(actor))
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.NotFound(w, r, listPath)
		return actor, models.Complaint{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load complaint failed", err, "Failed to load the complaint.", listPath)
		return actor, models.Complaint{}, false
	}
	return actor, c, true
}

// ServeView shows an assigned complaint. The first staff visit stamps viewed_at.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, c, ok := h.loadAssigned(ctx, w, r)
	if !ok {
		return
	}
	if c.ViewedAt == nil {
		now := time.Now().UTC()
		set, err := complaintstore.New(h.DB).MarkViewed(ctx, c.ID, now)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "mark viewed failed", err, "Failed to load the complaint.", listPath)
			return
		}
		if set {
			c.ViewedAt = &now
		}
	}
	detail, err := complaintview.LoadDetail(ctx, h.DB, h.Media, c, detailURL)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load complaint detail failed", err, "Failed to load the complaint.", listPath)
		return
	}

	templates.Render(w, r, "moderator_complaint", detailData{
		BaseVM:    viewdata.NewBaseVM(w, r, c.Title, listPath),
		Complaint: detail,
	})
}

// allowedStatuses lists the moderator statuses reachable from the current one.
func allowedStatuses(from models.ComplaintStatus) []models.ComplaintStatus {
	var out []models.ComplaintStatus
	for _, s := range workflow.ModeratorStatuses() {
		if s == from || workflow.CanTransition(from, s) {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handler) renderUpdate(w http.ResponseWriter, r *http.Request, c models.Complaint, data updateData) {
	back := fmt.Sprintf(detailURL, c.ID.Hex())
	formutil.SetBase(&data.Base, w, r, "Update complaint", back)
	data.ID = c.ID.Hex()
	data.Title = c.Title
	data.CurrentStatus = workflow.StatusLabel(c.Status)
	data.StatusOptions = workflow.StatusOptions(allowedStatuses(c.Status))
	templates.Render(w, r, "moderator_complaint_update", data)
}

// returnURL is where a saved update lands: a moderator complaint page named
// by "return", or the complaint itself.
func returnURL(r *http.Request, c models.Complaint) string {
	opts := navigation.ModeratorBackURL
	opts.Fallback = fmt.Sprintf(detailURL, c.ID.Hex())
	return navigation.SafeBackURL(r, opts)
}

// ServeUpdate renders the status and answer form.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, c, ok := h.loadAssigned(ctx, w, r)
	if !ok {
		return
	}
	h.renderUpdate(w, r, c, updateData{
		Status:     string(c.Status),
		AnswerText: c.AnswerText,
		Return:     returnURL(r, c),
	})
}

// HandleUpdate moves an assigned complaint to in_progress or closed and
// records the answer. The write is scoped, so a complaint reassigned in the
// meantime is reported as not found.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", listPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor, c, ok := h.loadAssigned(ctx, w, r)
	if !ok {
		return
	}
	before := c

	data := updateData{
		Status:     strings.ToLower(strings.TrimSpace(r.FormValue("status"))),
		AnswerText: htmlsanitize.PlainText(strings.TrimSpace(r.FormValue("answer_text"))),
		Return:     returnURL(r, c),
	}
	if res := inputval.Validate(answerInput{AnswerText: data.AnswerText}); res.HasErrors() {
		data.SetFieldErrors(res.ByField())
		h.renderUpdate(w, r, c, data)
		return
	}

	err := workflow.ApplyModeratorUpdate(&c, workflow.ModeratorUpdate{
		Status:     models.ComplaintStatus(data.Status),
		AnswerText: data.AnswerText,
	}, time.Now().UTC())
	if err != nil {
		data.SetWorkflowError(err, updateMessages)
		h.renderUpdate(w, r, before, data)
		return
	}

	if err := complaintstore.New(h.DB).Save(ctx, c, complaintpolicy.ScopeFilter(actor)); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.ErrLog.NotFound(w, r, listPath)
			return
		}
		h.ErrLog.LogServerError(w, r, "save complaint failed", err, "Failed to update the complaint.", listPath)
		return
	}
	complaintview.RecordUpdate(h.AuditLog, r, actor.ID, before, c)

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, "The complaint was updated.")
	http.Redirect(w, r, data.Return, http.StatusSeeOther)
}
