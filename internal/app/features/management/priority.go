// internal/app/features/management/priority.go
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
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/metrics"
	"github.com/dalemusser/ekomurojaat/internal/app/system/navigation"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServePriority is the triage board: every complaint with its priority,
// filterable by priority (including "unset"), with per-priority counts.
func (h *Handler) ServePriority(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	filter := bson.M{}
	selected := query.Get(r, "priority")
	if pf, ok := reporting.PriorityFilter(selected); ok && selected != "" {
		filter = pf
	} else {
		selected = ""
	}

	store := complaintstore.New(h.DB)
	stats, err := store.Stats(ctx, bson.M{})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "complaint stats failed", err, "Failed to load the priority board.", dashboardPath)
		return
	}
	total, err := store.Count(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load the priority board.", dashboardPath)
		return
	}
	page := paging.FromRequest(r, pageSize, total)
	list, err := store.Find(ctx, filter, page.FindOptions(complaintstore.NewestFirst()))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list complaints failed", err, "Failed to load the priority board.", dashboardPath)
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load the priority board.", dashboardPath)
		return
	}

	templates.Render(w, r, "management_priority", priorityData{
		BaseVM:          viewdata.NewBaseVM(w, r, "Priority board", dashboardPath),
		Filter:          selected,
		Counts:          stats.Priority,
		Total:           stats.Status.Total(),
		PriorityOptions: workflow.PriorityOptions(),
		Complaints:      complaintview.Rows(list, names, complaintURL),
		Page:            page,
	})
}

// HandlePriority assigns one complaint's priority and returns to the board
// with its filter and page intact.
func (h *Handler) HandlePriority(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", priorityPath)
		return
	}
	back := navigation.SafeBackURL(r, navigation.PriorityBackURL)

	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(r.FormValue("complaint_id")))
	if err != nil {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "Unknown complaint.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	p, err := workflow.ParsePriority(r.FormValue("priority"))
	if err != nil {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "Choose low, medium or high.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, prev, err := complaintstore.New(h.DB).SetPriority(ctx, id, p, time.Now().UTC())
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "Unknown complaint.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "set priority failed", err, "Failed to assign the priority.", priorityPath)
		return
	}
	if prev != c.Priority {
		metrics.PriorityAssignments.WithLabelValues(string(c.Priority)).Inc()
		h.AuditLog.PriorityAssigned(r, actor.ID, c.ID, string(prev), string(c.Priority))
	}

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess,
		fmt.Sprintf("Priority %q assigned to %q.", workflow.PriorityLabel(c.Priority), c.Title))
	http.Redirect(w, r, back, http.StatusSeeOther)
}
