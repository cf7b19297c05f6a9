// internal/app/features/citizen/dashboard.go
package citizen

import (
	"context"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

// ServeDashboard shows the citizen's own totals and latest complaints.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	scope := complaintpolicy.ScopeFilter(actor)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := complaintstore.New(h.DB)
	stats, err := store.Stats(ctx, scope)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "complaint stats failed", err, "Failed to load your dashboard.", "/home/")
		return
	}
	recent, err := store.Recent(ctx, scope, recentCount)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "recent complaints failed", err, "Failed to load your dashboard.", "/home/")
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load your dashboard.", "/home/")
		return
	}

	templates.Render(w, r, "citizen_dashboard", dashboardData{
		BaseVM:      viewdata.NewBaseVM(w, r, "My dashboard", "/home/"),
		Counts:      stats.Status,
		SuccessRate: stats.Status.SuccessRate(),
		Priorities:  stats.Priority,
		Recent:      complaintview.Rows(recent, names, detailURL),
	})
}
