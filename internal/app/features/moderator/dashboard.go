// internal/app/features/moderator/dashboard.go
package moderator

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	organizationstore "github.com/dalemusser/ekomurojaat/internal/app/store/organizations"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServeDashboard summarizes the queue of the moderator's organization.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	scope := complaintpolicy.ScopeFilter(actor)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var orgName string
	if !actor.OrganizationID.IsZero() {
		org, err := organizationstore.New(h.DB).GetByID(ctx, actor.OrganizationID)
		switch {
		case err == nil:
			orgName = org.Name
		case !errors.Is(err, mongo.ErrNoDocuments):
			h.ErrLog.LogServerError(w, r, "load organization failed", err, "Failed to load your dashboard.", "/home/")
			return
		}
	}

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

	templates.Render(w, r, "moderator_dashboard", dashboardData{
		BaseVM:       viewdata.NewBaseVM(w, r, "Organization queue", "/home/"),
		Organization: orgName,
		Counts:       stats.Status,
		Priorities:   stats.Priority,
		Recent:       complaintview.Rows(recent, names, detailURL),
	})
}
