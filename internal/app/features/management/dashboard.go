// internal/app/features/management/dashboard.go
package management

import (
	"context"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	organizationstore "github.com/dalemusser/ekomurojaat/internal/app/store/organizations"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson"
)

// ServeDashboard shows system-wide complaint statistics, the busiest
// regions, the latest complaints and account totals.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	all := bson.M{}
	store := complaintstore.New(h.DB)

	stats, err := store.Stats(ctx, all)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "complaint stats failed", err, "Failed to load the dashboard.", "/home/")
		return
	}
	top, err := store.TopRegions(ctx, all, topRegionCount)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "top regions failed", err, "Failed to load the dashboard.", "/home/")
		return
	}
	recent, err := store.Recent(ctx, all, recentCount)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "recent complaints failed", err, "Failed to load the dashboard.", "/home/")
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load the dashboard.", "/home/")
		return
	}
	roles, err := accountstore.New(h.DB).CountByRole(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count accounts failed", err, "Failed to load the dashboard.", "/home/")
		return
	}
	orgs, err := organizationstore.New(h.DB).Count(ctx, bson.M{})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count organizations failed", err, "Failed to load the dashboard.", "/home/")
		return
	}

	templates.Render(w, r, "management_dashboard", dashboardData{
		BaseVM:        viewdata.NewBaseVM(w, r, "Management", "/home/"),
		Counts:        stats.Status,
		Priorities:    stats.Priority,
		SuccessRate:   stats.Status.SuccessRate(),
		TopRegions:    top,
		Recent:        complaintview.Rows(recent, names, complaintURL),
		Citizens:      roles[models.RoleCitizen],
		Moderators:    roles[models.RoleModerator],
		Admins:        roles[models.RoleAdmin],
		Organizations: orgs,
	})
}
