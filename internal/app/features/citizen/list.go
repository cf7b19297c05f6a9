// internal/app/features/citizen/list.go
package citizen

import (
	"context"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

// ServeList pages through the citizen's own complaints, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	scope := complaintpolicy.ScopeFilter(actor)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := complaintstore.New(h.DB)
	total, err := store.Count(ctx, scope)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load your complaints.", dashboardPath)
		return
	}
	page := paging.FromRequest(r, listPageSize, total)
	list, err := store.Find(ctx, scope, page.FindOptions(complaintstore.NewestFirst()))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list complaints failed", err, "Failed to load your complaints.", dashboardPath)
		return
	}
	names, err := complaintview.LoadNames(ctx, h.DB)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load names failed", err, "Failed to load your complaints.", dashboardPath)
		return
	}

	templates.Render(w, r, "citizen_complaints", listData{
		BaseVM:     viewdata.NewBaseVM(w, r, "My complaints", dashboardPath),
		Complaints: complaintview.Rows(list, names, detailURL),
		Page:       page,
	})
}
