// internal/app/features/citizen/view.go
package citizen

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// loadOwned fetches the complaint named by the {id} URL parameter if it
// belongs to the signed-in citizen. Anything else (bad id, unknown id,
// another citizen's complaint) writes a 404 and returns ok=false.
func (h *Handler) loadOwned(ctx context.Context, w http.ResponseWriter, r *http.Request) (complaintpolicy.Actor, models.Complaint, bool) {
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

// ServeView shows one of the citizen's complaints with its images and answer.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, c, ok := h.loadOwned(ctx, w, r)
	if !ok {
		return
	}
	detail, err := complaintview.LoadDetail(ctx, h.DB, h.Media, c, detailURL)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load complaint detail failed", err, "Failed to load the complaint.", listPath)
		return
	}

	templates.Render(w, r, "citizen_complaint", detailData{
		BaseVM:    viewdata.NewBaseVM(w, r, c.Title, listPath),
		Complaint: detail,
	})
}
