// internal/app/features/citizen/profile.go
package citizen

import (
	"context"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

// ServeProfile shows the signed-in citizen's account details.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	acct, err := accountstore.New(h.DB).GetByID(ctx, actor.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load account failed", err, "Failed to load your profile.", dashboardPath)
		return
	}
	stats, err := complaintstore.New(h.DB).Stats(ctx, complaintpolicy.ScopeFilter(actor))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "complaint stats failed", err, "Failed to load your profile.", dashboardPath)
		return
	}

	templates.Render(w, r, "citizen_profile", profileData{
		BaseVM:    viewdata.NewBaseVM(w, r, "My profile", dashboardPath),
		Username:  acct.Username,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Email:     acct.Email,
		Phone:     acct.Phone,
		Joined:    acct.CreatedAt.Format("2006-01-02"),
		Counts:    stats.Status,
	})
}
