// internal/app/features/citizen/delete.go
package citizen

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// refuseDelete explains why c cannot be withdrawn. An assigned complaint
// returns to its detail page; one whose status moved on returns to the list.
func (h *Handler) refuseDelete(w http.ResponseWriter, r *http.Request, c models.Complaint, err error) {
	h.SessionMgr.AddFlash(w, r, auth.FlashError, complaintview.DeleteBlockerMessage(err))
	dest := listPath
	if errors.Is(err, workflow.ErrOrganizationAssigned) {
		dest = fmt.Sprintf(detailURL, c.ID.Hex())
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// ServeDelete asks for confirmation before withdrawing a complaint.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, c, ok := h.loadOwned(ctx, w, r)
	if !ok {
		return
	}
	if err := workflow.CanDelete(c); err != nil {
		h.refuseDelete(w, r, c, err)
		return
	}

	templates.Render(w, r, "citizen_complaint_delete", deleteData{
		BaseVM: viewdata.NewBaseVM(w, r, "Delete complaint", fmt.Sprintf(detailURL, c.ID.Hex())),
		ID:     c.ID.Hex(),
		Title:  c.Title,
	})
}

// HandleDelete withdraws a complaint that is still new and unassigned, then
// removes its image files.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor, c, ok := h.loadOwned(ctx, w, r)
	if !ok {
		return
	}
	if err := workflow.CanDelete(c); err != nil {
		h.refuseDelete(w, r, c, err)
		return
	}

	paths, err := complaintstore.New(h.DB).DeleteOwned(ctx, c.ID, actor.ID)
	if errors.Is(err, complaintstore.ErrNotDeletable) {
		// Assigned or moved on between the check above and the delete.
		fresh, gerr := complaintstore.New(h.DB).GetByID(ctx, c.ID)
		if gerr == nil {
			if cerr := workflow.CanDelete(fresh); cerr != nil {
				h.refuseDelete(w, r, fresh, cerr)
				return
			}
		}
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "This complaint can no longer be deleted.")
		http.Redirect(w, r, listPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete complaint failed", err, "Failed to delete the complaint.", listPath)
		return
	}

	for _, p := range paths {
		if err := h.Media.Delete(ctx, p); err != nil {
			h.Log.Warn("remove complaint image failed", zap.Error(err), zap.String("path", p))
		}
	}
	h.AuditLog.ComplaintDeleted(r, actor.ID, c.ID)

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, "The complaint was deleted.")
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}
