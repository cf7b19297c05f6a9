// internal/app/features/management/users.go
package management

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/complaintpolicy"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	organizationstore "github.com/dalemusser/ekomurojaat/internal/app/store/organizations"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/normalize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type accountInput struct {
	Username  string `form:"username" validate:"required,max=150,username" label:"Username"`
	Email     string `form:"email" validate:"omitempty,email,max=254" label:"Email"`
	FirstName string `form:"first_name" validate:"max=150" label:"First name"`
	LastName  string `form:"last_name" validate:"max=150" label:"Last name"`
	Phone     string `form:"phone" validate:"phone" label:"Phone"`
	Role      string `form:"role" validate:"required,oneof=citizen moderator admin" label:"Role"`
}

type passwordInput struct {
	Password string `form:"password" validate:"required,min=8,max=128" label:"Password"`
	Confirm  string `form:"confirm" validate:"required,eqfield=Password" label:"Password confirmation"`
}

const dateFormat = "2006-01-02 15:04"

// ServeUsers lists accounts, newest first, with a name search and a role filter.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	q := query.Search(r, "q")
	role := normalize.Role(query.Get(r, "role"))
	filter := accountstore.SearchFilter(q)
	if models.ValidRole(role) {
		filter["role"] = role
	} else {
		role = ""
	}

	accounts := accountstore.New(h.DB)
	total, err := accounts.Count(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count accounts failed", err, "Failed to load users.", dashboardPath)
		return
	}
	page := paging.FromRequest(r, pageSize, total)
	list, err := accounts.Find(ctx, filter, page.FindOptions(accountstore.NewestFirst()))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list accounts failed", err, "Failed to load users.", dashboardPath)
		return
	}
	roleCounts, err := accounts.CountByRole(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count accounts failed", err, "Failed to load users.", dashboardPath)
		return
	}
	orgNames, err := organizationstore.New(h.DB).Names(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization names failed", err, "Failed to load users.", dashboardPath)
		return
	}

	rows := make([]userRow, 0, len(list))
	for _, a := range list {
		row := userRow{
			ID:       a.ID.Hex(),
			Username: a.Username,
			FullName: strings.TrimSpace(a.FirstName + " " + a.LastName),
			Email:    a.Email,
			Role:     a.Role,
			IsActive: a.IsActive,
			Joined:   a.CreatedAt.Format(dateFormat),
		}
		if a.OrganizationID != nil {
			row.Organization = orgNames[*a.OrganizationID]
		}
		if a.LastLoginAt != nil {
			row.LastLogin = a.LastLoginAt.Format(dateFormat)
		}
		rows = append(rows, row)
	}

	templates.Render(w, r, "management_users", userListData{
		BaseVM:     viewdata.NewBaseVM(w, r, "Users", dashboardPath),
		Query:      q,
		Role:       role,
		Roles:      models.Roles,
		RoleCounts: roleCounts,
		Users:      rows,
		Page:       page,
	})
}

func (h *Handler) renderUserForm(ctx context.Context, w http.ResponseWriter, r *http.Request, data userFormData) {
	orgs, err := organizationstore.New(h.DB).List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list organizations failed", err, "Failed to load the form.", usersPath)
		return
	}
	title := "New user"
	if data.IsEdit {
		title = "Edit user"
	}
	formutil.SetBase(&data.Base, w, r, title, usersPath)
	data.Roles = models.Roles
	data.Organizations = orgs
	templates.Render(w, r, "management_user_form", data)
}

// ServeUserCreate renders an empty account form.
func (h *Handler) ServeUserCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	h.renderUserForm(ctx, w, r, userFormData{Role: models.RoleCitizen, IsActive: true})
}

// readAccount parses the account form into data and validates it. A
// moderator must name an existing organization; other roles never keep one.
func (h *Handler) readAccount(ctx context.Context, r *http.Request, data *userFormData, requirePassword bool) (*primitive.ObjectID, string, map[string]string, error) {
	data.Username = normalize.Username(r.FormValue("username"))
	data.Email = normalize.Email(r.FormValue("email"))
	data.FirstName = normalize.Name(r.FormValue("first_name"))
	data.LastName = normalize.Name(r.FormValue("last_name"))
	data.Phone = strings.TrimSpace(r.FormValue("phone"))
	data.Role = normalize.Role(r.FormValue("role"))
	data.Organization = strings.TrimSpace(r.FormValue("organization"))
	data.IsActive = r.FormValue("is_active") != ""

	errs := inputval.Validate(accountInput{
		Username:  data.Username,
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Phone:     data.Phone,
		Role:      data.Role,
	}).ByField()

	password := r.FormValue("password")
	if requirePassword || password != "" {
		pres := inputval.Validate(passwordInput{Password: password, Confirm: r.FormValue("confirm")})
		for k, v := range pres.ByField() {
			errs[k] = v
		}
	}

	if data.Role != models.RoleModerator {
		data.Organization = ""
		return nil, password, errs, nil
	}
	if data.Organization == "" {
		errs["organization"] = "A moderator must belong to an organization."
		return nil, password, errs, nil
	}
	oid, err := primitive.ObjectIDFromHex(data.Organization)
	if err != nil {
		errs["organization"] = "Choose an organization from the list."
		return nil, password, errs, nil
	}
	exists, err := organizationstore.New(h.DB).Exists(ctx, oid)
	if err != nil {
		return nil, password, nil, err
	}
	if !exists {
		errs["organization"] = "Choose an organization from the list."
		return nil, password, errs, nil
	}
	return &oid, password, errs, nil
}

// HandleUserCreate adds an active account with the chosen role.
func (h *Handler) HandleUserCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", usersPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var data userFormData
	orgID, password, errs, err := h.readAccount(ctx, r, &data, true)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "check organization failed", err, "Failed to create the user.", usersPath)
		return
	}
	if len(errs) > 0 {
		data.SetFieldErrors(errs)
		h.renderUserForm(ctx, w, r, data)
		return
	}

	created, err := accountstore.New(h.DB).Create(ctx, models.Account{
		Username:       data.Username,
		Email:          data.Email,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Phone:          data.Phone,
		Role:           data.Role,
		OrganizationID: orgID,
		IsActive:       true,
	}, password)
	if errors.Is(err, accountstore.ErrDuplicateUsername) {
		data.SetFieldErrors(map[string]string{"username": "This username is already taken."})
		h.renderUserForm(ctx, w, r, data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create account failed", err, "Failed to create the user.", usersPath)
		return
	}
	h.AuditLog.Admin(r, auditlog.EventAccountCreated, actor.ID, created.ID, map[string]string{
		"username": created.Username,
		"role":     created.Role,
	})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("User %q created as %s.", created.Username, created.Role))
	http.Redirect(w, r, usersPath, http.StatusSeeOther)
}

// loadAccount fetches the account named by {id} or writes a 404.
func (h *Handler) loadAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	id, ok := complaintview.ParseID(chi.URLParam(r, "id"))
	if !ok {
		h.ErrLog.NotFound(w, r, usersPath)
		return nil, false
	}
	a, err := accountstore.New(h.DB).GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.NotFound(w, r, usersPath)
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load account failed", err, "Failed to load the user.", usersPath)
		return nil, false
	}
	return a, true
}

// ServeUserUpdate renders the edit form with the stored values.
func (h *Handler) ServeUserUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.loadAccount(ctx, w, r)
	if !ok {
		return
	}
	data := userFormData{
		ID:        a.ID.Hex(),
		IsEdit:    true,
		IsSelf:    a.ID == actor.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
		Role:      a.Role,
		IsActive:  a.IsActive,
	}
	if a.OrganizationID != nil {
		data.Organization = a.OrganizationID.Hex()
	}
	h.renderUserForm(ctx, w, r, data)
}

// HandleUserUpdate saves an edited account. The password changes only when
// a new one is entered. Administrators cannot demote or deactivate themselves.
func (h *Handler) HandleUserUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", usersPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.loadAccount(ctx, w, r)
	if !ok {
		return
	}
	data := userFormData{ID: a.ID.Hex(), IsEdit: true, IsSelf: a.ID == actor.ID}
	orgID, password, errs, err := h.readAccount(ctx, r, &data, false)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "check organization failed", err, "Failed to update the user.", usersPath)
		return
	}
	if data.IsSelf && (data.Role != models.RoleAdmin || !data.IsActive) {
		errs["role"] = "You cannot remove your own administrator access."
	}
	if len(errs) > 0 {
		data.SetFieldErrors(errs)
		h.renderUserForm(ctx, w, r, data)
		return
	}

	err = accountstore.New(h.DB).Update(ctx, a.ID, accountstore.Update{
		Username:       data.Username,
		Email:          data.Email,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Phone:          data.Phone,
		Role:           data.Role,
		OrganizationID: orgID,
		IsActive:       data.IsActive,
		Password:       password,
	})
	if errors.Is(err, accountstore.ErrDuplicateUsername) {
		data.SetFieldErrors(map[string]string{"username": "This username is already taken."})
		h.renderUserForm(ctx, w, r, data)
		return
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.NotFound(w, r, usersPath)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update account failed", err, "Failed to update the user.", usersPath)
		return
	}
	details := map[string]string{"username": data.Username, "role": data.Role}
	if password != "" {
		details["password"] = "changed"
	}
	h.AuditLog.Admin(r, auditlog.EventAccountUpdated, actor.ID, a.ID, details)

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("User %q updated.", data.Username))
	http.Redirect(w, r, usersPath, http.StatusSeeOther)
}

// ServeUserDelete shows what deleting the account will remove.
func (h *Handler) ServeUserDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.loadAccount(ctx, w, r)
	if !ok {
		return
	}
	if a.ID == actor.ID {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "You cannot delete your own account.")
		http.Redirect(w, r, usersPath, http.StatusSeeOther)
		return
	}
	n, err := h.DB.Collection("complaints").CountDocuments(ctx, bson.M{"owner_id": a.ID})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count complaints failed", err, "Failed to load the user.", usersPath)
		return
	}

	templates.Render(w, r, "management_user_delete", userDeleteData{
		BaseVM:     viewdata.NewBaseVM(w, r, "Delete user", usersPath),
		ID:         a.ID.Hex(),
		Username:   a.Username,
		Role:       a.Role,
		Complaints: n,
	})
}

// HandleUserDelete removes the account, its complaints and their photos.
func (h *Handler) HandleUserDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := complaintpolicy.ActorFromRequest(r)
	if !ok {
		http.Redirect(w, r, auth.DeniedRedirect, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	a, ok := h.loadAccount(ctx, w, r)
	if !ok {
		return
	}
	if a.ID == actor.ID {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "You cannot delete your own account.")
		http.Redirect(w, r, usersPath, http.StatusSeeOther)
		return
	}

	res, err := accountstore.New(h.DB).Delete(ctx, a.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete account failed", err, "Failed to delete the user.", usersPath)
		return
	}
	if res.Accounts == 0 {
		h.ErrLog.NotFound(w, r, usersPath)
		return
	}
	h.removeFiles(ctx, res.ImagePaths)
	h.AuditLog.Admin(r, auditlog.EventAccountDeleted, actor.ID, a.ID, map[string]string{
		"username":   a.Username,
		"complaints": fmt.Sprint(res.Complaints),
	})

	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, fmt.Sprintf("User %q deleted.", a.Username))
	http.Redirect(w, r, usersPath, http.StatusSeeOther)
}

// removeFiles deletes stored images after their records are gone.
// Failures are logged and skipped.
func (h *Handler) removeFiles(ctx context.Context, paths []string) {
	if h.Media == nil {
		return
	}
	for _, p := range paths {
		if err := h.Media.Delete(ctx, p); err != nil {
			h.Log.Warn("remove image failed", zap.Error(err), zap.String("path", p))
		}
	}
}
