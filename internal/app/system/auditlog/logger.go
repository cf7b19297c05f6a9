// internal/app/system/auditlog/logger.go
package auditlog

// Audit events are structured zap entries tagged audit=true so they can be
// shipped and filtered by the log pipeline. Nothing is written to MongoDB.

import (
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Event categories
const (
	CategoryAuth      = "auth"
	CategoryAdmin     = "admin"
	CategoryComplaint = "complaint"
)

// Auth event types
const (
	EventLoginSuccess          = "login_success"
	EventLoginFailed           = "login_failed"
	EventLoginRateLimited      = "login_rate_limited"
	EventLogout                = "logout"
	EventSignup                = "signup"
	EventVerificationCodeSent  = "verification_code_sent"
	EventVerificationCodeFail  = "verification_code_failed"
	EventAccountActivated      = "account_activated"
	EventVerificationEmailFail = "verification_email_failed"
)

// Complaint event types
const (
	EventComplaintCreated       = "complaint_created"
	EventComplaintDeleted       = "complaint_deleted"
	EventComplaintStatusChanged = "complaint_status_changed"
	EventPriorityAssigned       = "priority_assigned"
	EventOrganizationAssigned   = "organization_assigned"
	EventComplaintAnswered      = "complaint_answered"
)

// Admin event types
const (
	EventAccountCreated = "account_created"
	EventAccountUpdated = "account_updated"
	EventAccountDeleted = "account_deleted"
	EventOrgCreated     = "org_created"
	EventOrgUpdated     = "org_updated"
	EventOrgDeleted     = "org_deleted"
	EventRegionCreated  = "region_created"
	EventRegionUpdated  = "region_updated"
	EventRegionDeleted  = "region_deleted"
	EventDistrictSaved  = "district_saved"
	EventDistrictDelete = "district_deleted"
)

// Logger writes audit events. A nil *Logger is a no-op so handlers under test
// can leave it unset.
type Logger struct {
	zapLog *zap.Logger
}

// New creates a new audit Logger.
func New(zapLog *zap.Logger) *Logger {
	return &Logger{zapLog: zapLog}
}

// Log emits one event. Extra fields are appended after the common ones.
func (l *Logger) Log(r *http.Request, category, eventType string, success bool, fields ...zap.Field) {
	if l == nil || l.zapLog == nil {
		return
	}
	base := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", category),
		zap.String("event_type", eventType),
		zap.Bool("success", success),
	}
	if r != nil {
		base = append(base,
			zap.String("ip", ratelimit.ClientIP(r)),
			zap.String("user_agent", r.UserAgent()),
		)
	}
	base = append(base, fields...)

	if success {
		l.zapLog.Info("audit event", base...)
	} else {
		l.zapLog.Warn("audit event", base...)
	}
}

func id(key string, v primitive.ObjectID) zap.Field { return zap.String(key, v.Hex()) }

func optID(key string, v *primitive.ObjectID) zap.Field {
	if v == nil {
		return zap.String(key, "")
	}
	return zap.String(key, v.Hex())
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(r *http.Request, accountID primitive.ObjectID, username string) {
	l.Log(r, CategoryAuth, EventLoginSuccess, true, id("account_id", accountID), zap.String("username", username))
}

// LoginFailed logs a rejected sign-in. reason is never shown to the user.
func (l *Logger) LoginFailed(r *http.Request, attemptedUsername, reason string) {
	l.Log(r, CategoryAuth, EventLoginFailed, false,
		zap.String("attempted_username", attemptedUsername), zap.String("failure_reason", reason))
}

// RateLimited logs a request refused by a per-IP limiter.
func (l *Logger) RateLimited(r *http.Request, limiter string) {
	l.Log(r, CategoryAuth, EventLoginRateLimited, false, zap.String("limiter", limiter))
}

// Logout logs a sign-out.
func (l *Logger) Logout(r *http.Request, accountID string) {
	l.Log(r, CategoryAuth, EventLogout, true, zap.String("account_id", accountID))
}

// Signup logs creation of an inactive citizen account.
func (l *Logger) Signup(r *http.Request, accountID primitive.ObjectID, username string) {
	l.Log(r, CategoryAuth, EventSignup, true, id("account_id", accountID), zap.String("username", username))
}

// VerificationCodeSent logs a code being issued.
func (l *Logger) VerificationCodeSent(r *http.Request, accountID primitive.ObjectID, resend bool) {
	l.Log(r, CategoryAuth, EventVerificationCodeSent, true, id("account_id", accountID), zap.Bool("resend", resend))
}

// VerificationEmailFailed logs an undelivered verification email.
func (l *Logger) VerificationEmailFailed(r *http.Request, accountID primitive.ObjectID, err error) {
	l.Log(r, CategoryAuth, EventVerificationEmailFail, false, id("account_id", accountID), zap.Error(err))
}

// VerificationFailed logs a wrong, expired or exhausted code.
func (l *Logger) VerificationFailed(r *http.Request, accountID primitive.ObjectID, reason string) {
	l.Log(r, CategoryAuth, EventVerificationCodeFail, false, id("account_id", accountID), zap.String("failure_reason", reason))
}

// AccountActivated logs a successful verification.
func (l *Logger) AccountActivated(r *http.Request, accountID primitive.ObjectID) {
	l.Log(r, CategoryAuth, EventAccountActivated, true, id("account_id", accountID))
}

// --- Complaint Events ---

// ComplaintCreated logs a citizen submission.
func (l *Logger) ComplaintCreated(r *http.Request, actorID, complaintID primitive.ObjectID, images int) {
	l.Log(r, CategoryComplaint, EventComplaintCreated, true,
		id("actor_id", actorID), id("complaint_id", complaintID), zap.Int("images", images))
}

// ComplaintDeleted logs an owner deletion.
func (l *Logger) ComplaintDeleted(r *http.Request, actorID, complaintID primitive.ObjectID) {
	l.Log(r, CategoryComplaint, EventComplaintDeleted, true, id("actor_id", actorID), id("complaint_id", complaintID))
}

// StatusChanged logs a workflow transition.
func (l *Logger) StatusChanged(r *http.Request, actorID, complaintID primitive.ObjectID, from, to string) {
	l.Log(r, CategoryComplaint, EventComplaintStatusChanged, true,
		id("actor_id", actorID), id("complaint_id", complaintID),
		zap.String("from", from), zap.String("to", to))
}

// PriorityAssigned logs a priority change from the board or the detail form.
func (l *Logger) PriorityAssigned(r *http.Request, actorID, complaintID primitive.ObjectID, from, to string) {
	l.Log(r, CategoryComplaint, EventPriorityAssigned, true,
		id("actor_id", actorID), id("complaint_id", complaintID),
		zap.String("from", from), zap.String("to", to))
}

// OrganizationAssigned logs routing a complaint. orgID nil means unassigned.
func (l *Logger) OrganizationAssigned(r *http.Request, actorID, complaintID primitive.ObjectID, orgID *primitive.ObjectID) {
	l.Log(r, CategoryComplaint, EventOrganizationAssigned, true,
		id("actor_id", actorID), id("complaint_id", complaintID), optID("organization_id", orgID))
}

// Answered logs a change of answer text.
func (l *Logger) Answered(r *http.Request, actorID, complaintID primitive.ObjectID) {
	l.Log(r, CategoryComplaint, EventComplaintAnswered, true, id("actor_id", actorID), id("complaint_id", complaintID))
}

// --- Admin Events ---

// Admin logs a management action on the target record.
func (l *Logger) Admin(r *http.Request, eventType string, actorID, targetID primitive.ObjectID, details map[string]string) {
	fields := []zap.Field{id("actor_id", actorID), id("target_id", targetID)}
	for k, v := range details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	l.Log(r, CategoryAdmin, eventType, true, fields...)
}
