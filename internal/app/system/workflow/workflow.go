// Package workflow holds the complaint lifecycle rules: which status
// transitions are allowed, who may make them, what must be true before a
// complaint is closed, and when a citizen may still withdraw a complaint.
//
// Every Apply* function validates the whole change before touching the
// complaint, so a rejected change leaves the record exactly as it was.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidStatus is returned for a status value outside the known set.
	ErrInvalidStatus = errors.New("unknown complaint status")
	// ErrInvalidPriority is returned for a priority value outside the known set.
	ErrInvalidPriority = errors.New("unknown complaint priority")
	// ErrInvalidTransition is returned when the target status cannot be reached
	// from the current one.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrStatusNotAllowed is returned when a moderator picks a status reserved
	// for administrators.
	ErrStatusNotAllowed = errors.New("status not available for this role")
	// ErrAnswerRequired is returned when closing without an answer.
	ErrAnswerRequired = errors.New("an answer is required to close a complaint")

	// ErrOrganizationAssigned blocks a citizen delete once the complaint has
	// been routed to an organization.
	ErrOrganizationAssigned = errors.New("complaint is already assigned to an organization")
	// ErrNotNew blocks a citizen delete once work on the complaint has started.
	ErrNotNew = errors.New("complaint is no longer new")
)

// FieldError ties a validation failure to the form field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// transitions lists the statuses reachable from each status. Keeping the
// current status is always allowed and is not listed.
var transitions = map[models.ComplaintStatus][]models.ComplaintStatus{
	models.StatusNew:        {models.StatusInProgress, models.StatusClosed, models.StatusRejected},
	models.StatusInProgress: {models.StatusClosed, models.StatusRejected},
	models.StatusClosed:     nil,
	models.StatusRejected:   nil,
}

// moderatorStatuses are the only targets a moderator may choose.
var moderatorStatuses = []models.ComplaintStatus{models.StatusInProgress, models.StatusClosed}

// ParseStatus converts form input into a known status.
func ParseStatus(s string) (models.ComplaintStatus, error) {
	st := models.ComplaintStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// ParsePriority converts form input into a known priority.
func ParsePriority(s string) (models.Priority, error) {
	p := models.Priority(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range models.Priorities {
		if p == known {
			return p, nil
		}
	}
	return "", ErrInvalidPriority
}

// CanTransition reports whether a complaint in status from may move to to.
func CanTransition(from, to models.ComplaintStatus) bool {
	if from == to {
		_, ok := transitions[from]
		return ok
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s models.ComplaintStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ModeratorStatuses returns the statuses a moderator may pick.
func ModeratorStatuses() []models.ComplaintStatus {
	out := make([]models.ComplaintStatus, len(moderatorStatuses))
	copy(out, moderatorStatuses)
	return out
}

// AdminUpdate is the full set of fields an administrator may change at once.
type AdminUpdate struct {
	Status         models.ComplaintStatus
	Priority       models.Priority
	OrganizationID *primitive.ObjectID
	AnswerText     string
}

// ModeratorUpdate is what a moderator of the assigned organization may change.
type ModeratorUpdate struct {
	Status     models.ComplaintStatus
	AnswerText string
}

// ApplyAdminUpdate validates and applies an administrator's edit.
// Organization assignment has no guard and may change in any status.
func ApplyAdminUpdate(c *models.Complaint, u AdminUpdate, now time.Time) error {
	if _, ok := transitions[u.Status]; !ok {
		return &FieldError{Field: "status", Err: ErrInvalidStatus}
	}
	if _, err := ParsePriority(string(u.Priority)); err != nil {
		return &FieldError{Field: "priority", Err: err}
	}
	if err := checkStatusChange(c, u.Status, u.AnswerText); err != nil {
		return err
	}

	c.Priority = u.Priority
	c.AssignedOrganizationID = u.OrganizationID
	applyStatus(c, u.Status, u.AnswerText, now)
	return nil
}

// ApplyModeratorUpdate validates and applies a moderator's edit. Scope (the
// complaint belonging to the moderator's organization) is checked by the
// caller before the complaint is loaded.
func ApplyModeratorUpdate(c *models.Complaint, u ModeratorUpdate, now time.Time) error {
	allowed := false
	for _, s := range moderatorStatuses {
		if u.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return &FieldError{Field: "status", Err: ErrStatusNotAllowed}
	}
	if err := checkStatusChange(c, u.Status, u.AnswerText); err != nil {
		return err
	}

	applyStatus(c, u.Status, u.AnswerText, now)
	return nil
}

// AssignPriority sets the priority on its own, leaving the status untouched.
func AssignPriority(c *models.Complaint, p models.Priority, now time.Time) error {
	if _, err := ParsePriority(string(p)); err != nil {
		return err
	}
	c.Priority = p
	c.UpdatedAt = now
	return nil
}

// CanDelete reports whether the owner may still withdraw the complaint.
// The organization check comes first so the caller can tell the two causes
// apart even when both apply.
func CanDelete(c models.Complaint) error {
	if c.AssignedOrganizationID != nil {
		return ErrOrganizationAssigned
	}
	if c.Status != models.StatusNew {
		return ErrNotNew
	}
	return nil
}

func checkStatusChange(c *models.Complaint, to models.ComplaintStatus, answer string) error {
	if !CanTransition(c.Status, to) {
		return &FieldError{Field: "status", Err: ErrInvalidTransition}
	}
	if to == models.StatusClosed && strings.TrimSpace(answer) == "" {
		return &FieldError{Field: "answer_text", Err: ErrAnswerRequired}
	}
	return nil
}

// applyStatus assumes checkStatusChange already passed. closed_at is stamped
// the first time the complaint enters closed and never moves afterwards.
func applyStatus(c *models.Complaint, to models.ComplaintStatus, answer string, now time.Time) {
	c.Status = to
	c.AnswerText = strings.TrimSpace(answer)
	if to == models.StatusClosed && c.ClosedAt == nil {
		t := now
		c.ClosedAt = &t
	}
	c.UpdatedAt = now
}
