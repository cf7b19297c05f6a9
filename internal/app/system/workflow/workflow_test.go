package workflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newComplaint(status models.ComplaintStatus) *models.Complaint {
	return &models.Complaint{
		ID:       primitive.NewObjectID(),
		Title:    "Overflowing bins",
		Status:   status,
		Priority: models.DefaultPriority,
		OwnerID:  primitive.NewObjectID(),
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.ComplaintStatus
		want     bool
	}{
		{models.StatusNew, models.StatusInProgress, true},
		{models.StatusNew, models.StatusClosed, true},
		{models.StatusNew, models.StatusRejected, true},
		{models.StatusNew, models.StatusNew, true},
		{models.StatusInProgress, models.StatusClosed, true},
		{models.StatusInProgress, models.StatusRejected, true},
		{models.StatusInProgress, models.StatusNew, false},
		{models.StatusClosed, models.StatusInProgress, false},
		{models.StatusClosed, models.StatusRejected, false},
		{models.StatusRejected, models.StatusNew, false},
		{models.StatusRejected, models.StatusClosed, false},
		{"bogus", "bogus", false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, workflow.CanTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, workflow.IsTerminal(models.StatusClosed))
	assert.True(t, workflow.IsTerminal(models.StatusRejected))
	assert.False(t, workflow.IsTerminal(models.StatusNew))
	assert.False(t, workflow.IsTerminal(models.StatusInProgress))
}

func TestApplyAdminUpdate_CloseWithoutAnswer_Rejected(t *testing.T) {
	c := newComplaint(models.StatusInProgress)
	before := *c

	err := workflow.ApplyAdminUpdate(c, workflow.AdminUpdate{
		Status:     models.StatusClosed,
		Priority:   models.PriorityHigh,
		AnswerText: "   ",
	}, time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrAnswerRequired))
	var fe *workflow.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "answer_text", fe.Field)
	assert.Equal(t, before, *c, "complaint must be unchanged after a rejected update")
}

func TestApplyModeratorUpdate_CloseWithoutAnswer_Rejected(t *testing.T) {
	c := newComplaint(models.StatusNew)

	err := workflow.ApplyModeratorUpdate(c, workflow.ModeratorUpdate{Status: models.StatusClosed}, time.Now())

	assert.ErrorIs(t, err, workflow.ErrAnswerRequired)
	assert.Nil(t, c.ClosedAt)
	assert.Equal(t, models.StatusNew, c.Status)
}

func TestApplyAdminUpdate_CloseStampsClosedAtOnce(t *testing.T) {
	c := newComplaint(models.StatusNew)
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, workflow.ApplyAdminUpdate(c, workflow.AdminUpdate{
		Status:     models.StatusClosed,
		Priority:   models.PriorityMedium,
		AnswerText: "Bins emptied.",
	}, first))
	require.NotNil(t, c.ClosedAt)
	assert.Equal(t, first, *c.ClosedAt)

	// Editing the answer later keeps the original timestamp.
	later := first.Add(48 * time.Hour)
	require.NoError(t, workflow.ApplyAdminUpdate(c, workflow.AdminUpdate{
		Status:     models.StatusClosed,
		Priority:   models.PriorityLow,
		AnswerText: "Bins emptied and area cleaned.",
	}, later))
	assert.Equal(t, first, *c.ClosedAt)
	assert.Equal(t, later, c.UpdatedAt)
	assert.Equal(t, "Bins emptied and area cleaned.", c.AnswerText)
}

func TestApplyAdminUpdate_ClosedIsTerminal(t *testing.T) {
	c := newComplaint(models.StatusClosed)
	now := time.Now()
	c.ClosedAt = &now
	c.AnswerText = "done"

	err := workflow.ApplyAdminUpdate(c, workflow.AdminUpdate{
		Status:   models.StatusInProgress,
		Priority: models.PriorityMedium,
	}, time.Now())

	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, models.StatusClosed, c.Status)
}

func TestApplyAdminUpdate_ReassignsOrganizationInAnyStatus(t *testing.T) {
	for _, st := range []models.ComplaintStatus{models.StatusNew, models.StatusInProgress, models.StatusRejected} {
		t.Run(string(st), func(t *testing.T) {
			c := newComplaint(st)
			org := primitive.NewObjectID()
			err := workflow.ApplyAdminUpdate(c, workflow.AdminUpdate{
				Status:         st,
				Priority:       models.PriorityMedium,
				OrganizationID: &org,
			}, time.Now())
			require.NoError(t, err)
			require.NotNil(t, c.AssignedOrganizationID)
			assert.Equal(t, org, *c.AssignedOrganizationID)
		})
	}
}

func TestApplyAdminUpdate_InvalidPriority(t *testing.T) {
	c := newComplaint(models.StatusNew)
	err := workflow.ApplyAdminUpdate(c, workflow.AdminUpdate{Status: models.StatusNew, Priority: "urgent"}, time.Now())
	assert.ErrorIs(t, err, workflow.ErrInvalidPriority)
}

func TestApplyModeratorUpdate_RejectsAdminOnlyStatuses(t *testing.T) {
	for _, st := range []models.ComplaintStatus{models.StatusNew, models.StatusRejected} {
		t.Run(string(st), func(t *testing.T) {
			c := newComplaint(models.StatusNew)
			err := workflow.ApplyModeratorUpdate(c, workflow.ModeratorUpdate{Status: st, AnswerText: "x"}, time.Now())
			assert.ErrorIs(t, err, workflow.ErrStatusNotAllowed)
		})
	}
}

func TestApplyModeratorUpdate_DoesNotTouchPriorityOrOrganization(t *testing.T) {
	c := newComplaint(models.StatusNew)
	org := primitive.NewObjectID()
	c.AssignedOrganizationID = &org
	c.Priority = models.PriorityHigh

	require.NoError(t, workflow.ApplyModeratorUpdate(c, workflow.ModeratorUpdate{
		Status:     models.StatusInProgress,
		AnswerText: "Crew dispatched",
	}, time.Now()))

	assert.Equal(t, models.StatusInProgress, c.Status)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Equal(t, org, *c.AssignedOrganizationID)
	assert.Nil(t, c.ClosedAt)
}

func TestAssignPriority(t *testing.T) {
	c := newComplaint(models.StatusInProgress)
	now := time.Now()

	require.NoError(t, workflow.AssignPriority(c, models.PriorityHigh, now))
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Equal(t, models.StatusInProgress, c.Status)

	assert.ErrorIs(t, workflow.AssignPriority(c, "critical", now), workflow.ErrInvalidPriority)
	assert.Equal(t, models.PriorityHigh, c.Priority)
}

func TestCanDelete(t *testing.T) {
	org := primitive.NewObjectID()
	tests := []struct {
		name   string
		status models.ComplaintStatus
		org    *primitive.ObjectID
		want   error
	}{
		{"new unassigned", models.StatusNew, nil, nil},
		{"new assigned", models.StatusNew, &org, workflow.ErrOrganizationAssigned},
		{"in progress unassigned", models.StatusInProgress, nil, workflow.ErrNotNew},
		{"in progress assigned", models.StatusInProgress, &org, workflow.ErrOrganizationAssigned},
		{"closed unassigned", models.StatusClosed, nil, workflow.ErrNotNew},
		{"rejected unassigned", models.StatusRejected, nil, workflow.ErrNotNew},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newComplaint(tc.status)
			c.AssignedOrganizationID = tc.org
			err := workflow.CanDelete(*c)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseStatusAndPriority(t *testing.T) {
	st, err := workflow.ParseStatus(" In_Progress ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, st)

	_, err = workflow.ParseStatus("archived")
	assert.ErrorIs(t, err, workflow.ErrInvalidStatus)

	p, err := workflow.ParsePriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, p)

	_, err = workflow.ParsePriority("")
	assert.ErrorIs(t, err, workflow.ErrInvalidPriority)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "In progress", workflow.StatusLabel(models.StatusInProgress))
	assert.Equal(t, "Not set", workflow.PriorityLabel(""))
	assert.Len(t, workflow.StatusOptions(workflow.ModeratorStatuses()), 2)
	assert.Len(t, workflow.PriorityOptions(), 3)
}
