package complaintview

import (
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/metrics"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordUpdate audits and counts each field a staff edit changed.
func RecordUpdate(audit *auditlog.Logger, r *http.Request, actorID primitive.ObjectID, before, after models.Complaint) {
	if before.Status != after.Status {
		metrics.StatusTransitions.WithLabelValues(string(before.Status), string(after.Status)).Inc()
		audit.StatusChanged(r, actorID, after.ID, string(before.Status), string(after.Status))
	}
	if before.Priority != after.Priority {
		metrics.PriorityAssignments.WithLabelValues(string(after.Priority)).Inc()
		audit.PriorityAssigned(r, actorID, after.ID, string(before.Priority), string(after.Priority))
	}
	if !sameID(before.AssignedOrganizationID, after.AssignedOrganizationID) {
		audit.OrganizationAssigned(r, actorID, after.ID, after.AssignedOrganizationID)
	}
	if after.AnswerText != "" && before.AnswerText != after.AnswerText {
		audit.Answered(r, actorID, after.ID)
	}
}

func sameID(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
