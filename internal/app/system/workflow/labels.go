package workflow

import "github.com/dalemusser/ekomurojaat/internal/domain/models"

var statusLabels = map[models.ComplaintStatus]string{
	models.StatusNew:        "New",
	models.StatusInProgress: "In progress",
	models.StatusClosed:     "Closed",
	models.StatusRejected:   "Rejected",
}

var priorityLabels = map[models.Priority]string{
	models.PriorityLow:    "Low",
	models.PriorityMedium: "Medium",
	models.PriorityHigh:   "High",
}

// StatusLabel returns the human-readable status name.
func StatusLabel(s models.ComplaintStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// PriorityLabel returns the human-readable priority name, or "Not set".
func PriorityLabel(p models.Priority) string {
	if p == "" {
		return "Not set"
	}
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

// Option is a value/label pair for select inputs.
type Option struct {
	Value string
	Label string
}

// StatusOptions returns select options for the given statuses.
func StatusOptions(statuses []models.ComplaintStatus) []Option {
	out := make([]Option, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Option{Value: string(s), Label: StatusLabel(s)})
	}
	return out
}

// PriorityOptions returns select options for every priority.
func PriorityOptions() []Option {
	out := make([]Option, 0, len(models.Priorities))
	for _, p := range models.Priorities {
		out = append(out, Option{Value: string(p), Label: PriorityLabel(p)})
	}
	return out
}
