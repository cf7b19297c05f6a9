// internal/app/features/moderator/types.go
package moderator

import (
	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
)

type dashboardData struct {
	viewdata.BaseVM
	Organization string
	Counts       reporting.StatusCounts
	Priorities   reporting.PriorityCounts
	Recent       []complaintview.Row
}

type listData struct {
	viewdata.BaseVM
	Status        string
	StatusOptions []workflow.Option
	Complaints    []complaintview.Row
	Page          paging.Page
}

type detailData struct {
	viewdata.BaseVM
	Complaint complaintview.Detail
}

type updateData struct {
	formutil.Base
	ID            string
	Title         string
	CurrentStatus string
	Status        string
	AnswerText    string
	Return        string
	StatusOptions []workflow.Option
}
