// internal/app/features/citizen/types.go
package citizen

import (
	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
)

type dashboardData struct {
	viewdata.BaseVM
	Counts      reporting.StatusCounts
	SuccessRate float64
	Priorities  reporting.PriorityCounts
	Recent      []complaintview.Row
}

type listData struct {
	viewdata.BaseVM
	Complaints []complaintview.Row
	Page       paging.Page
}

type createData struct {
	formutil.Base
	Title       string
	Description string
	Region      string
	District    string
	Lat         string
	Lng         string
	MaxImages   int
	MaxImageMB  int64
	Regions     []models.Region
	Districts   []models.District
}

type detailData struct {
	viewdata.BaseVM
	Complaint complaintview.Detail
}

type deleteData struct {
	viewdata.BaseVM
	ID    string
	Title string
}

type profileData struct {
	viewdata.BaseVM
	Username  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Joined    string
	Counts    reporting.StatusCounts
}
