// internal/app/features/management/types.go
package management

import (
	"github.com/dalemusser/ekomurojaat/internal/app/features/shared/complaintview"
	complaintstore "github.com/dalemusser/ekomurojaat/internal/app/store/complaints"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/paging"
	"github.com/dalemusser/ekomurojaat/internal/app/system/reporting"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
)

type dashboardData struct {
	viewdata.BaseVM
	Counts        reporting.StatusCounts
	Priorities    reporting.PriorityCounts
	SuccessRate   float64
	TopRegions    []complaintstore.RegionCount
	Recent        []complaintview.Row
	Citizens      int64
	Moderators    int64
	Admins        int64
	Organizations int64
}

type complaintListData struct {
	viewdata.BaseVM
	Status          string
	Priority        string
	Region          string
	StatusOptions   []workflow.Option
	PriorityOptions []workflow.Option
	Regions         []models.Region
	Complaints      []complaintview.Row
	Page            paging.Page
}

type complaintDetailData struct {
	viewdata.BaseVM
	Complaint complaintview.Detail
	Terminal  bool
}

type complaintUpdateData struct {
	formutil.Base
	ID              string
	Title           string
	CurrentStatus   string
	Status          string
	Priority        string
	Organization    string
	AnswerText      string
	StatusOptions   []workflow.Option
	PriorityOptions []workflow.Option
	Organizations   []models.Organization
}

type priorityData struct {
	viewdata.BaseVM
	Filter          string
	Counts          reporting.PriorityCounts
	Total           int64
	PriorityOptions []workflow.Option
	Complaints      []complaintview.Row
	Page            paging.Page
}

type orgRow struct {
	ID         string
	Name       string
	Address    string
	Phone      string
	Email      string
	District   string
	Moderators int64
	Complaints int64
}

type organizationListData struct {
	viewdata.BaseVM
	Organizations []orgRow
	Page          paging.Page
}

type organizationFormData struct {
	formutil.Base
	ID        string
	IsEdit    bool
	Name      string
	Address   string
	Phone     string
	Email     string
	District  string
	Districts []districtOption
}

type organizationDeleteData struct {
	viewdata.BaseVM
	ID         string
	Name       string
	Moderators int64
	Complaints int64
}

// districtOption labels a district with its region for a flat select.
type districtOption struct {
	ID    string
	Label string
}

type userRow struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	Role         string
	Organization string
	IsActive     bool
	Joined       string
	LastLogin    string
}

type userListData struct {
	viewdata.BaseVM
	Query      string
	Role       string
	Roles      []string
	RoleCounts map[string]int64
	Users      []userRow
	Page       paging.Page
}

type userFormData struct {
	formutil.Base
	ID            string
	IsEdit        bool
	IsSelf        bool
	Username      string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	Role          string
	Organization  string
	IsActive      bool
	Roles         []string
	Organizations []models.Organization
}

type userDeleteData struct {
	viewdata.BaseVM
	ID         string
	Username   string
	Role       string
	Complaints int64
}

type regionRow struct {
	ID         string
	Name       string
	Districts  int64
	Complaints int64
}

type regionListData struct {
	formutil.Base
	Name    string
	Regions []regionRow
}

type districtRow struct {
	ID            string
	Name          string
	Complaints    int64
	Organizations int64
}

type regionDetailData struct {
	formutil.Base
	ID        string
	Name      string
	NewName   string
	Districts []districtRow
}
