// internal/app/features/management/handler.go
package management

import (
	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	pageSize       = 20
	recentCount    = 10
	topRegionCount = 5

	dashboardPath     = "/dashboard/management/"
	complaintsPath    = "/dashboard/management/complaints/"
	complaintURL      = "/dashboard/management/complaint/%s/"
	priorityPath      = "/dashboard/management/priority/"
	organizationsPath = "/dashboard/management/organizations/"
	usersPath         = "/dashboard/management/users/"
	regionsPath       = "/dashboard/management/regions/"
	regionURL         = "/dashboard/management/regions/%s/"
)

// Handler serves the administrator area under /dashboard/management.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
	SessionMgr *auth.SessionManager
	Media      *imagestore.Store
	AuditLog   *auditlog.Logger
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	media *imagestore.Store,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		ErrLog:     errLog,
		SessionMgr: sessionMgr,
		Media:      media,
		AuditLog:   audit,
	}
}
