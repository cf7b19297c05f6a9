// internal/app/features/citizen/handler.go
package citizen

import (
	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	listPageSize  = 10
	recentCount   = 5
	detailURL     = "/user/complaint/%s/"
	listPath      = "/user/complaints/"
	dashboardPath = "/user/dashboard/"
)

// DefaultMaxImages caps the images accepted with one complaint.
const DefaultMaxImages = 5

// Handler serves the citizen area under /user.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
	SessionMgr *auth.SessionManager
	Media      *imagestore.Store
	AuditLog   *auditlog.Logger
	MaxImages  int
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	media *imagestore.Store,
	audit *auditlog.Logger,
	maxImages int,
	logger *zap.Logger,
) *Handler {
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	return &Handler{
		DB:         db,
		Log:        logger,
		ErrLog:     errLog,
		SessionMgr: sessionMgr,
		Media:      media,
		AuditLog:   audit,
		MaxImages:  maxImages,
	}
}
