// internal/app/features/moderator/handler.go
package moderator

import (
	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	pageSize      = 20
	recentCount   = 10
	dashboardPath = "/moderator/dashboard/"
	listPath      = "/moderator/complaints/"
	detailURL     = "/moderator/complaint/%s/"
)

// Handler serves an organization's complaint queue under /moderator.
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
