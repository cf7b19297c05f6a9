// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/ekomurojaat/internal/app/resources"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built: shared
// templates, the geographic seed and the bootstrap administrator.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	if appCfg.GeoSeedFile != "" {
		seed, err := loadGeoSeed(appCfg.GeoSeedFile)
		if err != nil {
			return err
		}
		if err := seedGeography(ctx, deps.MongoDatabase, seed, logger); err != nil {
			return fmt.Errorf("seed geography: %w", err)
		}
	}

	if appCfg.AdminUsername != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminUsername, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	return nil
}

// ensureAdmin creates the named account as an active administrator, or
// promotes and activates it when it already exists. An existing account
// keeps its password.
func ensureAdmin(ctx context.Context, deps DBDeps, username, email, password string, logger *zap.Logger) error {
	accounts := accountstore.New(deps.MongoDatabase)

	existing, err := accounts.GetByUsername(ctx, username)
	if errors.Is(err, mongo.ErrNoDocuments) {
		created, err := accounts.Create(ctx, models.Account{
			Username: username,
			Email:    email,
			Role:     models.RoleAdmin,
			IsActive: true,
		}, password)
		if err != nil {
			return err
		}
		logger.Info("created bootstrap admin", zap.String("username", created.Username))
		return nil
	}
	if err != nil {
		return err
	}

	if existing.Role == models.RoleAdmin && existing.IsActive {
		return nil
	}
	if email == "" {
		email = existing.Email
	}
	err = accounts.Update(ctx, existing.ID, accountstore.Update{
		Username:  existing.Username,
		Email:     email,
		FirstName: existing.FirstName,
		LastName:  existing.LastName,
		Phone:     existing.Phone,
		Role:      models.RoleAdmin,
		IsActive:  true,
	})
	if err != nil {
		return err
	}
	logger.Info("promoted bootstrap admin",
		zap.String("username", existing.Username),
		zap.String("previous_role", existing.Role))
	return nil
}
