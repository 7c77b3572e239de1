package database

import (
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Map{},
		&models.MapInvitation{},
		&models.MapShare{},
		&models.MapPermissionLink{},
		&models.AuditLog{},
	)
}
