package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/journeys-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// MigrateProcedures installs the plpgsql repair/delete/reset functions.
// Other dialects have no stored procedures and are skipped.
func MigrateProcedures(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, p := range procedures {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("install procedure %s: %w", p.name, err)
		}
	}
	return nil
}
