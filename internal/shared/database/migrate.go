package database

import (
	"fmt"

	"bookingtms/internal/bookings"
	"bookingtms/internal/widgetconfig"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := MigrateExtensions(db); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}
	if err := db.AutoMigrate(
		&widgetconfig.Widget{},
		&bookings.Booking{},
	); err != nil {
		return err
	}
	if err := MigrateConstraints(db); err != nil {
		return fmt.Errorf("failed to add constraints: %w", err)
	}
	return nil
}
