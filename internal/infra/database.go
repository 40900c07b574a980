package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx and runs
// AutoMigrate for the full schema. The unique indexes declared on the models
// (shift natural key, BL number, idempotency key) are the concurrency
// invariants — they must exist before the server takes traffic.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Unique-constraint violations become gorm.ErrDuplicatedKey, which the
		// repositories map to conflict errors.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return db, nil
}

// RunMigrations creates or updates all tables. Shared with tests that run
// against a live database.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Station{},
		&model.User{},
		&model.Tank{},
		&model.Pump{},
		&model.Nozzle{},
		&model.FuelPrice{},
		&model.Shift{},
		&model.Sale{},
		&model.TankDip{},
		&model.FuelDelivery{},
		&model.DeliveryCompartment{},
		&model.ReplenishmentRequest{},
		&model.IdempotencyRecord{},
	)
}
