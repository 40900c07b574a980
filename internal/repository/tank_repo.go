package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

type TankRepository interface {
	DB() *gorm.DB

	FindByID(ctx context.Context, id uuid.UUID) (*model.Tank, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Tank, error)
	ListByStation(ctx context.Context, stationID uuid.UUID) ([]model.Tank, error)
	ListNozzlesByStation(ctx context.Context, stationID uuid.UUID) ([]model.Nozzle, error)

	// CompareAndSwapLevelTx writes the new level iff the stored version still
	// matches expectedVersion, bumping version by one. Returns false (and no
	// write) when another writer got there first.
	CompareAndSwapLevelTx(tx *gorm.DB, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion int64) (bool, error)

	UpdateNozzleIndexTx(tx *gorm.DB, nozzleID uuid.UUID, index decimal.Decimal) error
}

type tankRepo struct{ db *gorm.DB }

func NewTankRepository(db *gorm.DB) TankRepository { return &tankRepo{db: db} }

func (r *tankRepo) DB() *gorm.DB { return r.db }

func (r *tankRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Tank, error) {
	var t model.Tank
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tankRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Tank, error) {
	var t model.Tank
	if err := tx.First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tankRepo) ListByStation(ctx context.Context, stationID uuid.UUID) ([]model.Tank, error) {
	var tanks []model.Tank
	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("name ASC").
		Find(&tanks).Error
	return tanks, err
}

func (r *tankRepo) ListNozzlesByStation(ctx context.Context, stationID uuid.UUID) ([]model.Nozzle, error) {
	var nozzles []model.Nozzle
	err := r.db.WithContext(ctx).
		Joins("JOIN pumps ON pumps.id = nozzles.pump_id").
		Where("pumps.station_id = ?", stationID).
		Preload("Pump").
		Preload("Tank").
		Order("pumps.number ASC, nozzles.number ASC").
		Find(&nozzles).Error
	return nozzles, err
}

func (r *tankRepo) CompareAndSwapLevelTx(tx *gorm.DB, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion int64) (bool, error) {
	res := tx.Model(&model.Tank{}).
		Where("id = ? AND version = ?", tankID, expectedVersion).
		Updates(map[string]interface{}{
			"current_level": newLevel,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *tankRepo) UpdateNozzleIndexTx(tx *gorm.DB, nozzleID uuid.UUID, index decimal.Decimal) error {
	return tx.Model(&model.Nozzle{}).
		Where("id = ?", nozzleID).
		Update("current_index", index).Error
}
