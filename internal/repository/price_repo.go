package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

type PriceRepository interface {
	Create(ctx context.Context, p *model.FuelPrice) error
	// ListByStation returns the full price history of a station ordered by
	// effective date descending — the shape the pure resolver expects.
	ListByStation(ctx context.Context, stationID uuid.UUID) ([]model.FuelPrice, error)
}

type priceRepo struct{ db *gorm.DB }

func NewPriceRepository(db *gorm.DB) PriceRepository { return &priceRepo{db: db} }

func (r *priceRepo) Create(ctx context.Context, p *model.FuelPrice) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *priceRepo) ListByStation(ctx context.Context, stationID uuid.UUID) ([]model.FuelPrice, error) {
	var prices []model.FuelPrice
	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("effective_date DESC").
		Find(&prices).Error
	return prices, err
}
