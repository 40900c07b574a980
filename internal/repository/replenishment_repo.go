package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

type ReplenishmentRepository interface {
	Create(ctx context.Context, r *model.ReplenishmentRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ReplenishmentRequest, error)
	Update(ctx context.Context, r *model.ReplenishmentRequest) error
	ListByStation(ctx context.Context, stationID uuid.UUID) ([]model.ReplenishmentRequest, error)
}

type replenishmentRepo struct{ db *gorm.DB }

func NewReplenishmentRepository(db *gorm.DB) ReplenishmentRepository {
	return &replenishmentRepo{db: db}
}

func (r *replenishmentRepo) Create(ctx context.Context, req *model.ReplenishmentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *replenishmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ReplenishmentRequest, error) {
	var req model.ReplenishmentRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *replenishmentRepo) Update(ctx context.Context, req *model.ReplenishmentRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *replenishmentRepo) ListByStation(ctx context.Context, stationID uuid.UUID) ([]model.ReplenishmentRequest, error) {
	var reqs []model.ReplenishmentRequest
	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}
