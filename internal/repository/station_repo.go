package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

type StationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Station, error)
	List(ctx context.Context) ([]model.Station, error)
}

type stationRepo struct{ db *gorm.DB }

func NewStationRepository(db *gorm.DB) StationRepository { return &stationRepo{db: db} }

func (r *stationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Station, error) {
	var s model.Station
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *stationRepo) List(ctx context.Context) ([]model.Station, error) {
	var stations []model.Station
	err := r.db.WithContext(ctx).Where("active = true").Order("code ASC").Find(&stations).Error
	return stations, err
}
