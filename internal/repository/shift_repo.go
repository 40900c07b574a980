package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

// ErrDuplicateKey is surfaced when a unique constraint rejects a write. The
// natural-key constraints (shift triple, BL number, idempotency key) are the
// authoritative duplicate checks — callers map this to a conflict error.
var ErrDuplicateKey = errors.New("duplicate key")

type ShiftRepository interface {
	// DB exposes the underlying handle so services can open one transaction
	// spanning shift, sale, dip and tank writes. Nil in unit tests.
	DB() *gorm.DB

	CreateTx(tx *gorm.DB, s *model.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	// FindByIDForUpdate re-reads the shift inside tx with a row lock so the
	// status guard and the close write see the same state.
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Shift, error)
	FindOpenByStation(ctx context.Context, stationID uuid.UUID) (*model.Shift, error)
	// FindOpenByStationTx is the open-time guard read, executed inside the
	// same transaction that creates the new shift.
	FindOpenByStationTx(tx *gorm.DB, stationID uuid.UUID) (*model.Shift, error)
	ExistsTx(tx *gorm.DB, stationID uuid.UUID, date time.Time, shiftType string) (bool, error)
	UpdateTx(tx *gorm.DB, s *model.Shift) error
	UpdateSaleTx(tx *gorm.DB, sale *model.Sale) error
	UpdateDipTx(tx *gorm.DB, dip *model.TankDip) error
	ListClosed(ctx context.Context, filter dto.ShiftFilter) ([]model.Shift, int64, error)
}

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) DB() *gorm.DB { return r.db }

func (r *shiftRepo) CreateTx(tx *gorm.DB, s *model.Shift) error {
	err := tx.Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Preload("Sales").
		Preload("TankDips").
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Sales").
		Preload("TankDips").
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByStation(ctx context.Context, stationID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Preload("Sales").
		Preload("TankDips").
		Where("station_id = ? AND status = ?", stationID, model.ShiftOpen).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByStationTx(tx *gorm.DB, stationID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := tx.Where("station_id = ? AND status = ?", stationID, model.ShiftOpen).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) ExistsTx(tx *gorm.DB, stationID uuid.UUID, date time.Time, shiftType string) (bool, error) {
	var count int64
	err := tx.Model(&model.Shift{}).
		Where("station_id = ? AND shift_date = ? AND shift_type = ?", stationID, date, shiftType).
		Count(&count).Error
	return count > 0, err
}

func (r *shiftRepo) UpdateTx(tx *gorm.DB, s *model.Shift) error {
	// Omit associations — sale and dip rows are written through their own
	// Update*Tx calls within the same transaction.
	return tx.Omit("Sales", "TankDips").Save(s).Error
}

func (r *shiftRepo) UpdateSaleTx(tx *gorm.DB, sale *model.Sale) error {
	return tx.Save(sale).Error
}

func (r *shiftRepo) UpdateDipTx(tx *gorm.DB, dip *model.TankDip) error {
	return tx.Save(dip).Error
}

func (r *shiftRepo) ListClosed(ctx context.Context, filter dto.ShiftFilter) ([]model.Shift, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Shift{}).
		Where("status IN ?", []string{model.ShiftClosed, model.ShiftLocked})
	if filter.StationID != "" {
		q = q.Where("station_id = ?", filter.StationID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var shifts []model.Shift
	err := q.Order("shift_date DESC, shift_type DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&shifts).Error
	return shifts, total, err
}
