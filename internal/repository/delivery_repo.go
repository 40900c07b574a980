package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

type DeliveryRepository interface {
	DB() *gorm.DB

	Create(ctx context.Context, d *model.FuelDelivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FuelDelivery, error)
	// FindByIDForUpdateTx re-reads the delivery inside tx with a row lock so
	// the lifecycle guard and the writes it protects see the same state.
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.FuelDelivery, error)
	AddCompartmentTx(tx *gorm.DB, c *model.DeliveryCompartment) error
	UpdateTx(tx *gorm.DB, d *model.FuelDelivery) error
	UpdateCompartmentTx(tx *gorm.DB, c *model.DeliveryCompartment) error

	// SumReceivedBetweenTx totals the received volume delivered into a tank by
	// deliveries COMPLETED inside [from, to] — the additive term of the stock
	// variance formula.
	SumReceivedBetweenTx(tx *gorm.DB, tankID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

type deliveryRepo struct{ db *gorm.DB }

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository { return &deliveryRepo{db: db} }

func (r *deliveryRepo) DB() *gorm.DB { return r.db }

func (r *deliveryRepo) Create(ctx context.Context, d *model.FuelDelivery) error {
	err := r.db.WithContext(ctx).Create(d).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (r *deliveryRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.FuelDelivery, error) {
	var d model.FuelDelivery
	err := r.db.WithContext(ctx).
		Preload("Compartments").
		First(&d, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deliveryRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.FuelDelivery, error) {
	var d model.FuelDelivery
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Compartments").
		First(&d, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deliveryRepo) AddCompartmentTx(tx *gorm.DB, c *model.DeliveryCompartment) error {
	return tx.Create(c).Error
}

func (r *deliveryRepo) UpdateTx(tx *gorm.DB, d *model.FuelDelivery) error {
	return tx.Omit("Compartments").Save(d).Error
}

func (r *deliveryRepo) UpdateCompartmentTx(tx *gorm.DB, c *model.DeliveryCompartment) error {
	return tx.Save(c).Error
}

func (r *deliveryRepo) SumReceivedBetweenTx(tx *gorm.DB, tankID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&model.DeliveryCompartment{}).
		Select("SUM(delivery_compartments.received_volume)").
		Joins("JOIN fuel_deliveries ON fuel_deliveries.id = delivery_compartments.delivery_id").
		Where("delivery_compartments.tank_id = ?", tankID).
		Where("fuel_deliveries.status = ?", model.DeliveryCompleted).
		Where("fuel_deliveries.completed_at >= ? AND fuel_deliveries.completed_at <= ?", from, to).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
