package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/briceletutour/AlcomV4-sub002/internal/model"
)

type IdempotencyRepository interface {
	// Claim atomically inserts an in-progress record for (operation, key),
	// tagged with the subject the claim is about. claimed=true means this
	// caller won and must execute the operation. claimed=false returns the
	// existing record — either a completed result to replay or an in-progress
	// claim held by a concurrent request.
	Claim(ctx context.Context, operation, key, subject string) (claimed bool, existing *model.IdempotencyRecord, err error)

	// Complete stores the successful response against the claim.
	Complete(ctx context.Context, operation, key string, response []byte) error

	// Release drops the claim after a failed execution so the client can
	// retry with the same key.
	Release(ctx context.Context, operation, key string) error
}

type idempotencyRepo struct{ db *gorm.DB }

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepo{db: db}
}

func (r *idempotencyRepo) Claim(ctx context.Context, operation, key, subject string) (bool, *model.IdempotencyRecord, error) {
	rec := &model.IdempotencyRecord{
		Operation: operation,
		Key:       key,
		Subject:   subject,
		Status:    model.IdempotencyInProgress,
	}
	// Insert-if-absent on the unique (operation, key) index: the constraint is
	// the race arbiter, not a read-then-write check.
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, rec, nil
	}

	var existing model.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("operation = ? AND key = ?", operation, key).
		First(&existing).Error
	if err != nil {
		return false, nil, err
	}
	return false, &existing, nil
}

func (r *idempotencyRepo) Complete(ctx context.Context, operation, key string, response []byte) error {
	return r.db.WithContext(ctx).Model(&model.IdempotencyRecord{}).
		Where("operation = ? AND key = ?", operation, key).
		Updates(map[string]interface{}{
			"status":   model.IdempotencyCompleted,
			"response": response,
		}).Error
}

func (r *idempotencyRepo) Release(ctx context.Context, operation, key string) error {
	return r.db.WithContext(ctx).
		Where("operation = ? AND key = ?", operation, key).
		Delete(&model.IdempotencyRecord{}).Error
}
