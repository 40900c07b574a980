package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
)

const casMaxRetries = 3

// TankService is the single choke point for tank level writes. Every level
// change — shift-close closing dips, delivery closing dips, manual
// corrections — goes through the version compare-and-swap here, so two
// concurrent writers can never silently overwrite each other.
type TankService interface {
	// UpdateLevelTx performs one CAS attempt inside the caller's transaction.
	// When expectedVersion is nil the current version is read first; a caller
	// that supplies a version asserts it saw that exact state. A lost race
	// returns a stale-version conflict, rolling back the caller's transaction.
	UpdateLevelTx(tx *gorm.DB, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion *int64) (*model.Tank, error)

	// UpdateLevel is the standalone variant for callers outside a wider
	// transaction. Without a caller-supplied version it retries a bounded
	// number of times; with one, a mismatch fails immediately.
	UpdateLevel(ctx context.Context, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion *int64) (*model.Tank, error)
}

type tankService struct {
	repo repository.TankRepository
}

func NewTankService(repo repository.TankRepository) TankService {
	return &tankService{repo: repo}
}

func (s *tankService) UpdateLevelTx(tx *gorm.DB, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion *int64) (*model.Tank, error) {
	tank, err := s.repo.FindByIDTx(tx, tankID)
	if err != nil {
		return nil, err
	}
	expected := tank.Version
	if expectedVersion != nil {
		if *expectedVersion != tank.Version {
			return nil, staleVersion(tankID)
		}
		expected = *expectedVersion
	}

	swapped, err := s.repo.CompareAndSwapLevelTx(tx, tankID, newLevel, expected)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, staleVersion(tankID)
	}

	tank.CurrentLevel = newLevel
	tank.Version = expected + 1
	return tank, nil
}

func (s *tankService) UpdateLevel(ctx context.Context, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion *int64) (*model.Tank, error) {
	attempts := 1
	if expectedVersion == nil {
		attempts = casMaxRetries
	}

	var tank *model.Tank
	for i := 0; i < attempts; i++ {
		err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			var txErr error
			tank, txErr = s.UpdateLevelTx(tx, tankID, newLevel, expectedVersion)
			return txErr
		})
		if err == nil {
			return tank, nil
		}
		if e := apierror.From(err); e.Code != apierror.CodeStaleVersion {
			return nil, err
		}
	}
	return nil, staleVersion(tankID)
}

func staleVersion(tankID uuid.UUID) *apierror.Error {
	return apierror.Conflict(apierror.CodeStaleVersion,
		fmt.Sprintf("tank %s was modified concurrently, re-read and retry", tankID))
}
