//go:build integration

package e2e

// Integration tests against real Postgres via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v
//
// The service-layer fakes deliberately do not implement transactional
// rollback or index arbitration, so everything the schema itself enforces is
// exercised here: the (station, date, type) unique index under concurrent
// opens, the BL-number unique index, all-or-nothing close when a tank write
// conflicts mid-transaction, and idempotent close replay.

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/infra"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

// ── Environment ──────────────────────────────────────────────────────────────

type testEnv struct {
	db *gorm.DB

	userID  uuid.UUID
	station model.Station
	tank    model.Tank
	nozzle  model.Nozzle

	shifts     service.ShiftService
	deliveries service.DeliveryService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("stationops_test"),
		tcPostgres.WithUsername("stationops"),
		tcPostgres.WithPassword("stationops"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)

	env := &testEnv{db: db, userID: uuid.New()}

	env.station = model.Station{Code: "ST-IT-1", Name: "Integration Station"}
	require.NoError(t, db.Create(&env.station).Error)

	env.tank = model.Tank{
		StationID:    env.station.ID,
		Name:         "T1",
		FuelType:     model.FuelGasoil,
		Capacity:     decimal.NewFromInt(20000),
		CurrentLevel: decimal.NewFromInt(5000),
	}
	require.NoError(t, db.Create(&env.tank).Error)

	pump := model.Pump{StationID: env.station.ID, Number: 1}
	require.NoError(t, db.Create(&pump).Error)

	env.nozzle = model.Nozzle{
		PumpID:       pump.ID,
		TankID:       env.tank.ID,
		Number:       1,
		CurrentIndex: decimal.NewFromInt(1000),
	}
	require.NoError(t, db.Create(&env.nozzle).Error)

	require.NoError(t, db.Create(&model.FuelPrice{
		StationID:     env.station.ID,
		FuelType:      model.FuelGasoil,
		Price:         decimal.NewFromInt(750),
		EffectiveDate: time.Now().UTC().Add(-24 * time.Hour),
	}).Error)

	tankRepo := repository.NewTankRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	idemRepo := repository.NewIdempotencyRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	pricing := service.NewPricingService(priceRepo, tankRepo)
	tanks := service.NewTankService(tankRepo)
	env.shifts = service.NewShiftService(
		shiftRepo, tankRepo, deliveryRepo, idemRepo, pricing, tanks, nil,
		decimal.NewFromInt(100),
	)
	env.deliveries = service.NewDeliveryService(
		deliveryRepo, tankRepo, tanks, nil, decimal.NewFromFloat(0.5),
	)
	return env
}

func (env *testEnv) openShift(t *testing.T) *dto.ShiftResponse {
	t.Helper()
	resp, err := env.shifts.Open(context.Background(), env.userID, dto.OpenShiftRequest{
		StationID: env.station.ID.String(),
		ShiftDate: time.Now().UTC().Format("2006-01-02"),
		ShiftType: model.ShiftMorning,
	})
	require.NoError(t, err)
	return resp
}

// balancedClose: 100 L at 750 all in cash, tank dipped at exactly the
// theoretical level.
func (env *testEnv) balancedClose() dto.CloseShiftRequest {
	return dto.CloseShiftRequest{
		Sales: []dto.CloseSaleEntry{
			{NozzleID: env.nozzle.ID.String(), ClosingIndex: decimal.NewFromInt(1100)},
		},
		TankDips: []dto.CloseDipEntry{
			{TankID: env.tank.ID.String(), ClosingLevel: decimal.NewFromInt(4900)},
		},
		Cash: dto.CashDeclaration{
			Counted:  decimal.NewFromInt(75000),
			Card:     decimal.Zero,
			Expenses: decimal.Zero,
		},
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

// Two simultaneous opens for the same (station, date, type): exactly one row
// exists afterwards, whichever of the guard read or the unique index turned
// the loser away.
func TestIntegration_ConcurrentOpensSingleWinner(t *testing.T) {
	env := setupTestEnv(t)

	req := dto.OpenShiftRequest{
		StationID: env.station.ID.String(),
		ShiftDate: time.Now().UTC().Format("2006-01-02"),
		ShiftType: model.ShiftMorning,
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.shifts.Open(context.Background(), env.userID, req)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		failures++
		var apiErr *apierror.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Contains(t,
			[]string{apierror.CodeDuplicateShift, apierror.CodePreviousShiftOpen},
			apiErr.Code)
	}
	assert.Equal(t, 1, failures)

	var count int64
	require.NoError(t, env.db.Model(&model.Shift{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// A tank version bump committed while the close transaction is in flight
// fails the compare-and-swap, and everything the close already wrote — the
// CLOSED status, sale rows, dip rows — rolls back with it.
func TestIntegration_CloseRollsBackOnTankConflict(t *testing.T) {
	env := setupTestEnv(t)
	opened := env.openShift(t)
	shiftID := uuid.MustParse(opened.ID)

	// Hold a row lock with an uncommitted version bump. The close's CAS
	// update queues behind it and re-evaluates against the bumped version
	// once this commits.
	blocker := env.db.Begin()
	require.NoError(t, blocker.Error)
	require.NoError(t, blocker.Model(&model.Tank{}).
		Where("id = ?", env.tank.ID).
		Update("version", gorm.Expr("version + 1")).Error)

	done := make(chan error, 1)
	go func() {
		_, err := env.shifts.Close(context.Background(), env.userID, shiftID, env.balancedClose(), "")
		done <- err
	}()

	// Give the close time to reach the tank write and block on the lock.
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, blocker.Commit().Error)

	err := <-done
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.CodeStaleVersion, apiErr.Code)

	var shift model.Shift
	require.NoError(t, env.db.Preload("Sales").Preload("TankDips").
		First(&shift, "id = ?", shiftID).Error)
	assert.Equal(t, model.ShiftOpen, shift.Status)
	assert.Nil(t, shift.ClosedAt)
	require.Len(t, shift.Sales, 1)
	assert.Nil(t, shift.Sales[0].ClosingIndex)
	require.Len(t, shift.TankDips, 1)
	assert.Nil(t, shift.TankDips[0].ClosingLevel)

	var tank model.Tank
	require.NoError(t, env.db.First(&tank, "id = ?", env.tank.ID).Error)
	assert.Equal(t, "5000", tank.CurrentLevel.String())
}

// A retried close with the same key replays the stored response from the
// idempotency table and leaves tank and nozzle state untouched.
func TestIntegration_IdempotentCloseReplay(t *testing.T) {
	env := setupTestEnv(t)
	opened := env.openShift(t)
	shiftID := uuid.MustParse(opened.ID)

	first, err := env.shifts.Close(context.Background(), env.userID, shiftID, env.balancedClose(), "it-close-1")
	require.NoError(t, err)
	assert.Equal(t, model.ShiftClosed, first.Status)

	second, err := env.shifts.Close(context.Background(), env.userID, shiftID, env.balancedClose(), "it-close-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalRevenue.String(), second.TotalRevenue.String())

	var tank model.Tank
	require.NoError(t, env.db.First(&tank, "id = ?", env.tank.ID).Error)
	assert.Equal(t, "4900", tank.CurrentLevel.String())
	assert.Equal(t, int64(1), tank.Version)

	var nozzle model.Nozzle
	require.NoError(t, env.db.First(&nozzle, "id = ?", env.nozzle.ID).Error)
	assert.Equal(t, "1100", nozzle.CurrentIndex.String())
}

// The BL-number unique index is the arbiter: the service has no pre-check,
// the second insert fails at the constraint and surfaces as a conflict.
func TestIntegration_DuplicateBLConstraint(t *testing.T) {
	env := setupTestEnv(t)

	req := dto.CreateDeliveryRequest{
		StationID: env.station.ID.String(),
		BLNumber:  "BL-IT-1",
		Supplier:  "Total",
		BLVolume:  decimal.NewFromInt(1000),
	}
	_, err := env.deliveries.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = env.deliveries.Create(context.Background(), req)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.CodeDuplicateBL, apiErr.Code)
}
