package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

type deliveryFixture struct {
	stationID uuid.UUID
	tank      *model.Tank

	repo     *stubDeliveryRepo
	tankRepo *stubTankRepo
	svc      service.DeliveryService
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	f := &deliveryFixture{
		stationID: uuid.New(),
		repo:      newStubDeliveryRepo(),
		tankRepo:  newStubTankRepo(),
	}
	f.tank = f.tankRepo.addTank(&model.Tank{
		StationID:    f.stationID,
		Name:         "T1",
		FuelType:     model.FuelGasoil,
		Capacity:     decimal.NewFromInt(20000),
		CurrentLevel: decimal.NewFromInt(5000),
	})
	f.svc = service.NewDeliveryService(
		f.repo, f.tankRepo, service.NewTankService(f.tankRepo), nil,
		decimal.NewFromFloat(0.5),
	)
	return f
}

// started registers a delivery with one compartment and moves it to
// IN_PROGRESS, returning it with the opening dip snapshotted.
func (f *deliveryFixture) started(t *testing.T, blVolume int64) *dto.DeliveryResponse {
	t.Helper()
	created, err := f.svc.Create(context.Background(), dto.CreateDeliveryRequest{
		StationID: f.stationID.String(),
		BLNumber:  "BL-1001",
		Supplier:  "Total",
		BLVolume:  decimal.NewFromInt(blVolume),
	})
	require.NoError(t, err)

	id := uuid.MustParse(created.ID)
	_, err = f.svc.AddCompartment(context.Background(), id, dto.AddCompartmentRequest{
		TankID:   f.tank.ID.String(),
		BLVolume: decimal.NewFromInt(blVolume),
	})
	require.NoError(t, err)

	startedResp, err := f.svc.Start(context.Background(), id)
	require.NoError(t, err)
	return startedResp
}

func TestDelivery_DuplicateBLNumberRejected(t *testing.T) {
	f := newDeliveryFixture(t)

	req := dto.CreateDeliveryRequest{
		StationID: f.stationID.String(),
		BLNumber:  "BL-1001",
		Supplier:  "Total",
		BLVolume:  decimal.NewFromInt(1000),
	}
	_, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), req)
	requireCode(t, err, apierror.CodeDuplicateBL)
}

func TestDelivery_StartSnapshotsOpeningDips(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)

	assert.Equal(t, model.DeliveryInProgress, resp.Status)
	require.NotNil(t, resp.StartedAt)
	require.Len(t, resp.Compartments, 1)
	require.NotNil(t, resp.Compartments[0].OpeningDip)
	assert.Equal(t, "5000", resp.Compartments[0].OpeningDip.String())
}

func TestDelivery_StartRequiresCompartments(t *testing.T) {
	f := newDeliveryFixture(t)

	created, err := f.svc.Create(context.Background(), dto.CreateDeliveryRequest{
		StationID: f.stationID.String(),
		BLNumber:  "BL-2002",
		Supplier:  "Total",
		BLVolume:  decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = f.svc.Start(context.Background(), uuid.MustParse(created.ID))
	requireCode(t, err, apierror.CodeIncompleteSubmission)
}

func TestDelivery_CompleteExactVolume(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)
	id := uuid.MustParse(resp.ID)

	completed, err := f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			resp.Compartments[0].ID: decimal.NewFromInt(6000), // +1000 L
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryCompleted, completed.Status)
	comp := completed.Compartments[0]
	assert.Equal(t, "1000", comp.ReceivedVolume.String())
	assert.True(t, comp.VariancePct.IsZero())
	assert.False(t, comp.VarianceFlagged)

	// Tank level became the closing dip, version bumped by the CAS write.
	assert.Equal(t, "6000", f.tankRepo.tanks[f.tank.ID].CurrentLevel.String())
	assert.Equal(t, int64(1), f.tankRepo.tanks[f.tank.ID].Version)
}

func TestDelivery_CompleteVarianceBeyondToleranceFlagsButCompletes(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)
	id := uuid.MustParse(resp.ID)

	// 980 received against 1000 on the BL: −2% — flagged, never blocked.
	completed, err := f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			resp.Compartments[0].ID: decimal.NewFromInt(5980),
		},
	})
	require.NoError(t, err)

	comp := completed.Compartments[0]
	assert.Equal(t, model.DeliveryCompleted, completed.Status)
	assert.Equal(t, "980", comp.ReceivedVolume.String())
	assert.Equal(t, "-2", comp.VariancePct.String())
	assert.True(t, comp.VarianceFlagged)
}

func TestDelivery_CompleteNegativeReceivedRejected(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)
	id := uuid.MustParse(resp.ID)

	_, err := f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			resp.Compartments[0].ID: decimal.NewFromInt(4000), // below opening 5000
		},
	})
	requireCode(t, err, apierror.CodeInvalidDipReading)

	// Rolled back: still IN_PROGRESS, tank untouched.
	got, getErr := f.svc.Get(context.Background(), id)
	require.NoError(t, getErr)
	assert.Equal(t, model.DeliveryInProgress, got.Status)
	assert.Equal(t, "5000", f.tankRepo.tanks[f.tank.ID].CurrentLevel.String())
}

func TestDelivery_CompleteMissingClosingDipRejected(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)
	id := uuid.MustParse(resp.ID)

	_, err := f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			uuid.New().String(): decimal.NewFromInt(6000),
		},
	})
	requireCode(t, err, apierror.CodeIncompleteSubmission)
}

func TestDelivery_LifecycleTransitionsEnforced(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)
	id := uuid.MustParse(resp.ID)

	// IN_PROGRESS delivery cannot start again or take compartments.
	_, err := f.svc.Start(context.Background(), id)
	requireCode(t, err, apierror.CodeInvalidTransition)

	_, err = f.svc.AddCompartment(context.Background(), id, dto.AddCompartmentRequest{
		TankID:   f.tank.ID.String(),
		BLVolume: decimal.NewFromInt(500),
	})
	requireCode(t, err, apierror.CodeInvalidTransition)

	_, err = f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			resp.Compartments[0].ID: decimal.NewFromInt(6000),
		},
	})
	require.NoError(t, err)

	// COMPLETED is terminal.
	_, err = f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			resp.Compartments[0].ID: decimal.NewFromInt(6000),
		},
	})
	requireCode(t, err, apierror.CodeInvalidTransition)
}

func TestDelivery_CompleteRejectsCompartmentWithoutOpeningDip(t *testing.T) {
	f := newDeliveryFixture(t)
	resp := f.started(t, 1000)
	id := uuid.MustParse(resp.ID)

	// A compartment that slipped in around the start transition never got an
	// opening dip snapshotted. Completion must refuse it, not fault on the
	// missing reading.
	raced := model.DeliveryCompartment{
		ID:         uuid.New(),
		DeliveryID: id,
		TankID:     f.tank.ID,
		BLVolume:   decimal.NewFromInt(500),
	}
	stored := f.repo.deliveries[id]
	stored.Compartments = append(stored.Compartments, raced)

	_, err := f.svc.Complete(context.Background(), id, dto.CompleteDeliveryRequest{
		ClosingDips: map[string]decimal.Decimal{
			resp.Compartments[0].ID: decimal.NewFromInt(6000),
			raced.ID.String():       decimal.NewFromInt(6500),
		},
	})
	requireCode(t, err, apierror.CodeInvalidTransition)

	got, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryInProgress, got.Status)
}

func TestDelivery_CompartmentTankMustBelongToStation(t *testing.T) {
	f := newDeliveryFixture(t)
	otherTank := f.tankRepo.addTank(&model.Tank{
		StationID: uuid.New(), Name: "TX", FuelType: model.FuelDiesel,
		Capacity: decimal.NewFromInt(10000),
	})

	created, err := f.svc.Create(context.Background(), dto.CreateDeliveryRequest{
		StationID: f.stationID.String(),
		BLNumber:  "BL-3003",
		Supplier:  "Shell",
		BLVolume:  decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = f.svc.AddCompartment(context.Background(), uuid.MustParse(created.ID), dto.AddCompartmentRequest{
		TankID:   otherTank.ID.String(),
		BLVolume: decimal.NewFromInt(1000),
	})
	requireCode(t, err, apierror.CodeValidation)
}
