package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

func price(fuel model.FuelType, amount int64, daysAgo int) model.FuelPrice {
	return model.FuelPrice{
		StationID:     uuid.Nil,
		FuelType:      fuel,
		Price:         decimal.NewFromInt(amount),
		EffectiveDate: time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestActivePrice_LatestEffectiveWins(t *testing.T) {
	now := time.Now().UTC()
	// Ordered by effective date descending, as the repository returns them.
	records := []model.FuelPrice{
		price(model.FuelGasoil, 780, 1),
		price(model.FuelGasoil, 750, 10),
		price(model.FuelGasoil, 700, 30),
	}

	got, ok := service.ActivePrice(records, model.FuelGasoil, now)
	require.True(t, ok)
	assert.Equal(t, "780", got.String())
}

func TestActivePrice_FuturePriceIgnored(t *testing.T) {
	now := time.Now().UTC()
	future := price(model.FuelGasoil, 900, 0)
	future.EffectiveDate = now.Add(24 * time.Hour)
	records := []model.FuelPrice{
		future,
		price(model.FuelGasoil, 750, 10),
	}

	got, ok := service.ActivePrice(records, model.FuelGasoil, now)
	require.True(t, ok)
	assert.Equal(t, "750", got.String())
}

func TestActivePrice_NoRecordForFuel(t *testing.T) {
	records := []model.FuelPrice{price(model.FuelGasoil, 750, 10)}

	_, ok := service.ActivePrice(records, model.FuelSuper, time.Now().UTC())
	assert.False(t, ok)
}

func TestResolveActivePrices_MissingFuelBlocks(t *testing.T) {
	stationID := uuid.New()
	tankRepo := newStubTankRepo()
	tankRepo.addTank(&model.Tank{
		StationID: stationID, Name: "T1", FuelType: model.FuelGasoil,
		Capacity: decimal.NewFromInt(20000),
	})
	tankRepo.addTank(&model.Tank{
		StationID: stationID, Name: "T2", FuelType: model.FuelSuper,
		Capacity: decimal.NewFromInt(15000),
	})

	priceRepo := newStubPriceRepo()
	require.NoError(t, priceRepo.Create(context.Background(), &model.FuelPrice{
		StationID: stationID, FuelType: model.FuelGasoil,
		Price: decimal.NewFromInt(750), EffectiveDate: time.Now().UTC().Add(-time.Hour),
	}))

	svc := service.NewPricingService(priceRepo, tankRepo)
	_, err := svc.ResolveActivePrices(context.Background(), stationID, time.Now().UTC())
	requireCode(t, err, apierror.CodeNoPriceConfigured)
}

func TestResolveActivePrices_SnapshotCoversStationFuels(t *testing.T) {
	stationID := uuid.New()
	tankRepo := newStubTankRepo()
	tankRepo.addTank(&model.Tank{
		StationID: stationID, Name: "T1", FuelType: model.FuelGasoil,
		Capacity: decimal.NewFromInt(20000),
	})

	priceRepo := newStubPriceRepo()
	require.NoError(t, priceRepo.Create(context.Background(), &model.FuelPrice{
		StationID: stationID, FuelType: model.FuelGasoil,
		Price: decimal.NewFromInt(750), EffectiveDate: time.Now().UTC().Add(-time.Hour),
	}))
	// Another station's price never leaks into the snapshot.
	require.NoError(t, priceRepo.Create(context.Background(), &model.FuelPrice{
		StationID: uuid.New(), FuelType: model.FuelGasoil,
		Price: decimal.NewFromInt(999), EffectiveDate: time.Now().UTC(),
	}))

	svc := service.NewPricingService(priceRepo, tankRepo)
	snapshot, err := svc.ResolveActivePrices(context.Background(), stationID, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "750", snapshot[model.FuelGasoil].String())
}
