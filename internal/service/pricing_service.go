package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
)

type PricingService interface {
	// ResolveActivePrices freezes the active price of every fuel type sold at
	// the station into a snapshot. A fuel type without any price at or before
	// atTime blocks the caller (a shift cannot open unpriceable fuel).
	ResolveActivePrices(ctx context.Context, stationID uuid.UUID, atTime time.Time) (model.PriceSnapshot, error)
	CreatePrice(ctx context.Context, req dto.CreatePriceRequest) (*dto.PriceResponse, error)
	Board(ctx context.Context, stationID uuid.UUID, atTime time.Time) (*dto.PriceBoardResponse, error)
}

type pricingService struct {
	priceRepo repository.PriceRepository
	tankRepo  repository.TankRepository
}

func NewPricingService(priceRepo repository.PriceRepository, tankRepo repository.TankRepository) PricingService {
	return &pricingService{priceRepo: priceRepo, tankRepo: tankRepo}
}

// ActivePrice returns the price with the latest effective date <= atTime for
// the given fuel type. records must be ordered by effective date descending;
// the candidate list is passed explicitly — no hidden lookup state.
func ActivePrice(records []model.FuelPrice, fuel model.FuelType, atTime time.Time) (decimal.Decimal, bool) {
	for _, rec := range records {
		if rec.FuelType != fuel {
			continue
		}
		if !rec.EffectiveDate.After(atTime) {
			return rec.Price, true
		}
	}
	return decimal.Decimal{}, false
}

func (s *pricingService) ResolveActivePrices(ctx context.Context, stationID uuid.UUID, atTime time.Time) (model.PriceSnapshot, error) {
	tanks, err := s.tankRepo.ListByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if len(tanks) == 0 {
		return nil, apierror.BadRequest(apierror.CodeValidation, "station has no tanks")
	}

	records, err := s.priceRepo.ListByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	snapshot := make(model.PriceSnapshot)
	for _, tank := range tanks {
		if _, done := snapshot[tank.FuelType]; done {
			continue
		}
		price, ok := ActivePrice(records, tank.FuelType, atTime)
		if !ok {
			return nil, apierror.BadRequest(apierror.CodeNoPriceConfigured,
				fmt.Sprintf("no price configured for %s at %s", tank.FuelType, atTime.Format(time.RFC3339)))
		}
		snapshot[tank.FuelType] = price
	}
	return snapshot, nil
}

func (s *pricingService) CreatePrice(ctx context.Context, req dto.CreatePriceRequest) (*dto.PriceResponse, error) {
	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "invalid station_id")
	}
	effective, err := parseEffectiveDate(req.EffectiveDate)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "effective_date must be RFC 3339 or YYYY-MM-DD")
	}

	price := &model.FuelPrice{
		StationID:     stationID,
		FuelType:      model.FuelType(req.FuelType),
		Price:         req.Price,
		EffectiveDate: effective,
	}
	if err := s.priceRepo.Create(ctx, price); err != nil {
		return nil, err
	}
	return &dto.PriceResponse{
		ID:            price.ID.String(),
		StationID:     price.StationID.String(),
		FuelType:      string(price.FuelType),
		Price:         price.Price,
		EffectiveDate: price.EffectiveDate.Format(time.RFC3339),
	}, nil
}

func (s *pricingService) Board(ctx context.Context, stationID uuid.UUID, atTime time.Time) (*dto.PriceBoardResponse, error) {
	snapshot, err := s.ResolveActivePrices(ctx, stationID, atTime)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(snapshot))
	for fuel, price := range snapshot {
		prices[string(fuel)] = price
	}
	return &dto.PriceBoardResponse{
		StationID: stationID.String(),
		Prices:    prices,
		AsOf:      atTime.UTC().Format(time.RFC3339),
	}, nil
}

func parseEffectiveDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
