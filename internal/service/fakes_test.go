package service_test

// In-memory repository stubs shared by the service tests. They mirror the
// storage semantics the services rely on: unique-key rejections, version
// compare-and-swap on tanks and the insert-if-absent idempotency claim.

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
)

// ── ShiftRepository stub ─────────────────────────────────────────────────────

type stubShiftRepo struct {
	shifts map[uuid.UUID]*model.Shift
}

func newStubShiftRepo() *stubShiftRepo {
	return &stubShiftRepo{shifts: make(map[uuid.UUID]*model.Shift)}
}

func (r *stubShiftRepo) DB() *gorm.DB { return nil }

func (r *stubShiftRepo) CreateTx(_ *gorm.DB, s *model.Shift) error {
	for _, existing := range r.shifts {
		if existing.StationID == s.StationID &&
			existing.ShiftDate.Equal(s.ShiftDate) &&
			existing.ShiftType == s.ShiftType {
			return repository.ErrDuplicateKey
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Sales {
		s.Sales[i].ID = uuid.New()
		s.Sales[i].ShiftID = s.ID
	}
	for i := range s.TankDips {
		s.TankDips[i].ID = uuid.New()
		s.TankDips[i].ShiftID = s.ID
	}
	cloned := cloneShift(s)
	r.shifts[s.ID] = cloned
	return nil
}

func (r *stubShiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	s, ok := r.shifts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneShift(s), nil
}

func (r *stubShiftRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Shift, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubShiftRepo) FindOpenByStation(_ context.Context, stationID uuid.UUID) (*model.Shift, error) {
	for _, s := range r.shifts {
		if s.StationID == stationID && s.Status == model.ShiftOpen {
			return cloneShift(s), nil
		}
	}
	return nil, nil
}

func (r *stubShiftRepo) FindOpenByStationTx(_ *gorm.DB, stationID uuid.UUID) (*model.Shift, error) {
	return r.FindOpenByStation(context.Background(), stationID)
}

func (r *stubShiftRepo) ExistsTx(_ *gorm.DB, stationID uuid.UUID, date time.Time, shiftType string) (bool, error) {
	for _, s := range r.shifts {
		if s.StationID == stationID && s.ShiftDate.Equal(date) && s.ShiftType == shiftType {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubShiftRepo) UpdateTx(_ *gorm.DB, s *model.Shift) error {
	stored, ok := r.shifts[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cloned := cloneShift(s)
	cloned.Sales = stored.Sales
	cloned.TankDips = stored.TankDips
	r.shifts[s.ID] = cloned
	return nil
}

func (r *stubShiftRepo) UpdateSaleTx(_ *gorm.DB, sale *model.Sale) error {
	stored, ok := r.shifts[sale.ShiftID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range stored.Sales {
		if stored.Sales[i].ID == sale.ID {
			stored.Sales[i] = *sale
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubShiftRepo) UpdateDipTx(_ *gorm.DB, dip *model.TankDip) error {
	stored, ok := r.shifts[dip.ShiftID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range stored.TankDips {
		if stored.TankDips[i].ID == dip.ID {
			stored.TankDips[i] = *dip
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubShiftRepo) ListClosed(_ context.Context, filter dto.ShiftFilter) ([]model.Shift, int64, error) {
	var out []model.Shift
	for _, s := range r.shifts {
		if s.Status == model.ShiftOpen {
			continue
		}
		if filter.StationID != "" && s.StationID.String() != filter.StationID {
			continue
		}
		out = append(out, *cloneShift(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShiftDate.After(out[j].ShiftDate) })
	return out, int64(len(out)), nil
}

func cloneShift(s *model.Shift) *model.Shift {
	cloned := *s
	cloned.Sales = append([]model.Sale(nil), s.Sales...)
	cloned.TankDips = append([]model.TankDip(nil), s.TankDips...)
	if s.PriceSnapshot != nil {
		cloned.PriceSnapshot = make(model.PriceSnapshot, len(s.PriceSnapshot))
		for k, v := range s.PriceSnapshot {
			cloned.PriceSnapshot[k] = v
		}
	}
	return &cloned
}

var _ repository.ShiftRepository = (*stubShiftRepo)(nil)

// ── TankRepository stub ──────────────────────────────────────────────────────

type stubTankRepo struct {
	tanks   map[uuid.UUID]*model.Tank
	nozzles []*model.Nozzle
}

func newStubTankRepo() *stubTankRepo {
	return &stubTankRepo{tanks: make(map[uuid.UUID]*model.Tank)}
}

func (r *stubTankRepo) addTank(t *model.Tank) *model.Tank {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.tanks[t.ID] = t
	return t
}

func (r *stubTankRepo) addNozzle(n *model.Nozzle) *model.Nozzle {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.nozzles = append(r.nozzles, n)
	return n
}

func (r *stubTankRepo) DB() *gorm.DB { return nil }

func (r *stubTankRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Tank, error) {
	t, ok := r.tanks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *t
	return &cloned, nil
}

func (r *stubTankRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Tank, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubTankRepo) ListByStation(_ context.Context, stationID uuid.UUID) ([]model.Tank, error) {
	var out []model.Tank
	for _, t := range r.tanks {
		if t.StationID == stationID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *stubTankRepo) ListNozzlesByStation(_ context.Context, stationID uuid.UUID) ([]model.Nozzle, error) {
	var out []model.Nozzle
	for _, n := range r.nozzles {
		if n.Tank != nil && n.Tank.StationID == stationID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *stubTankRepo) CompareAndSwapLevelTx(_ *gorm.DB, tankID uuid.UUID, newLevel decimal.Decimal, expectedVersion int64) (bool, error) {
	t, ok := r.tanks[tankID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if t.Version != expectedVersion {
		return false, nil
	}
	t.CurrentLevel = newLevel
	t.Version++
	return true, nil
}

func (r *stubTankRepo) UpdateNozzleIndexTx(_ *gorm.DB, nozzleID uuid.UUID, index decimal.Decimal) error {
	for _, n := range r.nozzles {
		if n.ID == nozzleID {
			n.CurrentIndex = index
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

var _ repository.TankRepository = (*stubTankRepo)(nil)

// ── DeliveryRepository stub ──────────────────────────────────────────────────

type stubDeliveryRepo struct {
	deliveries map[uuid.UUID]*model.FuelDelivery
}

func newStubDeliveryRepo() *stubDeliveryRepo {
	return &stubDeliveryRepo{deliveries: make(map[uuid.UUID]*model.FuelDelivery)}
}

func (r *stubDeliveryRepo) DB() *gorm.DB { return nil }

func (r *stubDeliveryRepo) Create(_ context.Context, d *model.FuelDelivery) error {
	for _, existing := range r.deliveries {
		if existing.BLNumber == d.BLNumber {
			return repository.ErrDuplicateKey
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cloned := cloneDelivery(d)
	r.deliveries[d.ID] = cloned
	return nil
}

func (r *stubDeliveryRepo) FindByID(_ context.Context, id uuid.UUID) (*model.FuelDelivery, error) {
	d, ok := r.deliveries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneDelivery(d), nil
}

func (r *stubDeliveryRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.FuelDelivery, error) {
	d, ok := r.deliveries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneDelivery(d), nil
}

func (r *stubDeliveryRepo) AddCompartmentTx(_ *gorm.DB, c *model.DeliveryCompartment) error {
	d, ok := r.deliveries[c.DeliveryID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	d.Compartments = append(d.Compartments, *c)
	return nil
}

func (r *stubDeliveryRepo) UpdateTx(_ *gorm.DB, d *model.FuelDelivery) error {
	stored, ok := r.deliveries[d.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cloned := cloneDelivery(d)
	cloned.Compartments = stored.Compartments
	r.deliveries[d.ID] = cloned
	return nil
}

func (r *stubDeliveryRepo) UpdateCompartmentTx(_ *gorm.DB, c *model.DeliveryCompartment) error {
	d, ok := r.deliveries[c.DeliveryID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range d.Compartments {
		if d.Compartments[i].ID == c.ID {
			d.Compartments[i] = *c
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubDeliveryRepo) SumReceivedBetweenTx(_ *gorm.DB, tankID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range r.deliveries {
		if d.Status != model.DeliveryCompleted || d.CompletedAt == nil {
			continue
		}
		if d.CompletedAt.Before(from) || d.CompletedAt.After(to) {
			continue
		}
		for i := range d.Compartments {
			comp := &d.Compartments[i]
			if comp.TankID == tankID && comp.ReceivedVolume != nil {
				total = total.Add(*comp.ReceivedVolume)
			}
		}
	}
	return total, nil
}

func cloneDelivery(d *model.FuelDelivery) *model.FuelDelivery {
	cloned := *d
	cloned.Compartments = append([]model.DeliveryCompartment(nil), d.Compartments...)
	return &cloned
}

var _ repository.DeliveryRepository = (*stubDeliveryRepo)(nil)

// ── IdempotencyRepository stub ───────────────────────────────────────────────

type stubIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*model.IdempotencyRecord
}

func newStubIdempotencyRepo() *stubIdempotencyRepo {
	return &stubIdempotencyRepo{records: make(map[string]*model.IdempotencyRecord)}
}

func idemKey(operation, key string) string { return operation + "|" + key }

func (r *stubIdempotencyRepo) Claim(_ context.Context, operation, key, subject string) (bool, *model.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[idemKey(operation, key)]; ok {
		cloned := *existing
		return false, &cloned, nil
	}
	rec := &model.IdempotencyRecord{
		ID:        uuid.New(),
		Operation: operation,
		Key:       key,
		Subject:   subject,
		Status:    model.IdempotencyInProgress,
	}
	r.records[idemKey(operation, key)] = rec
	return true, rec, nil
}

func (r *stubIdempotencyRepo) Complete(_ context.Context, operation, key string, response []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idemKey(operation, key)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = model.IdempotencyCompleted
	rec.Response = response
	return nil
}

func (r *stubIdempotencyRepo) Release(_ context.Context, operation, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, idemKey(operation, key))
	return nil
}

var _ repository.IdempotencyRepository = (*stubIdempotencyRepo)(nil)

// ── PriceRepository stub ─────────────────────────────────────────────────────

type stubPriceRepo struct {
	prices []model.FuelPrice
}

func newStubPriceRepo() *stubPriceRepo { return &stubPriceRepo{} }

func (r *stubPriceRepo) Create(_ context.Context, p *model.FuelPrice) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.prices = append(r.prices, *p)
	return nil
}

func (r *stubPriceRepo) ListByStation(_ context.Context, stationID uuid.UUID) ([]model.FuelPrice, error) {
	var out []model.FuelPrice
	for _, p := range r.prices {
		if p.StationID == stationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveDate.After(out[j].EffectiveDate) })
	return out, nil
}

var _ repository.PriceRepository = (*stubPriceRepo)(nil)

// ── ReplenishmentRepository stub ─────────────────────────────────────────────

type stubReplenishmentRepo struct {
	requests map[uuid.UUID]*model.ReplenishmentRequest
}

func newStubReplenishmentRepo() *stubReplenishmentRepo {
	return &stubReplenishmentRepo{requests: make(map[uuid.UUID]*model.ReplenishmentRequest)}
}

func (r *stubReplenishmentRepo) Create(_ context.Context, req *model.ReplenishmentRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	cloned := *req
	r.requests[req.ID] = &cloned
	return nil
}

func (r *stubReplenishmentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.ReplenishmentRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *req
	return &cloned, nil
}

func (r *stubReplenishmentRepo) Update(_ context.Context, req *model.ReplenishmentRequest) error {
	if _, ok := r.requests[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cloned := *req
	r.requests[req.ID] = &cloned
	return nil
}

func (r *stubReplenishmentRepo) ListByStation(_ context.Context, stationID uuid.UUID) ([]model.ReplenishmentRequest, error) {
	var out []model.ReplenishmentRequest
	for _, req := range r.requests {
		if req.StationID == stationID {
			out = append(out, *req)
		}
	}
	return out, nil
}

var _ repository.ReplenishmentRepository = (*stubReplenishmentRepo)(nil)
