package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
	"github.com/briceletutour/AlcomV4-sub002/internal/worker"
)

// opShiftClose namespaces close idempotency keys in storage.
const opShiftClose = "shift.close"

// A duplicate close that finds the key claimed but not yet completed waits
// this long for the winner's result before answering with a conflict.
const (
	claimPollAttempts = 4
	claimPollInterval = 150 * time.Millisecond
)

type ShiftService interface {
	Open(ctx context.Context, userID uuid.UUID, req dto.OpenShiftRequest) (*dto.ShiftResponse, error)
	// Close runs the full reconciliation and state transition. A non-empty
	// idempotencyKey makes retries safe: a completed close replays its stored
	// response, a concurrent duplicate gets a conflict.
	Close(ctx context.Context, userID, shiftID uuid.UUID, req dto.CloseShiftRequest, idempotencyKey string) (*dto.ShiftResponse, error)
	Current(ctx context.Context, stationID uuid.UUID) (*dto.ShiftResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ShiftResponse, error)
	List(ctx context.Context, filter dto.ShiftFilter) (*dto.ShiftListResponse, error)
	// Lock archives a CLOSED shift. LOCKED is terminal.
	Lock(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftResponse, error)
}

type shiftService struct {
	repo         repository.ShiftRepository
	tankRepo     repository.TankRepository
	deliveryRepo repository.DeliveryRepository
	idemRepo     repository.IdempotencyRepository
	pricing      PricingService
	tanks        TankService
	dispatcher   *worker.Dispatcher

	stockAlertThreshold decimal.Decimal
}

func NewShiftService(
	repo repository.ShiftRepository,
	tankRepo repository.TankRepository,
	deliveryRepo repository.DeliveryRepository,
	idemRepo repository.IdempotencyRepository,
	pricing PricingService,
	tanks TankService,
	dispatcher *worker.Dispatcher,
	stockAlertThreshold decimal.Decimal,
) ShiftService {
	return &shiftService{
		repo:                repo,
		tankRepo:            tankRepo,
		deliveryRepo:        deliveryRepo,
		idemRepo:            idemRepo,
		pricing:             pricing,
		tanks:               tanks,
		dispatcher:          dispatcher,
		stockAlertThreshold: stockAlertThreshold,
	}
}

// runTx wraps fn in a database transaction. A nil db (unit tests with
// in-memory repositories) runs fn directly with a nil tx.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Open ─────────────────────────────────────────────────────────────────────
// One transaction covering the guards and the insert:
//  1. no other OPEN shift at the station
//  2. (station, date, type) not already used — backed by the unique index
//  3. freeze the price snapshot
//  4. create sale rows from the nozzles' current indexes and dip rows from
//     the tanks' current levels

func (s *shiftService) Open(ctx context.Context, userID uuid.UUID, req dto.OpenShiftRequest) (*dto.ShiftResponse, error) {
	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "invalid station_id")
	}
	shiftDate, err := time.Parse("2006-01-02", req.ShiftDate)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "shift_date must be YYYY-MM-DD")
	}

	now := time.Now().UTC()
	snapshot, err := s.pricing.ResolveActivePrices(ctx, stationID, now)
	if err != nil {
		return nil, err
	}

	nozzles, err := s.tankRepo.ListNozzlesByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if len(nozzles) == 0 {
		return nil, apierror.BadRequest(apierror.CodeValidation, "station has no nozzles")
	}
	tanks, err := s.tankRepo.ListByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	shift := model.Shift{
		StationID:     stationID,
		ShiftDate:     shiftDate,
		ShiftType:     req.ShiftType,
		Status:        model.ShiftOpen,
		PriceSnapshot: snapshot,
		OpenedByID:    userID,
		OpenedAt:      now,
	}
	for _, n := range nozzles {
		fuel := n.Tank.FuelType
		shift.Sales = append(shift.Sales, model.Sale{
			NozzleID:     n.ID,
			TankID:       n.TankID,
			FuelType:     fuel,
			OpeningIndex: n.CurrentIndex,
			UnitPrice:    snapshot[fuel],
		})
	}
	for _, t := range tanks {
		shift.TankDips = append(shift.TankDips, model.TankDip{
			TankID:       t.ID,
			OpeningLevel: t.CurrentLevel,
		})
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		open, err := s.repo.FindOpenByStationTx(tx, stationID)
		if err != nil {
			return err
		}
		if open != nil {
			return apierror.BadRequest(apierror.CodePreviousShiftOpen,
				fmt.Sprintf("shift %s is still open, close it first", open.ID))
		}

		exists, err := s.repo.ExistsTx(tx, stationID, shiftDate, req.ShiftType)
		if err != nil {
			return err
		}
		if exists {
			return duplicateShift(req.ShiftDate, req.ShiftType)
		}

		if err := s.repo.CreateTx(tx, &shift); err != nil {
			// The unique index catches the race two concurrent opens slip
			// through the Exists check.
			if errors.Is(err, repository.ErrDuplicateKey) {
				return duplicateShift(req.ShiftDate, req.ShiftType)
			}
			return err
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("shift_id", shift.ID.String()).
		Str("station_id", stationID.String()).
		Str("shift_type", req.ShiftType).
		Msg("shift opened")
	return shiftToResponse(&shift), nil
}

func duplicateShift(date, shiftType string) *apierror.Error {
	return apierror.Conflict(apierror.CodeDuplicateShift,
		fmt.Sprintf("a %s shift already exists for %s", shiftType, date))
}

// ── Close ────────────────────────────────────────────────────────────────────

func (s *shiftService) Close(ctx context.Context, userID, shiftID uuid.UUID, req dto.CloseShiftRequest, idempotencyKey string) (*dto.ShiftResponse, error) {
	if idempotencyKey == "" {
		return s.close(ctx, userID, shiftID, req)
	}

	// Claim, or wait on whoever holds the claim. A duplicate arriving while
	// the first request is still executing polls for the winner's stored
	// result before giving up with a conflict; if the winner failed and
	// released its claim, a poll iteration wins the claim and executes.
	var claimed bool
	var existing *model.IdempotencyRecord
	for attempt := 0; ; attempt++ {
		var err error
		claimed, existing, err = s.idemRepo.Claim(ctx, opShiftClose, idempotencyKey, shiftID.String())
		if err != nil {
			return nil, err
		}
		if claimed {
			break
		}
		if existing.Subject != shiftID.String() {
			return nil, apierror.BadRequest(apierror.CodeValidation,
				fmt.Sprintf("idempotency key %s was already used for another shift", idempotencyKey))
		}
		if existing.Status == model.IdempotencyCompleted {
			var resp dto.ShiftResponse
			if err := json.Unmarshal(existing.Response, &resp); err != nil {
				return nil, err
			}
			log.Info().
				Str("shift_id", shiftID.String()).
				Str("idempotency_key", idempotencyKey).
				Msg("close replayed from idempotency record")
			return &resp, nil
		}
		if attempt >= claimPollAttempts {
			return nil, apierror.Conflict(apierror.CodeInProgress,
				"a close with this idempotency key is still in progress")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(claimPollInterval):
		}
	}

	resp, err := s.close(ctx, userID, shiftID, req)
	if err != nil {
		// Drop the claim so the client can retry with the same key.
		if relErr := s.idemRepo.Release(ctx, opShiftClose, idempotencyKey); relErr != nil {
			log.Error().Err(relErr).Str("idempotency_key", idempotencyKey).Msg("failed to release idempotency claim")
		}
		return nil, err
	}

	body, mErr := json.Marshal(resp)
	if mErr == nil {
		mErr = s.idemRepo.Complete(ctx, opShiftClose, idempotencyKey, body)
	}
	if mErr != nil {
		// The close itself committed — losing the replay record only costs a
		// conflict on a later retry, never a double close.
		log.Error().Err(mErr).Str("idempotency_key", idempotencyKey).Msg("failed to store idempotency response")
	}
	return resp, nil
}

// close runs the reconciliation engine. Everything — status transition, sale
// and dip computations, tank level CAS writes, nozzle index advances — commits
// in one transaction or not at all.
func (s *shiftService) close(ctx context.Context, userID, shiftID uuid.UUID, req dto.CloseShiftRequest) (*dto.ShiftResponse, error) {
	closingByNozzle, err := indexSubmissions(req.Sales)
	if err != nil {
		return nil, err
	}
	closingByTank, err := dipSubmissions(req.TankDips)
	if err != nil {
		return nil, err
	}

	closedAt := time.Now().UTC()
	var out *dto.ShiftResponse

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		shift, err := s.findForClose(ctx, tx, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != model.ShiftOpen {
			return apierror.Conflict(apierror.CodeShiftNotOpen,
				fmt.Sprintf("shift %s is %s, only OPEN shifts can be closed", shiftID, shift.Status))
		}

		if err := checkComplete(shift, closingByNozzle, closingByTank); err != nil {
			return err
		}

		// 1. Meter sales: volume and revenue per nozzle.
		totalRevenue := decimal.Zero
		volumeByTank := make(map[uuid.UUID]decimal.Decimal)
		for i := range shift.Sales {
			sale := &shift.Sales[i]
			closing := closingByNozzle[sale.NozzleID]
			volume := closing.Sub(sale.OpeningIndex)
			if volume.IsNegative() {
				return apierror.BadRequest(apierror.CodeInvalidMeterReading,
					fmt.Sprintf("nozzle %s closing index %s is below opening index %s",
						sale.NozzleID, closing, sale.OpeningIndex))
			}

			price, ok := shift.PriceSnapshot[sale.FuelType]
			if !ok {
				price = sale.UnitPrice
			}
			revenue := volume.Mul(price)

			sale.ClosingIndex = &closing
			sale.VolumeSold = &volume
			sale.UnitPrice = price
			sale.Revenue = &revenue

			totalRevenue = totalRevenue.Add(revenue)
			volumeByTank[sale.TankID] = volumeByTank[sale.TankID].Add(volume)
		}

		// 2. Dip reconciliation per tank. Deliveries completed inside the
		// shift window are part of the theoretical stock; variance magnitude
		// never blocks the close.
		totalStockVariance := decimal.Zero
		for i := range shift.TankDips {
			dip := &shift.TankDips[i]
			closing := closingByTank[dip.TankID]

			delivered, err := s.deliveryRepo.SumReceivedBetweenTx(tx, dip.TankID, shift.OpenedAt, closedAt)
			if err != nil {
				return err
			}
			theoretical := dip.OpeningLevel.Sub(volumeByTank[dip.TankID]).Add(delivered)
			variance := closing.Sub(theoretical)

			dip.ClosingLevel = &closing
			dip.TheoreticalStock = &theoretical
			dip.StockVariance = &variance
			totalStockVariance = totalStockVariance.Add(variance)
		}

		// 3. Cash reconciliation and the justification gate.
		theoreticalCash := totalRevenue.Sub(req.Cash.Expenses)
		cashVariance := req.Cash.Counted.Add(req.Cash.Card).Sub(theoreticalCash)
		if !cashVariance.IsZero() && (req.Justification == nil || strings.TrimSpace(*req.Justification) == "") {
			return apierror.BadRequest(apierror.CodeJustificationRequired,
				fmt.Sprintf("cash variance of %s requires a justification", cashVariance))
		}

		// 4. Persist the closed shift.
		shift.Status = model.ShiftClosed
		shift.TotalRevenue = &totalRevenue
		shift.TheoreticalCash = &theoreticalCash
		shift.CashCounted = &req.Cash.Counted
		shift.CardAmount = &req.Cash.Card
		shift.ExpensesAmount = &req.Cash.Expenses
		shift.CashVariance = &cashVariance
		shift.StockVariance = &totalStockVariance
		shift.Justification = req.Justification
		shift.ClosedByID = &userID
		shift.ClosedAt = &closedAt

		for i := range shift.Sales {
			if err := s.repo.UpdateSaleTx(tx, &shift.Sales[i]); err != nil {
				return err
			}
		}
		for i := range shift.TankDips {
			if err := s.repo.UpdateDipTx(tx, &shift.TankDips[i]); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateTx(tx, shift); err != nil {
			return err
		}

		// 5. Closing dips become the tank levels; nozzle meters advance. A
		// stale tank version rolls back the entire close.
		for i := range shift.TankDips {
			dip := &shift.TankDips[i]
			if _, err := s.tanks.UpdateLevelTx(tx, dip.TankID, *dip.ClosingLevel, nil); err != nil {
				return err
			}
		}
		for i := range shift.Sales {
			sale := &shift.Sales[i]
			if err := s.tankRepo.UpdateNozzleIndexTx(tx, sale.NozzleID, *sale.ClosingIndex); err != nil {
				return err
			}
		}

		out = shiftToResponse(shift)
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("shift_id", shiftID.String()).
		Str("cash_variance", out.CashVariance.String()).
		Str("stock_variance", out.StockVariance.String()).
		Msg("shift closed")
	s.enqueueCloseAlerts(ctx, out)
	return out, nil
}

// findForClose takes a row lock on the shift when a real transaction is in
// play so the status guard and the write see the same state.
func (s *shiftService) findForClose(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (*model.Shift, error) {
	var shift *model.Shift
	var err error
	if tx != nil {
		shift, err = s.repo.FindByIDForUpdate(tx, shiftID)
	} else {
		shift, err = s.repo.FindByID(ctx, shiftID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("shift not found")
		}
		return nil, err
	}
	return shift, nil
}

func indexSubmissions(entries []dto.CloseSaleEntry) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.NozzleID)
		if err != nil {
			return nil, apierror.BadRequest(apierror.CodeValidation, "invalid nozzle_id in sales")
		}
		out[id] = e.ClosingIndex
	}
	return out, nil
}

func dipSubmissions(entries []dto.CloseDipEntry) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.TankID)
		if err != nil {
			return nil, apierror.BadRequest(apierror.CodeValidation, "invalid tank_id in tank_dips")
		}
		out[id] = e.ClosingLevel
	}
	return out, nil
}

// checkComplete requires exactly the shift's nozzles and tanks — nothing
// missing, nothing extra. Reconciliation over a partial picture is worthless.
func checkComplete(shift *model.Shift, byNozzle, byTank map[uuid.UUID]decimal.Decimal) error {
	for i := range shift.Sales {
		if _, ok := byNozzle[shift.Sales[i].NozzleID]; !ok {
			return apierror.BadRequest(apierror.CodeIncompleteSubmission,
				fmt.Sprintf("missing closing index for nozzle %s", shift.Sales[i].NozzleID))
		}
	}
	if len(byNozzle) != len(shift.Sales) {
		return apierror.BadRequest(apierror.CodeIncompleteSubmission,
			"sales reference nozzles outside this shift")
	}
	for i := range shift.TankDips {
		if _, ok := byTank[shift.TankDips[i].TankID]; !ok {
			return apierror.BadRequest(apierror.CodeIncompleteSubmission,
				fmt.Sprintf("missing closing dip for tank %s", shift.TankDips[i].TankID))
		}
	}
	if len(byTank) != len(shift.TankDips) {
		return apierror.BadRequest(apierror.CodeIncompleteSubmission,
			"tank_dips reference tanks outside this shift")
	}
	return nil
}

// enqueueCloseAlerts pushes supervision alerts after a committed close.
// Best-effort: a full queue never unwinds the close.
func (s *shiftService) enqueueCloseAlerts(ctx context.Context, resp *dto.ShiftResponse) {
	if s.dispatcher == nil {
		return
	}

	if resp.StockVariance != nil && resp.StockVariance.Abs().GreaterThanOrEqual(s.stockAlertThreshold) {
		payload := worker.AlertPayload{
			Kind:      worker.AlertStockVariance,
			StationID: resp.StationID,
			ShiftID:   resp.ID,
			Subject:   fmt.Sprintf("Stock variance %s L on shift %s", resp.StockVariance, resp.ID),
			Body: fmt.Sprintf("Shift %s (%s %s) closed with a total stock variance of %s litres.",
				resp.ID, resp.ShiftDate, resp.ShiftType, resp.StockVariance),
		}
		if err := s.dispatcher.EnqueueAlert(ctx, payload); err != nil {
			log.Error().Err(err).Str("shift_id", resp.ID).Msg("failed to enqueue stock variance alert")
		}
	}

	if resp.CashVariance != nil && !resp.CashVariance.IsZero() {
		justification := ""
		if resp.Justification != nil {
			justification = *resp.Justification
		}
		payload := worker.AlertPayload{
			Kind:      worker.AlertCashVariance,
			StationID: resp.StationID,
			ShiftID:   resp.ID,
			Subject:   fmt.Sprintf("Cash variance %s on shift %s", resp.CashVariance, resp.ID),
			Body: fmt.Sprintf("Shift %s (%s %s) closed with a cash variance of %s. Justification: %s",
				resp.ID, resp.ShiftDate, resp.ShiftType, resp.CashVariance, justification),
		}
		if err := s.dispatcher.EnqueueAlert(ctx, payload); err != nil {
			log.Error().Err(err).Str("shift_id", resp.ID).Msg("failed to enqueue cash variance alert")
		}
	}
}

// ── Queries and locking ──────────────────────────────────────────────────────

func (s *shiftService) Current(ctx context.Context, stationID uuid.UUID) (*dto.ShiftResponse, error) {
	shift, err := s.repo.FindOpenByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, nil
	}
	return shiftToResponse(shift), nil
}

func (s *shiftService) Get(ctx context.Context, id uuid.UUID) (*dto.ShiftResponse, error) {
	shift, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("shift not found")
		}
		return nil, err
	}
	return shiftToResponse(shift), nil
}

func (s *shiftService) List(ctx context.Context, filter dto.ShiftFilter) (*dto.ShiftListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	shifts, total, err := s.repo.ListClosed(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		data = append(data, *shiftToResponse(&shifts[i]))
	}
	return &dto.ShiftListResponse{
		Data:  data,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *shiftService) Lock(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftResponse, error) {
	var out *dto.ShiftResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		shift, err := s.findForClose(ctx, tx, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != model.ShiftClosed {
			return apierror.Conflict(apierror.CodeInvalidTransition,
				fmt.Sprintf("shift %s is %s, only CLOSED shifts can be locked", shiftID, shift.Status))
		}
		shift.Status = model.ShiftLocked
		if err := s.repo.UpdateTx(tx, shift); err != nil {
			return err
		}
		out = shiftToResponse(shift)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("shift_id", shiftID.String()).Msg("shift locked")
	return out, nil
}

// ── Mapping ──────────────────────────────────────────────────────────────────

func shiftToResponse(s *model.Shift) *dto.ShiftResponse {
	resp := &dto.ShiftResponse{
		ID:              s.ID.String(),
		StationID:       s.StationID.String(),
		ShiftDate:       s.ShiftDate.Format("2006-01-02"),
		ShiftType:       s.ShiftType,
		Status:          s.Status,
		PriceSnapshot:   make(map[string]decimal.Decimal, len(s.PriceSnapshot)),
		TotalRevenue:    s.TotalRevenue,
		TheoreticalCash: s.TheoreticalCash,
		CashCounted:     s.CashCounted,
		CardAmount:      s.CardAmount,
		ExpensesAmount:  s.ExpensesAmount,
		CashVariance:    s.CashVariance,
		StockVariance:   s.StockVariance,
		Justification:   s.Justification,
		OpenedBy:        s.OpenedByID.String(),
		OpenedAt:        s.OpenedAt.Format(time.RFC3339),
	}
	for fuel, price := range s.PriceSnapshot {
		resp.PriceSnapshot[string(fuel)] = price
	}
	if s.ClosedByID != nil {
		closedBy := s.ClosedByID.String()
		resp.ClosedBy = &closedBy
	}
	if s.ClosedAt != nil {
		closedAt := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &closedAt
	}

	for i := range s.Sales {
		sale := &s.Sales[i]
		resp.Sales = append(resp.Sales, dto.SaleResponse{
			ID:           sale.ID.String(),
			NozzleID:     sale.NozzleID.String(),
			TankID:       sale.TankID.String(),
			FuelType:     string(sale.FuelType),
			OpeningIndex: sale.OpeningIndex,
			ClosingIndex: sale.ClosingIndex,
			VolumeSold:   sale.VolumeSold,
			UnitPrice:    sale.UnitPrice,
			Revenue:      sale.Revenue,
		})
	}
	for i := range s.TankDips {
		dip := &s.TankDips[i]
		resp.TankDips = append(resp.TankDips, dto.TankDipResponse{
			ID:               dip.ID.String(),
			TankID:           dip.TankID.String(),
			OpeningLevel:     dip.OpeningLevel,
			ClosingLevel:     dip.ClosingLevel,
			TheoreticalStock: dip.TheoreticalStock,
			StockVariance:    dip.StockVariance,
		})
	}
	return resp
}
