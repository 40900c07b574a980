package service

import (
	"context"
	"errors"
	"fmt"
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

var hundred = decimal.NewFromInt(100)

type DeliveryService interface {
	Create(ctx context.Context, req dto.CreateDeliveryRequest) (*dto.DeliveryResponse, error)
	AddCompartment(ctx context.Context, deliveryID uuid.UUID, req dto.AddCompartmentRequest) (*dto.DeliveryResponse, error)
	// Start snapshots the opening dip of every target tank and moves the
	// delivery to IN_PROGRESS.
	Start(ctx context.Context, deliveryID uuid.UUID) (*dto.DeliveryResponse, error)
	// Complete computes received volumes and variances from the closing dips,
	// rewrites the tank levels and moves the delivery to COMPLETED — one
	// transaction. Variance beyond tolerance flags, never blocks.
	Complete(ctx context.Context, deliveryID uuid.UUID, req dto.CompleteDeliveryRequest) (*dto.DeliveryResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.DeliveryResponse, error)
}

type deliveryService struct {
	repo       repository.DeliveryRepository
	tankRepo   repository.TankRepository
	tanks      TankService
	dispatcher *worker.Dispatcher

	// tolerancePct is the |received − BL| / BL percentage past which a
	// compartment is flagged.
	tolerancePct decimal.Decimal
}

func NewDeliveryService(
	repo repository.DeliveryRepository,
	tankRepo repository.TankRepository,
	tanks TankService,
	dispatcher *worker.Dispatcher,
	tolerancePct decimal.Decimal,
) DeliveryService {
	return &deliveryService{
		repo:         repo,
		tankRepo:     tankRepo,
		tanks:        tanks,
		dispatcher:   dispatcher,
		tolerancePct: tolerancePct,
	}
}

func (s *deliveryService) Create(ctx context.Context, req dto.CreateDeliveryRequest) (*dto.DeliveryResponse, error) {
	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "invalid station_id")
	}

	delivery := &model.FuelDelivery{
		StationID: stationID,
		BLNumber:  req.BLNumber,
		Supplier:  req.Supplier,
		BLVolume:  req.BLVolume,
		Status:    model.DeliveryPending,
	}
	if err := s.repo.Create(ctx, delivery); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apierror.Conflict(apierror.CodeDuplicateBL,
				fmt.Sprintf("bill of lading %s is already registered", req.BLNumber))
		}
		return nil, err
	}

	log.Info().
		Str("delivery_id", delivery.ID.String()).
		Str("bl_number", req.BLNumber).
		Msg("delivery registered")
	return deliveryToResponse(delivery), nil
}

func (s *deliveryService) AddCompartment(ctx context.Context, deliveryID uuid.UUID, req dto.AddCompartmentRequest) (*dto.DeliveryResponse, error) {
	tankID, err := uuid.Parse(req.TankID)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "invalid tank_id")
	}

	var out *dto.DeliveryResponse
	// The PENDING guard must hold the delivery row lock, otherwise a
	// concurrent Start can commit between the check and the insert and leave
	// a compartment that never gets its opening dip snapshotted.
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		delivery, err := s.findForUpdate(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if delivery.Status != model.DeliveryPending {
			return apierror.Conflict(apierror.CodeInvalidTransition,
				fmt.Sprintf("delivery %s is %s, compartments can only be added while PENDING", deliveryID, delivery.Status))
		}

		tank, err := s.findTank(ctx, tx, tankID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.NotFound("tank not found")
			}
			return err
		}
		if tank.StationID != delivery.StationID {
			return apierror.BadRequest(apierror.CodeValidation,
				"tank belongs to a different station than the delivery")
		}

		compartment := &model.DeliveryCompartment{
			DeliveryID: deliveryID,
			TankID:     tankID,
			BLVolume:   req.BLVolume,
		}
		if err := s.repo.AddCompartmentTx(tx, compartment); err != nil {
			return err
		}

		delivery.Compartments = append(delivery.Compartments, *compartment)
		out = deliveryToResponse(delivery)
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return out, nil
}

func (s *deliveryService) Start(ctx context.Context, deliveryID uuid.UUID) (*dto.DeliveryResponse, error) {
	var out *dto.DeliveryResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		delivery, err := s.findForUpdate(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if delivery.Status != model.DeliveryPending {
			return apierror.Conflict(apierror.CodeInvalidTransition,
				fmt.Sprintf("delivery %s is %s, only PENDING deliveries can start", deliveryID, delivery.Status))
		}
		if len(delivery.Compartments) == 0 {
			return apierror.BadRequest(apierror.CodeIncompleteSubmission,
				"delivery has no compartments")
		}

		now := time.Now().UTC()
		for i := range delivery.Compartments {
			comp := &delivery.Compartments[i]
			tank, err := s.findTank(ctx, tx, comp.TankID)
			if err != nil {
				return err
			}
			opening := tank.CurrentLevel
			comp.OpeningDip = &opening
			if err := s.repo.UpdateCompartmentTx(tx, comp); err != nil {
				return err
			}
		}

		delivery.Status = model.DeliveryInProgress
		delivery.StartedAt = &now
		if err := s.repo.UpdateTx(tx, delivery); err != nil {
			return err
		}
		out = deliveryToResponse(delivery)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("delivery_id", deliveryID.String()).Msg("delivery started")
	return out, nil
}

func (s *deliveryService) Complete(ctx context.Context, deliveryID uuid.UUID, req dto.CompleteDeliveryRequest) (*dto.DeliveryResponse, error) {
	closingByCompartment := make(map[uuid.UUID]decimal.Decimal, len(req.ClosingDips))
	for rawID, dip := range req.ClosingDips {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, apierror.BadRequest(apierror.CodeValidation, "invalid compartment id in closing_dips")
		}
		closingByCompartment[id] = dip
	}

	var out *dto.DeliveryResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		delivery, err := s.findForUpdate(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if delivery.Status != model.DeliveryInProgress {
			return apierror.Conflict(apierror.CodeInvalidTransition,
				fmt.Sprintf("delivery %s is %s, only IN_PROGRESS deliveries can complete", deliveryID, delivery.Status))
		}

		for i := range delivery.Compartments {
			if _, ok := closingByCompartment[delivery.Compartments[i].ID]; !ok {
				return apierror.BadRequest(apierror.CodeIncompleteSubmission,
					fmt.Sprintf("missing closing dip for compartment %s", delivery.Compartments[i].ID))
			}
		}
		if len(closingByCompartment) != len(delivery.Compartments) {
			return apierror.BadRequest(apierror.CodeIncompleteSubmission,
				"closing_dips reference compartments outside this delivery")
		}

		now := time.Now().UTC()
		for i := range delivery.Compartments {
			comp := &delivery.Compartments[i]
			closing := closingByCompartment[comp.ID]
			if comp.OpeningDip == nil {
				return apierror.Conflict(apierror.CodeInvalidTransition,
					fmt.Sprintf("compartment %s has no opening dip recorded, the delivery cannot be completed", comp.ID))
			}
			received := closing.Sub(*comp.OpeningDip)
			if received.IsNegative() {
				return apierror.BadRequest(apierror.CodeInvalidDipReading,
					fmt.Sprintf("compartment %s closing dip %s is below opening dip %s",
						comp.ID, closing, *comp.OpeningDip))
			}

			variancePct := decimal.Zero
			if comp.BLVolume.IsPositive() {
				variancePct = received.Sub(comp.BLVolume).Div(comp.BLVolume).Mul(hundred).Round(2)
			}

			comp.ClosingDip = &closing
			comp.ReceivedVolume = &received
			comp.VariancePct = &variancePct
			comp.VarianceFlagged = variancePct.Abs().GreaterThan(s.tolerancePct)
			if err := s.repo.UpdateCompartmentTx(tx, comp); err != nil {
				return err
			}

			// The closing dip is the tank's new level.
			if _, err := s.tanks.UpdateLevelTx(tx, comp.TankID, closing, nil); err != nil {
				return err
			}
		}

		delivery.Status = model.DeliveryCompleted
		delivery.CompletedAt = &now
		if err := s.repo.UpdateTx(tx, delivery); err != nil {
			return err
		}
		out = deliveryToResponse(delivery)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("delivery_id", deliveryID.String()).Msg("delivery completed")
	s.enqueueVarianceAlerts(ctx, out)
	return out, nil
}

func (s *deliveryService) Get(ctx context.Context, id uuid.UUID) (*dto.DeliveryResponse, error) {
	delivery, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return deliveryToResponse(delivery), nil
}

func (s *deliveryService) find(ctx context.Context, id uuid.UUID) (*model.FuelDelivery, error) {
	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("delivery not found")
		}
		return nil, err
	}
	return delivery, nil
}

// findForUpdate reads the delivery under the transaction's row lock so
// lifecycle guards cannot race a concurrent transition.
func (s *deliveryService) findForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.FuelDelivery, error) {
	if tx == nil {
		return s.find(ctx, id)
	}
	delivery, err := s.repo.FindByIDForUpdateTx(tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("delivery not found")
		}
		return nil, err
	}
	return delivery, nil
}

func (s *deliveryService) findTank(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Tank, error) {
	if tx != nil {
		return s.tankRepo.FindByIDTx(tx, id)
	}
	return s.tankRepo.FindByID(ctx, id)
}

func (s *deliveryService) enqueueVarianceAlerts(ctx context.Context, resp *dto.DeliveryResponse) {
	if s.dispatcher == nil {
		return
	}
	for _, comp := range resp.Compartments {
		if !comp.VarianceFlagged {
			continue
		}
		payload := worker.AlertPayload{
			Kind:      worker.AlertDeliveryVariance,
			StationID: resp.StationID,
			Delivery:  resp.ID,
			Subject:   fmt.Sprintf("Delivery variance on BL %s", resp.BLNumber),
			Body: fmt.Sprintf("Compartment %s of delivery %s (BL %s) received %s L against %s L on the bill of lading (%s%%).",
				comp.ID, resp.ID, resp.BLNumber, comp.ReceivedVolume, comp.BLVolume, comp.VariancePct),
		}
		if err := s.dispatcher.EnqueueAlert(ctx, payload); err != nil {
			log.Error().Err(err).Str("delivery_id", resp.ID).Msg("failed to enqueue delivery variance alert")
		}
	}
}

func deliveryToResponse(d *model.FuelDelivery) *dto.DeliveryResponse {
	resp := &dto.DeliveryResponse{
		ID:        d.ID.String(),
		StationID: d.StationID.String(),
		BLNumber:  d.BLNumber,
		Supplier:  d.Supplier,
		BLVolume:  d.BLVolume,
		Status:    d.Status,
	}
	if d.StartedAt != nil {
		started := d.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &started
	}
	if d.CompletedAt != nil {
		completed := d.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	for i := range d.Compartments {
		comp := &d.Compartments[i]
		resp.Compartments = append(resp.Compartments, dto.CompartmentResponse{
			ID:              comp.ID.String(),
			TankID:          comp.TankID.String(),
			BLVolume:        comp.BLVolume,
			OpeningDip:      comp.OpeningDip,
			ClosingDip:      comp.ClosingDip,
			ReceivedVolume:  comp.ReceivedVolume,
			VariancePct:     comp.VariancePct,
			VarianceFlagged: comp.VarianceFlagged,
		})
	}
	return resp
}
