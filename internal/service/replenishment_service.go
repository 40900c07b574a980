package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/model"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
)

type ReplenishmentService interface {
	Create(ctx context.Context, userID uuid.UUID, req dto.CreateReplenishmentRequest) (*dto.ReplenishmentResponse, error)
	// Submit applies the ullage gate against the tank's level at submission
	// time — the level at draft creation is already stale.
	Submit(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error)
	Validate(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error)
	Order(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error)
	ListByStation(ctx context.Context, stationID uuid.UUID) ([]dto.ReplenishmentResponse, error)
}

type replenishmentService struct {
	repo     repository.ReplenishmentRepository
	tankRepo repository.TankRepository
}

func NewReplenishmentService(repo repository.ReplenishmentRepository, tankRepo repository.TankRepository) ReplenishmentService {
	return &replenishmentService{repo: repo, tankRepo: tankRepo}
}

func (s *replenishmentService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateReplenishmentRequest) (*dto.ReplenishmentResponse, error) {
	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "invalid station_id")
	}
	tankID, err := uuid.Parse(req.TankID)
	if err != nil {
		return nil, apierror.BadRequest(apierror.CodeValidation, "invalid tank_id")
	}

	tank, err := s.tankRepo.FindByID(ctx, tankID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("tank not found")
		}
		return nil, err
	}
	if tank.StationID != stationID {
		return nil, apierror.BadRequest(apierror.CodeValidation,
			"tank belongs to a different station")
	}

	request := &model.ReplenishmentRequest{
		StationID:       stationID,
		TankID:          tankID,
		RequestedVolume: req.RequestedVolume,
		Status:          model.ReplenishmentDraft,
		RequestedByID:   userID,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, err
	}
	return replenishmentToResponse(request), nil
}

func (s *replenishmentService) Submit(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error) {
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != model.ReplenishmentDraft {
		return nil, invalidReplenishmentTransition(request, "submitted", model.ReplenishmentDraft)
	}

	tank, err := s.tankRepo.FindByID(ctx, request.TankID)
	if err != nil {
		return nil, err
	}
	if request.RequestedVolume.GreaterThan(tank.Ullage()) {
		return nil, apierror.BadRequest(apierror.CodeUllageExceeded,
			fmt.Sprintf("requested %s L exceeds tank ullage of %s L",
				request.RequestedVolume, tank.Ullage()))
	}

	now := time.Now().UTC()
	request.Status = model.ReplenishmentSubmitted
	request.SubmittedAt = &now
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, err
	}

	log.Info().
		Str("replenishment_id", id.String()).
		Str("tank_id", request.TankID.String()).
		Msg("replenishment submitted")
	return replenishmentToResponse(request), nil
}

func (s *replenishmentService) Validate(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error) {
	return s.transition(ctx, id, model.ReplenishmentSubmitted, model.ReplenishmentValidated, "validated")
}

func (s *replenishmentService) Order(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error) {
	return s.transition(ctx, id, model.ReplenishmentValidated, model.ReplenishmentOrdered, "ordered")
}

func (s *replenishmentService) transition(ctx context.Context, id uuid.UUID, from, to, verb string) (*dto.ReplenishmentResponse, error) {
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != from {
		return nil, invalidReplenishmentTransition(request, verb, from)
	}
	request.Status = to
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, err
	}
	log.Info().Str("replenishment_id", id.String()).Str("status", to).Msg("replenishment " + verb)
	return replenishmentToResponse(request), nil
}

func (s *replenishmentService) ListByStation(ctx context.Context, stationID uuid.UUID) ([]dto.ReplenishmentResponse, error) {
	requests, err := s.repo.ListByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ReplenishmentResponse, 0, len(requests))
	for i := range requests {
		out = append(out, *replenishmentToResponse(&requests[i]))
	}
	return out, nil
}

func (s *replenishmentService) find(ctx context.Context, id uuid.UUID) (*model.ReplenishmentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("replenishment request not found")
		}
		return nil, err
	}
	return request, nil
}

func invalidReplenishmentTransition(r *model.ReplenishmentRequest, verb, expected string) *apierror.Error {
	return apierror.Conflict(apierror.CodeInvalidTransition,
		fmt.Sprintf("replenishment %s is %s, only %s requests can be %s", r.ID, r.Status, expected, verb))
}

func replenishmentToResponse(r *model.ReplenishmentRequest) *dto.ReplenishmentResponse {
	resp := &dto.ReplenishmentResponse{
		ID:              r.ID.String(),
		StationID:       r.StationID.String(),
		TankID:          r.TankID.String(),
		RequestedVolume: r.RequestedVolume,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.SubmittedAt != nil {
		submitted := r.SubmittedAt.Format(time.RFC3339)
		resp.SubmittedAt = &submitted
	}
	return resp
}
