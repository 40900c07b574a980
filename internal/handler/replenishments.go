package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/middleware"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

type ReplenishmentsHandler struct{ svc service.ReplenishmentService }

func NewReplenishmentsHandler(svc service.ReplenishmentService) *ReplenishmentsHandler {
	return &ReplenishmentsHandler{svc: svc}
}

// Create godoc
// @Summary      Draft a replenishment request
// @Tags         replenishments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateReplenishmentRequest true "Tank and requested volume"
// @Success      201  {object} dto.ReplenishmentResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/replenishments [post]
func (h *ReplenishmentsHandler) Create(c *gin.Context) {
	var req dto.CreateReplenishmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Submit godoc
// @Summary      Submit a draft request
// @Description  Applies the ullage gate against the tank's current level — requests that would overfill the tank are rejected.
// @Tags         replenishments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Request UUID"
// @Success      200 {object} dto.ReplenishmentResponse
// @Failure      400 {object} apierror.APIError
// @Failure      409 {object} apierror.APIError
// @Router       /v1/replenishments/{id}/submit [post]
func (h *ReplenishmentsHandler) Submit(c *gin.Context) {
	h.transition(c, h.svc.Submit)
}

// Validate godoc
// @Summary      Validate a submitted request
// @Tags         replenishments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Request UUID"
// @Success      200 {object} dto.ReplenishmentResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/replenishments/{id}/validate [post]
func (h *ReplenishmentsHandler) Validate(c *gin.Context) {
	h.transition(c, h.svc.Validate)
}

// Order godoc
// @Summary      Order a validated request
// @Tags         replenishments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Request UUID"
// @Success      200 {object} dto.ReplenishmentResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/replenishments/{id}/order [post]
func (h *ReplenishmentsHandler) Order(c *gin.Context) {
	h.transition(c, h.svc.Order)
}

// List godoc
// @Summary      List replenishment requests for a station
// @Tags         replenishments
// @Produce      json
// @Security     BearerAuth
// @Param        station_id query string true "Station UUID"
// @Success      200 {array} dto.ReplenishmentResponse
// @Router       /v1/replenishments [get]
func (h *ReplenishmentsHandler) List(c *gin.Context) {
	stationID, err := uuid.Parse(c.Query("station_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid station_id"))
		return
	}
	resp, err := h.svc.ListByStation(c.Request.Context(), stationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReplenishmentsHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*dto.ReplenishmentResponse, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid replenishment id"))
		return
	}
	resp, err := fn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
