package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

type DeliveriesHandler struct{ svc service.DeliveryService }

func NewDeliveriesHandler(svc service.DeliveryService) *DeliveriesHandler {
	return &DeliveriesHandler{svc: svc}
}

// Create godoc
// @Summary      Register a fuel delivery
// @Description  Registers a PENDING delivery against a bill-of-lading number. BL numbers are globally unique.
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateDeliveryRequest true "Delivery header"
// @Success      201  {object} dto.DeliveryResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/deliveries [post]
func (h *DeliveriesHandler) Create(c *gin.Context) {
	var req dto.CreateDeliveryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// AddCompartment godoc
// @Summary      Add a truck compartment
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                    true "Delivery UUID"
// @Param        body body dto.AddCompartmentRequest true "Target tank and BL volume"
// @Success      200  {object} dto.DeliveryResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/deliveries/{id}/compartments [post]
func (h *DeliveriesHandler) AddCompartment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid delivery id"))
		return
	}
	var req dto.AddCompartmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddCompartment(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Start godoc
// @Summary      Start unloading
// @Description  Snapshots opening dips from the current tank levels and moves the delivery to IN_PROGRESS.
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Delivery UUID"
// @Success      200 {object} dto.DeliveryResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/deliveries/{id}/start [post]
func (h *DeliveriesHandler) Start(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid delivery id"))
		return
	}
	resp, err := h.svc.Start(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Complete godoc
// @Summary      Complete a delivery
// @Description  Computes received volumes from closing dips, rewrites tank levels and moves the delivery to COMPLETED. Variance beyond tolerance flags the compartment, never blocks.
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                      true "Delivery UUID"
// @Param        body body dto.CompleteDeliveryRequest true "Closing dip per compartment"
// @Success      200  {object} dto.DeliveryResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/deliveries/{id}/complete [post]
func (h *DeliveriesHandler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid delivery id"))
		return
	}
	var req dto.CompleteDeliveryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Complete(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Delivery detail
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Delivery UUID"
// @Success      200 {object} dto.DeliveryResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/deliveries/{id} [get]
func (h *DeliveriesHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid delivery id"))
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
