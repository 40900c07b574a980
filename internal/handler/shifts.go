package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/middleware"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

type ShiftsHandler struct{ svc service.ShiftService }

func NewShiftsHandler(svc service.ShiftService) *ShiftsHandler { return &ShiftsHandler{svc: svc} }

// Open godoc
// @Summary      Open a shift
// @Description  Opens a shift for a station: freezes the price snapshot and captures opening meter indexes and tank dips.
// @Tags         shifts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.OpenShiftRequest true "Station, date and shift type"
// @Success      201  {object} dto.ShiftResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/shifts/open [post]
func (h *ShiftsHandler) Open(c *gin.Context) {
	var req dto.OpenShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Open(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary      Close a shift
// @Description  Runs the full reconciliation (meter sales, tank dips, cash) and transitions the shift to CLOSED in one transaction. Safe to retry with an Idempotency-Key header.
// @Tags         shifts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id              path   string                true  "Shift UUID"
// @Param        Idempotency-Key header string                false "Retry-safe close key"
// @Param        body            body   dto.CloseShiftRequest true  "Closing readings and cash declaration"
// @Success      200  {object} dto.ShiftResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/shifts/{id}/close [post]
func (h *ShiftsHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid shift id"))
		return
	}
	var req dto.CloseShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)
	idempotencyKey := c.GetHeader("Idempotency-Key")

	resp, err := h.svc.Close(c.Request.Context(), userID, id, req, idempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Current godoc
// @Summary      Current open shift
// @Description  Returns the station's OPEN shift, or null when none is open.
// @Tags         shifts
// @Produce      json
// @Security     BearerAuth
// @Param        station_id query string true "Station UUID"
// @Success      200 {object} dto.ShiftResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/shifts/current [get]
func (h *ShiftsHandler) Current(c *gin.Context) {
	stationID, err := uuid.Parse(c.Query("station_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid station_id"))
		return
	}
	resp, err := h.svc.Current(c.Request.Context(), stationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Shift detail
// @Tags         shifts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Shift UUID"
// @Success      200 {object} dto.ShiftResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/shifts/{id} [get]
func (h *ShiftsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid shift id"))
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary      List closed shifts
// @Tags         shifts
// @Produce      json
// @Security     BearerAuth
// @Param        station_id query string false "Station UUID"
// @Param        page       query int    false "Page (default 1)"
// @Param        limit      query int    false "Rows per page (default 20)"
// @Success      200 {object} dto.ShiftListResponse
// @Router       /v1/shifts [get]
func (h *ShiftsHandler) List(c *gin.Context) {
	var filter dto.ShiftFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, err.Error()))
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Lock godoc
// @Summary      Lock a closed shift
// @Description  Archives a CLOSED shift. LOCKED is terminal — no further writes.
// @Tags         shifts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Shift UUID"
// @Success      200 {object} dto.ShiftResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/shifts/{id}/lock [post]
func (h *ShiftsHandler) Lock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid shift id"))
		return
	}
	resp, err := h.svc.Lock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
