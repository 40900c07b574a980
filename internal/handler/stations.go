package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
)

// StationsHandler serves station topology reads: tanks with live levels and
// nozzles with their meter indexes. Read-only — no service layer needed.
type StationsHandler struct {
	stationRepo repository.StationRepository
	tankRepo    repository.TankRepository
}

func NewStationsHandler(stationRepo repository.StationRepository, tankRepo repository.TankRepository) *StationsHandler {
	return &StationsHandler{stationRepo: stationRepo, tankRepo: tankRepo}
}

// List godoc
// @Summary      List active stations
// @Tags         stations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} model.Station
// @Router       /v1/stations [get]
func (h *StationsHandler) List(c *gin.Context) {
	stations, err := h.stationRepo.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stations)
}

// Tanks godoc
// @Summary      Tanks of a station
// @Tags         stations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Station UUID"
// @Success      200 {array} dto.TankResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/stations/{id}/tanks [get]
func (h *StationsHandler) Tanks(c *gin.Context) {
	stationID, ok := h.stationID(c)
	if !ok {
		return
	}
	tanks, err := h.tankRepo.ListByStation(c.Request.Context(), stationID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.TankResponse, 0, len(tanks))
	for i := range tanks {
		t := &tanks[i]
		out = append(out, dto.TankResponse{
			ID:           t.ID.String(),
			Name:         t.Name,
			FuelType:     string(t.FuelType),
			Capacity:     t.Capacity,
			CurrentLevel: t.CurrentLevel,
			Ullage:       t.Ullage(),
			Version:      t.Version,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Nozzles godoc
// @Summary      Nozzles of a station
// @Tags         stations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Station UUID"
// @Success      200 {array} dto.NozzleResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/stations/{id}/nozzles [get]
func (h *StationsHandler) Nozzles(c *gin.Context) {
	stationID, ok := h.stationID(c)
	if !ok {
		return
	}
	nozzles, err := h.tankRepo.ListNozzlesByStation(c.Request.Context(), stationID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.NozzleResponse, 0, len(nozzles))
	for i := range nozzles {
		n := &nozzles[i]
		resp := dto.NozzleResponse{
			ID:           n.ID.String(),
			Number:       n.Number,
			TankID:       n.TankID.String(),
			CurrentIndex: n.CurrentIndex,
		}
		if n.Pump != nil {
			resp.PumpNumber = n.Pump.Number
		}
		if n.Tank != nil {
			resp.FuelType = string(n.Tank.FuelType)
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

// stationID parses the path parameter and checks the station exists.
func (h *StationsHandler) stationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid station id"))
		return uuid.Nil, false
	}
	if _, err := h.stationRepo.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(apierror.CodeNotFound, "station not found"))
			return uuid.Nil, false
		}
		respondError(c, err)
		return uuid.Nil, false
	}
	return id, true
}
