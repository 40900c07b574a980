package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/briceletutour/AlcomV4-sub002/internal/apierror"
	"github.com/briceletutour/AlcomV4-sub002/internal/dto"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
)

// PricesHandler serves price configuration and the cached price board.
type PricesHandler struct {
	svc      service.PricingService
	rdb      *redis.Client
	cacheTTL time.Duration
}

func NewPricesHandler(svc service.PricingService, rdb *redis.Client, cacheTTL time.Duration) *PricesHandler {
	return &PricesHandler{svc: svc, rdb: rdb, cacheTTL: cacheTTL}
}

func priceBoardKey(stationID string) string { return "prices:board:" + stationID }

// Create godoc
// @Summary      Register a price change
// @Description  Appends a price record effective from the given date. Already-open shifts keep their frozen snapshot.
// @Tags         prices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreatePriceRequest true "Fuel type, price and effective date"
// @Success      201  {object} dto.PriceResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/prices [post]
func (h *PricesHandler) Create(c *gin.Context) {
	var req dto.CreatePriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreatePrice(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	// Invalidate the cached board; the next read repopulates it.
	h.rdb.Del(c.Request.Context(), priceBoardKey(req.StationID))
	c.JSON(http.StatusCreated, resp)
}

// Board godoc
// @Summary      Active price board
// @Description  Returns the currently active price per fuel type for one station, cached in Redis.
// @Tags         prices
// @Produce      json
// @Security     BearerAuth
// @Param        station_id query string true "Station UUID"
// @Success      200 {object} dto.PriceBoardResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/prices/current [get]
func (h *PricesHandler) Board(c *gin.Context) {
	stationID, err := uuid.Parse(c.Query("station_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "invalid station_id"))
		return
	}
	ctx := c.Request.Context()
	cacheKey := priceBoardKey(stationID.String())

	if cached, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
		var resp dto.PriceBoardResponse
		if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	resp, err := h.svc.Board(ctx, stationID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	if data, jsonErr := json.Marshal(resp); jsonErr == nil {
		h.rdb.Set(ctx, cacheKey, data, h.cacheTTL)
	}
	c.JSON(http.StatusOK, resp)
}
