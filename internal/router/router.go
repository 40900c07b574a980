package router

import (
	"time"

	"github.com/briceletutour/AlcomV4-sub002/internal/config"
	"github.com/briceletutour/AlcomV4-sub002/internal/handler"
	"github.com/briceletutour/AlcomV4-sub002/internal/middleware"
	"github.com/briceletutour/AlcomV4-sub002/internal/repository"
	"github.com/briceletutour/AlcomV4-sub002/internal/service"
	"github.com/briceletutour/AlcomV4-sub002/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	stationRepo := repository.NewStationRepository(db)
	tankRepo := repository.NewTankRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	replenishmentRepo := repository.NewReplenishmentRepository(db)
	idemRepo := repository.NewIdempotencyRepository(db)

	// Worker dispatcher — injected into services that enqueue async alerts
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	pricingSvc := service.NewPricingService(priceRepo, tankRepo)
	tankSvc := service.NewTankService(tankRepo)
	shiftSvc := service.NewShiftService(
		shiftRepo, tankRepo, deliveryRepo, idemRepo, pricingSvc, tankSvc, dispatcher,
		decimal.NewFromFloat(cfg.StockVarianceAlertThreshold),
	)
	deliverySvc := service.NewDeliveryService(
		deliveryRepo, tankRepo, tankSvc, dispatcher,
		decimal.NewFromFloat(cfg.DeliveryVarianceTolerancePct),
	)
	replenishmentSvc := service.NewReplenishmentService(replenishmentRepo, tankRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	shiftsH := handler.NewShiftsHandler(shiftSvc)
	deliveriesH := handler.NewDeliveriesHandler(deliverySvc)
	replenishmentsH := handler.NewReplenishmentsHandler(replenishmentSvc)
	pricesH := handler.NewPricesHandler(pricingSvc, rdb, time.Duration(cfg.PriceCacheTTLMinutes)*time.Minute)
	stationsH := handler.NewStationsHandler(stationRepo, tankRepo)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		anyStaff := middleware.RequireRole("attendant", "manager", "admin")
		managers := middleware.RequireRole("manager", "admin")
		admins := middleware.RequireRole("admin")

		shifts := v1.Group("/shifts")
		{
			shifts.POST("/open", anyStaff, shiftsH.Open)
			shifts.POST("/:id/close", anyStaff, shiftsH.Close)
			shifts.GET("/current", anyStaff, shiftsH.Current)
			shifts.GET("", managers, shiftsH.List)
			shifts.GET("/:id", anyStaff, shiftsH.Get)
			shifts.POST("/:id/lock", admins, shiftsH.Lock)
		}

		deliveries := v1.Group("/deliveries", managers)
		{
			deliveries.POST("", deliveriesH.Create)
			deliveries.GET("/:id", deliveriesH.Get)
			deliveries.POST("/:id/compartments", deliveriesH.AddCompartment)
			deliveries.POST("/:id/start", deliveriesH.Start)
			deliveries.POST("/:id/complete", deliveriesH.Complete)
		}

		replenishments := v1.Group("/replenishments")
		{
			replenishments.POST("", managers, replenishmentsH.Create)
			replenishments.GET("", managers, replenishmentsH.List)
			replenishments.POST("/:id/submit", managers, replenishmentsH.Submit)
			replenishments.POST("/:id/validate", admins, replenishmentsH.Validate)
			replenishments.POST("/:id/order", admins, replenishmentsH.Order)
		}

		prices := v1.Group("/prices")
		{
			prices.POST("", admins, pricesH.Create)
			prices.GET("/current", anyStaff, pricesH.Board)
		}

		stations := v1.Group("/stations", anyStaff)
		{
			stations.GET("", stationsH.List)
			stations.GET("/:id/tanks", stationsH.Tanks)
			stations.GET("/:id/nozzles", stationsH.Nozzles)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
