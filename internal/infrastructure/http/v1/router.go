// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"catalogue/internal/core/security"
	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/barcode"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
	"catalogue/internal/domain/stock"
	"catalogue/internal/infrastructure/http/v1/handlers"
	"catalogue/internal/infrastructure/http/v1/middleware"
	"catalogue/pkg/logger"
)

// RouterConfig holds the services exposed over HTTP.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	Cities       tenant.CityDirectory

	Catalogue *catalogue.Service
	Barcodes  *barcode.Detector
	Stock     *stock.Service
	Feed      handlers.FeedApplier
	Messages  pricefeed.MessageLookup

	// HealthChecks are pinged by /health/ready.
	HealthChecks map[string]handlers.Pinger
	// HealthInfo adds runtime details to /health/info.
	HealthInfo func() map[string]any

	// Development keeps gin in debug mode.
	Development bool
}

// NewRouter creates and configures the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// ErrorHandler wraps Recovery so a recovered panic still gets an error body.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	health := handlers.NewHealthHandler(cfg.HealthChecks, cfg.HealthInfo)
	hg := router.Group("/health")
	{
		hg.GET("/live", health.Live)
		hg.GET("/ready", health.Ready)
		hg.GET("/info", health.Info)
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")

	registerStorefrontRoutes(v1, base, cfg)
	registerCMSRoutes(v1, base, cfg)
	registerFeedRoutes(v1, base, cfg)

	return router
}

func registerStorefrontRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Catalogue == nil {
		return
	}
	h := handlers.NewCatalogueHandler(base, cfg.Catalogue)
	storefront := rg.Group("")
	storefront.Use(middleware.Scope(cfg.Cities))
	storefront.GET("/catalogue/*filter", h.List)
}

func registerCMSRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	cms := rg.Group("/cms")
	cms.Use(middleware.Auth(cfg.JWTValidator))

	if cfg.Barcodes != nil {
		h := handlers.NewBarcodeHandler(base, cfg.Barcodes)
		check := middleware.RequirePermission(security.PermissionBarcodeCheck)
		cms.POST("/barcodes/collisions", check, h.CatalogueCollisions)
		cms.POST("/outlets/:outletId/barcodes/collisions", check, h.OutletCollisions)
	}

	if cfg.Stock != nil {
		h := handlers.NewStockHandler(base, cfg.Stock)
		write := middleware.RequirePermission(security.PermissionStockWrite)
		cms.POST("/stock", write, h.Admit)
		cms.POST("/stock/:id/archive", write, h.Archive)
		cms.POST("/products/:id/recompute", middleware.RequirePermission(security.PermissionProductRecompute), h.Recompute)
		cms.POST("/outlets/:outletId/deactivate", middleware.RequirePermission(security.PermissionOutletDeactivate), h.DeactivateOutlet)
	}
}

// Feed requests authenticate with the outlet token in the body.
func registerFeedRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Feed == nil {
		return
	}
	h := handlers.NewFeedHandler(base, cfg.Feed, cfg.Messages)
	rg.POST("/feed/prices", h.Prices)
}
