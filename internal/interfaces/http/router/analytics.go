package router

import (
	"github.com/erp/analytics/internal/infrastructure/auth"
	"github.com/erp/analytics/internal/interfaces/http/handler"
	"github.com/erp/analytics/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// AnalyticsRoutesConfig holds the guards of the analytics API
type AnalyticsRoutesConfig struct {
	// JWTService authenticates every analytics route when set
	JWTService *auth.JWTService
	// TriggerLimiter throttles manual aggregation runs per user when set
	TriggerLimiter *middleware.RateLimiter
	Logger         *zap.Logger
}

// AnalyticsRoutes builds the /analytics route group.
// Reads need an authenticated user; a rebuild additionally needs the admin role.
func AnalyticsRoutes(h *handler.AnalyticsHandler, cfg AnalyticsRoutesConfig) *DomainGroup {
	g := NewDomainGroup("analytics", "/analytics")

	if cfg.JWTService != nil {
		jwtCfg := middleware.DefaultJWTConfig(cfg.JWTService)
		jwtCfg.Logger = cfg.Logger
		g.Use(middleware.JWTAuthMiddlewareWithConfig(jwtCfg))
	}

	g.GET("/overview", h.Overview).
		GET("/sales-trend", h.SalesTrend).
		GET("/by-warehouse", h.SalesByWarehouse).
		GET("/top-products", h.TopProducts).
		GET("/products/:id/catalog", h.ProductCatalog)

	etl := g.Group("etl", "/etl")
	if cfg.JWTService != nil {
		etl.Use(middleware.RequireRole(cfg.JWTService.AdminRole()))
	}
	if cfg.TriggerLimiter != nil {
		etl.Use(middleware.RateLimitByUser(cfg.TriggerLimiter))
	}
	etl.POST("/run", h.RunETL)

	return g
}
