// Package http wires the gin router for the analytics API.
package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"enforcement-analytics/internal/auth"
	"enforcement-analytics/internal/http/middleware"
	"enforcement-analytics/internal/metrics"
)

// NewRouter assembles the HTTP surface. The JWT gate is installed only
// when a parser is provided; health and metrics stay open either way.
func NewRouter(handler *Handler, parser *auth.Parser, environment string, log zerolog.Logger) *gin.Engine {
	if environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(middleware.Observe(log))

	router.GET("/healthz", handler.Healthz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	analytics := router.Group("/analytics")
	if parser != nil {
		analytics.Use(middleware.Auth(parser))
	}
	analytics.GET("/area-drilldown", handler.AreaDrilldown)
	analytics.GET("/route-risk", handler.RouteRisk)
	analytics.GET("/thresholds", handler.Thresholds)

	ml := analytics.Group("/ml")
	ml.GET("/patterns", handler.Patterns)
	ml.GET("/location/:gridId", handler.LocationProfile)

	return router
}
