package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/platform/health"
	"github.com/unitstay/service-booking/internal/platform/middleware"
	"github.com/unitstay/service-booking/internal/platform/response"
)

// RouterDeps collects what NewRouter wires together.
type RouterDeps struct {
	Logger  *zap.Logger
	Stays   *StayHandler
	Health  *health.Handler
	WriteMW []gin.HandlerFunc
}

// NewRouter builds the gin engine with the shared middleware stack and every route.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(deps.Logger),
		middleware.LoggerMiddleware(deps.Logger),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	deps.Health.RegisterRoutes(router)
	RegisterDocsRoutes(router)
	deps.Stays.RegisterRoutes(router, deps.WriteMW...)

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Not found")
	})
	return router
}
