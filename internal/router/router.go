package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"office-service/internal/config"
	"office-service/internal/handler"
	"office-service/internal/metrics"
	"office-service/internal/middleware"
)

// Setup wires the middleware chain and routes. Dependencies are constructed
// in main and injected here.
func Setup(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	validator middleware.TokenValidator,
	wsHandler *handler.WSHandler,
	presenceHandler *handler.PresenceHandler,
	officeHandler *handler.OfficeHandler,
	healthHandler *handler.HealthHandler,
	corsOrigins string,
) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(corsOrigins))
	r.Use(middleware.Metrics(m))

	// Health and metrics endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.Server.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// WebSocket endpoint validates its token itself, before upgrade
		api.GET("/ws", wsHandler.HandleOfficeWebSocket)

		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(validator))
		{
			authenticated.GET("/presence/:workspaceId", presenceHandler.GetOnlineUsers)
			authenticated.GET("/presence/:workspaceId/:userId", presenceHandler.GetUserStatus)
			authenticated.GET("/rooms/:workspaceId", officeHandler.GetRoom)
		}
	}

	return r
}
