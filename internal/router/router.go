package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/config"
	"github.com/gatat123/studioo-backend-sub000/internal/database"
	"github.com/gatat123/studioo-backend-sub000/internal/handler"
	"github.com/gatat123/studioo-backend-sub000/internal/hub"
	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
	"github.com/gatat123/studioo-backend-sub000/internal/middleware"
	"github.com/gatat123/studioo-backend-sub000/internal/repository"
)

const clientTimeout = 5 * time.Second

// Setup wires the collaborators, the hub and the HTTP surface. The
// returned sweeper is started by the caller so shutdown ordering stays
// in main.
func Setup(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (*gin.Engine, *hub.Hub, *hub.Sweeper) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	m := metrics.New()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS("*"))
	r.Use(middleware.Metrics(m))

	// External collaborators
	resolver := client.NewAuthClient(cfg.Auth.ServiceURL, cfg.Services.UserServiceURL, cfg.Auth.SecretKey, clientTimeout, logger, m)
	oracle := client.NewMembershipClient(cfg.Services.ProjectServiceURL, cfg.Services.InternalAPIKey, clientTimeout, logger, m)
	activity := client.NewActivityClient(cfg.Services.ProjectServiceURL, cfg.Services.InternalAPIKey, clientTimeout, logger, m)
	notify := client.NewNotificationClient(cfg.Services.NotiServiceURL, cfg.Services.InternalAPIKey, clientTimeout, logger, m)

	// The mirror resolves its connection per call: when the database comes
	// up after a background retry, mirroring begins without a restart.
	mirror := repository.NewDeferredPresenceRepository(database.GetDB)

	collabHub := hub.New(hub.Options{
		Config:   cfg.Hub,
		Logger:   logger,
		Metrics:  m,
		Resolver: resolver,
		Oracle:   oracle,
		Activity: activity,
		Notify:   notify,
		Mirror:   mirror,
		Redis:    redisClient,
	})
	sweeper := hub.NewSweeper(collabHub)

	presenceHandler := handler.NewPresenceHandler(collabHub, logger)
	roomHandler := handler.NewRoomHandler(collabHub, logger)
	healthHandler := handler.NewHealthHandler(database.GetDB, redisClient)

	// Health endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.Server.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// WebSocket endpoint: authentication happens inside the handshake,
		// not through the REST auth middleware.
		api.GET("/ws", collabHub.HandleWebSocket)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(resolver))
		{
			authenticated.GET("/presence/online", presenceHandler.GetOnlineUsers)
			authenticated.GET("/presence/status/:userId", presenceHandler.GetUserStatus)
			authenticated.GET("/rooms/:topic/members", roomHandler.GetMembers)
		}
	}

	return r, collabHub, sweeper
}
