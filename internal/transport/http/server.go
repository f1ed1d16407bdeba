package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/blob"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Deps groups the services the HTTP layer routes to.
type Deps struct {
	Hub      *core.Hub
	Auth     *auth.Service
	Store    store.Store
	Blobs    *blob.Store
	Gatherer prometheus.Gatherer
}

// NewServer builds an HTTP server with REST, attachment, metrics and websocket routes.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter mounts the websocket endpoint next to the gin engine serving every
// other route. The upgrade needs the raw ResponseWriter, so /ws stays outside gin.
func NewRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Auth, cfg.Realtime, logger))
	mux.Handle("/", newEngine(deps, cfg, logger))
	return mux
}

func newEngine(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiHandlers := NewAPIHandlers(deps.Auth, logger)
	roomHandlers := NewRoomHandlers(deps.Store, deps.Hub, logger)
	attachmentHandlers := NewAttachmentHandlers(deps.Blobs, logger)

	api := router.Group("/api")
	{
		authLimit := RateLimitMiddleware(newLimiterPool(cfg.AuthLimit))
		api.POST("/register", authLimit, apiHandlers.Register)
		api.POST("/login", authLimit, apiHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.Auth, logger))
		{
			protected.POST("/rooms", roomHandlers.CreateRoom)
			protected.POST("/rooms/:id/join", roomHandlers.JoinRoom)
			protected.POST("/rooms/:id/leave", roomHandlers.LeaveRoom)
			protected.GET("/rooms/:id/read_state", roomHandlers.ReadState)
			protected.POST("/attachments", attachmentHandlers.Upload)
		}
	}

	router.GET("/attachments/:key", attachmentHandlers.Download)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
