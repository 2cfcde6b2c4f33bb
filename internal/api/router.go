package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/photocache/internal/api/handler"
	"github.com/timmy/photocache/internal/api/middleware"
	"github.com/timmy/photocache/internal/logger"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Cache   handler.PhotoCache
	Files   handler.PayloadOpener
	Runs    handler.RunHistory // nil when history is disabled
	Logger  *logger.Logger
	Service string
}

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	Mode string // release, test or debug
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - deps: services backing the handlers.
//   - cfg: mode and CORS settings.
//
// Returns:
//   - *gin.Engine: router ready to serve.
func SetupRouter(deps *Dependencies, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.Service)
	photoHandler := handler.NewPhotoHandler(deps.Cache, deps.Files)
	historyHandler := handler.NewHistoryHandler(deps.Runs)

	r.GET("/health", healthHandler.Health)
	r.GET(handler.FilesPrefix+"/:filename", photoHandler.ServeFile)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/photos", photoHandler.ListPhotos)
		v1.POST("/photos/refresh", photoHandler.RefreshPhotos)
		v1.GET("/stats", photoHandler.GetStats)
		v1.GET("/refreshes", historyHandler.ListRefreshes)
		v1.GET("/refreshes/:id", historyHandler.GetRefresh)
	}

	return r
}
