package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/creatives-backend/internal/http/handlers"
	httpMW "github.com/yungbote/creatives-backend/internal/http/middleware"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	BriefHandler  *httpH.BriefHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Briefs
		if cfg.BriefHandler != nil {
			api.POST("/briefs", cfg.BriefHandler.Upload)
			api.GET("/briefs", cfg.BriefHandler.List)
			api.GET("/briefs/:id", cfg.BriefHandler.Get)
			api.GET("/briefs/:id/status", cfg.BriefHandler.Status)
			api.GET("/briefs/:id/logs", cfg.BriefHandler.Logs)
			api.POST("/briefs/:id/generate", cfg.BriefHandler.Generate)
			api.DELETE("/briefs/:id", cfg.BriefHandler.Delete)
		}
	}

	return r
}
