package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/labtwin-backend/internal/http/handlers"
	httpMW "github.com/yungbote/labtwin-backend/internal/http/middleware"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	AIHandler     *httpH.AIHandler
	TwinHandler   *httpH.TwinHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	students := api.Group("/")
	instructors := api.Group("/")
	if cfg.AuthMiddleware != nil {
		students.Use(cfg.AuthMiddleware.RequireRole(ctxutil.RoleStudent))
		instructors.Use(cfg.AuthMiddleware.RequireRole(ctxutil.RoleInstructor))
	}

	// AI tutor
	if h := cfg.AIHandler; h != nil {
		students.POST("/ai/hint", h.RequestHint)
		students.POST("/ai/comprehension", h.CheckComprehension)
		students.GET("/ai/hints/:id", h.ListHints)
		students.POST("/ai/hints/:id/feedback", h.Feedback)
		students.GET("/ai/recommend-level/:activityId", h.RecommendLevel)
		students.POST("/ai/socratic", h.Socratic)

		api.GET("/ai/status", h.Status)
		instructors.GET("/ai/usage", h.Usage)
	}

	// Learning twin
	if h := cfg.TwinHandler; h != nil {
		students.GET("/twin/me", h.GetMine)
		students.POST("/twin/behavior", h.RecordBehavior)
		students.POST("/twin/revisions", h.RecordRevision)
		instructors.GET("/twin/students/:id", h.GetStudent)
	}

	return r
}
