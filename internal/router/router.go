package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/triage-api/internal/handler/prometheus"
	"github.com/jwalitptl/triage-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// RateLimit <= 0 disables limiting.
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Metrics    *prometheus.Handler
}

type Router struct {
	engine   *gin.Engine
	handlers []Handler
}

func NewRouter(config RouterConfig, handlers ...Handler) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
	)
	if config.Metrics != nil {
		engine.Use(config.Metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(middleware.SizeLimitConfig{
			MaxBodySize:   config.MaxBodyBytes,
			MaxHeaderSize: 1 << 14,
			ErrorMessage:  "Request size exceeds limit",
		}),
	)
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      config.RateLimit,
			Burst:     config.RateBurst,
			PerClient: true,
		})
		engine.Use(limiter.RateLimit())
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.ErrorHandler(),
	)

	return &Router{engine: engine, handlers: handlers}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
