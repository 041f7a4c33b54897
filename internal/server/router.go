// Package server exposes the verification queue over HTTP and reports engine
// health over gRPC.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// RouterOptions configures the optional layers around the handlers.
type RouterOptions struct {
	JWTSecret          string // empty disables auth on /api
	JWTAudience        string
	CORSAllowedOrigins []string
	Metrics            *metrics.Collectors
	Gatherer           prometheus.Gatherer // nil serves the default registry
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestContext(h.logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(opts.CORSAllowedOrigins)))
	}

	r.GET("/health", h.Health)
	r.GET("/debug/engine", h.DebugEngine)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	if opts.JWTSecret != "" {
		api.Use(JWTMiddleware(opts.JWTSecret, opts.JWTAudience))
	}
	api.POST("/verify_student", h.SubmitVerification)
	api.GET("/verify_status/:task_id", h.VerificationStatus)
	api.GET("/tasks/export.xlsx", h.ExportTasks)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	cfg.ExposeHeaders = []string{requestIDHeader, "Location"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

// requestContext tags each request with an id and writes one access log line.
func requestContext(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}
