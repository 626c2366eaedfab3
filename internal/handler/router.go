package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cicd-notifier/internal/logx"
)

// Pinger is implemented by dispatch backends that depend on an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	AllowedOrigins []string
	Notify         *NotifyHandler
	Integration    *IntegrationHandler
	// Health is optional; nil means the process is always healthy.
	Health Pinger
	Log    logx.Logger
}

// NewRouter wires the public endpoints behind CORS and access logging.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(recoveryLogger(cfg.Log)))
	r.Use(accessLog(cfg.Log))
	// cors.New panics on an empty origin list; no origins means no browser access.
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
				http.MethodDelete, http.MethodHead, http.MethodOptions,
			},
			// Listed explicitly: browsers ignore a "*" wildcard on credentialed requests.
			AllowHeaders: []string{
				"Origin", "Content-Type", "Content-Length", "Accept",
				"Authorization", "X-Requested-With",
			},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}))
	}

	r.GET("/integration.json", cfg.Integration.Handle)
	r.POST("/notify", cfg.Notify.Handle)
	r.GET("/healthz", healthCheck(cfg.Health))
	return r
}

func healthCheck(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func accessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("latency", time.Since(start)),
			logx.String("client_ip", c.ClientIP()),
		)
	}
}

func recoveryLogger(log logx.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, err any) {
		log.Error("handler panicked", logx.Any("panic", err), logx.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
	}
}
