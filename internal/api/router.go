package api

import (
	"fmt"
	"net/http"
	"time"

	"recipe-bot/internal/api/handlers/health"
	"recipe-bot/internal/api/middleware"
	"recipe-bot/internal/core/ratelimit"
	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 維運端點每個來源 IP 每分鐘的請求上限
const opsRequestsPerMinute = 120

// NewOpsGate 維運端點的來源 IP 限流，需由呼叫端定期 Sweep
func NewOpsGate() *ratelimit.Gate {
	return ratelimit.NewGate(nil, opsRequestsPerMinute, time.Minute)
}

// SetupRouter 設置維運路由，opsGate 為 nil 時使用 NewOpsGate
func SetupRouter(cfg *config.Config, deps health.Dependencies, opsGate *ratelimit.Gate) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger("/health", "/ready", "/live"))
	router.Use(requestid.New())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	if opsGate == nil {
		opsGate = NewOpsGate()
	}
	router.Use(middleware.RateLimit(opsGate))

	h := health.NewHandler(deps)
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
	router.GET("/stats", h.Stats)

	common.LogInfo("Router setup completed successfully",
		zap.Int("port", cfg.Server.Port),
		zap.Int("ops_rate_limit", opsRequestsPerMinute),
	)

	return router
}

// NewServer 以設定的逾時包裝路由
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
