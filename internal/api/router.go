package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"meal-plan-personalizer/internal/api/handlers/health"
	planHandler "meal-plan-personalizer/internal/api/handlers/plan"
	"meal-plan-personalizer/internal/api/middleware"
	aicache "meal-plan-personalizer/internal/core/ai/cache"
	"meal-plan-personalizer/internal/core/ai/openrouter"
	aiservice "meal-plan-personalizer/internal/core/ai/service"
	"meal-plan-personalizer/internal/core/meal/planner"
	"meal-plan-personalizer/internal/core/meal/prefcache"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/core/meal/prompt"
	"meal-plan-personalizer/internal/core/meal/selector"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 請求超時
	timeoutDuration = 60 * time.Second
	// 請求體大小限制 (1MB)
	maxBodySize = 1 << 20
)

// SetupRouter 設置路由並組裝服務
// 回傳的 cleanup 停止背景作業並釋放連線，於伺服器關閉時呼叫
func SetupRouter(cfg *config.Config, st store.DocumentStore) (*gin.Engine, func(), error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	router.Use(middleware.Deduplication(cfg))

	common.LogInfo("Initializing services",
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("ai_enabled", cfg.OpenRouter.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Int("refresh_workers", cfg.Preference.RefreshWorkers),
	)

	// 個人化管線
	scorer := variety.NewScorer(cfg.Variety)
	builder := profile.NewBuilder(st, cfg.Preference)
	cacheManager := prefcache.NewManager(st, builder, cfg.Preference)
	cacheManager.Start()
	sel := selector.NewSelector(st, cfg.Scoring, cfg.Preference)
	formatter := prompt.NewFormatter(cfg.Prompt)
	plannerSvc := planner.NewService(cacheManager, sel, scorer, formatter, st)

	// 生成端
	responseCache, err := aicache.NewService(&cfg.Redis)
	if err != nil {
		cacheManager.Stop()
		return nil, nil, fmt.Errorf("failed to initialize response cache: %w", err)
	}
	var aiSvc *aiservice.Service
	if cfg.OpenRouter.Enabled {
		client := openrouter.NewClient(&cfg.OpenRouter)
		aiSvc = aiservice.NewService(client, responseCache, &cfg.OpenRouter)
	}

	cleanup := func() {
		cacheManager.Stop()
		if err := responseCache.Close(); err != nil {
			common.LogWarn("Failed to close response cache", zap.Error(err))
		}
	}

	// 全局中間件：請求超時與配置注入
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Set("config", cfg)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
			})
			c.Abort()
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		handler := planHandler.NewHandler(plannerSvc, aiSvc, st)

		planGroup := api.Group("/plan")
		{
			// 個人化管線（不呼叫模型）
			planGroup.POST("/personalize", handler.HandlePersonalize)

			// 完整計畫生成（食譜庫挑選 + 模型生成）
			planGroup.POST("/generate", handler.HandleGenerate)
		}

		api.POST("/activity/event", handler.HandleActivityEvent)
		api.GET("/profile/:user_id", handler.HandleGetProfile)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.Bool("ai_service_initialized", aiSvc != nil),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, cleanup, nil
}
