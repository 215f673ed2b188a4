package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osm-eval/backend/config"
	"osm-eval/backend/internal/api/handler"
	"osm-eval/backend/internal/api/middleware"
	"osm-eval/backend/pkg/jwt"
	"osm-eval/backend/pkg/metrics"
	"osm-eval/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(503, gin.H{"status": "degraded", "db": "down"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	admin := middleware.RoleAuth(jwt.RoleAdmin)
	evaluator := middleware.RoleAuth(jwt.RoleEvaluator)

	// ── API v1（全部需要认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		// 批次租约
		leases := v1.Group("/leases", evaluator)
		{
			leases.POST("", middleware.RateLimit(rdb, cfg.Lease.RequestRateLimit, cfg.Lease.RequestRateWindow), h.Lease.RequestLease)
			leases.GET("/active", h.Lease.GetActiveLease)
			leases.GET("/stats", h.Lease.GetStats)
			leases.POST("/items/:barcode/start", h.Lease.StartItem)
		}

		// 评分提交
		evaluations := v1.Group("/evaluations")
		{
			evaluations.POST("", evaluator, h.Evaluation.Commit)
			evaluations.GET("/:barcode", h.Evaluation.GetEvaluation)
		}

		// 复评
		reevaluations := v1.Group("/reevaluations")
		{
			reevaluations.GET("", h.Reevaluation.List) // 评阅员只看到自己的（Service 层过滤）
			reevaluations.POST("", admin, h.Reevaluation.CreateRequest)
			reevaluations.PUT("/:id/assign", admin, h.Reevaluation.Assign)
			reevaluations.POST("/:id/submit", evaluator, h.Reevaluation.Submit)
		}

		// 评阅资格
		entitlements := v1.Group("/entitlements", admin)
		{
			entitlements.GET("", h.Entitlement.List)
			entitlements.POST("", h.Entitlement.Grant)
			entitlements.DELETE("/:id", h.Entitlement.Revoke)
		}

		// 答卷池
		catalog := v1.Group("/catalog", admin)
		{
			catalog.POST("/items", h.Catalog.Ingest)
			catalog.GET("/items", h.Catalog.List)
			catalog.GET("/progress", h.Catalog.Progress)
		}

		// 运维
		v1.POST("/admin/reclaim", admin, h.Admin.Reclaim)

		// 导出
		v1.GET("/export/evaluations", admin, h.Export.ExportEvaluations)
	}

	return r
}
