package routers

import (
	"time"

	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/middleware"
	"github.com/haierkeys/db-backup-service/internal/routers/api_router"
	"github.com/haierkeys/db-backup-service/pkg/limiter"
	"github.com/haierkeys/db-backup-service/pkg/validator"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ValidationRules 请求参数的自定义校验规则
func ValidationRules() []validator.Rule {
	return []validator.Rule{
		{
			Tag: "dbhost",
			Fn:  domain.ValidHost,
			Messages: map[string]string{
				"en": "{0} must be a hostname or IP address",
				"zh": "{0}必须是主机名或IP地址",
			},
		},
		{
			Tag: "hhmm",
			Fn: func(s string) bool {
				_, _, err := domain.ParseTimeOfDay(s)
				return err == nil
			},
			Messages: map[string]string{
				"en": "{0} must be a time in HH:MM format",
				"zh": "{0}必须是 HH:MM 格式的时间",
			},
		},
	}
}

// actionLimiter 限制会连接外部数据库或发信的接口
func actionLimiter(perMinute int64) limiter.Face {
	l := limiter.NewMethodLimiter()
	for _, path := range []string{"/api/targets/:id/test", "/api/targets/:id/run", "/api/settings/test-email"} {
		l.AddBuckets(limiter.BucketRule{
			Key:          path,
			FillInterval: time.Minute,
			Capacity:     perMinute,
			Quantum:      perMinute,
		})
	}
	return l
}

func NewRouter(appContainer *app.App, uni *ut.UniversalTranslator) *gin.Engine {

	// 获取配置
	cfg := appContainer.Config()

	r := gin.New()

	// Prometheus 指标，使用 App 自己的 registry
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(appContainer.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.Use(middleware.AppInfo(app.Name, appContainer.Version().Version))
		if cfg.Tracer.Enabled {
			api.Use(middleware.TraceMiddleware(cfg.Tracer.Header)) // Trace ID 中间件
		}
		api.Use(middleware.ContextTimeout(time.Duration(cfg.App.DefaultContextTimeout) * time.Second))
		api.Use(middleware.LangWithTranslator(uni))
		api.Use(middleware.AccessLogWithLogger(appContainer.Logger()))
		api.Use(middleware.RecoveryWithLogger(appContainer.Logger()))

		healthHandler := api_router.NewHealthHandler(appContainer)
		targetHandler := api_router.NewTargetHandler(appContainer)
		scheduleHandler := api_router.NewScheduleHandler(appContainer)
		runHandler := api_router.NewRunHandler(appContainer)
		settingHandler := api_router.NewSettingHandler(appContainer)

		// 无需认证
		api.GET("/health", healthHandler.Health)
		api.GET("/version", healthHandler.ServerVersion)

		auth := api.Group("",
			middleware.AuthTokenWithConfig(cfg.Security.AuthToken),
			middleware.RateLimiter(actionLimiter(cfg.Security.ActionRateLimit)),
		)

		auth.GET("/targets", targetHandler.List)
		auth.POST("/targets", targetHandler.Create)
		auth.GET("/targets/:id", targetHandler.Get)
		auth.PUT("/targets/:id", targetHandler.Update)
		auth.DELETE("/targets/:id", targetHandler.Delete)
		auth.POST("/targets/:id/test", targetHandler.TestConnection)
		auth.POST("/targets/:id/run", targetHandler.RunNow)

		auth.GET("/schedules", scheduleHandler.List)
		auth.POST("/schedules", scheduleHandler.Create)
		auth.PUT("/schedules/:id", scheduleHandler.Update)
		auth.DELETE("/schedules/:id", scheduleHandler.Delete)

		auth.GET("/scheduler", scheduleHandler.Status)
		auth.POST("/scheduler/:action", scheduleHandler.Control)

		auth.GET("/runs", runHandler.List)
		auth.GET("/runs/stats", runHandler.Stats)
		auth.POST("/runs/purge", runHandler.Purge)
		auth.GET("/runs/:id", runHandler.Get)
		auth.DELETE("/runs/:id", runHandler.Delete)

		auth.GET("/settings", settingHandler.Get)
		auth.PUT("/settings", settingHandler.Update)
		auth.POST("/settings/test-email", settingHandler.TestEmail)

		auth.GET("/export", settingHandler.Export)
		auth.POST("/import", settingHandler.Import)
	}

	r.NoRoute(middleware.NoFound())

	return r
}
