package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/api/handler"
	"github.com/Redwinam/dida-master/internal/api/middleware"
	"github.com/Redwinam/dida-master/pkg/jwt"
	"github.com/Redwinam/dida-master/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, keys middleware.KeyAuthenticator, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 定时任务（共享密钥）
		cron := v1.Group("/cron")
		cron.Use(middleware.CronSecret(cfg.Cron.Secret))
		{
			cron.POST("/dispatch", h.Cron.Dispatch)
			cron.POST("/migrate-to-cos", h.Cron.MigrateToCOS)
		}

		// 生成网关回调（无需认证，由恢复上下文中的凭证完成写入）
		v1.POST("/callbacks/:kind", h.Callback.Handle)

		// 滴答清单 OAuth（浏览器跳转，state Cookie 校验）
		v1.GET("/auth/dida/authorize", h.Dida.Authorize)
		v1.GET("/auth/dida/callback", h.Dida.Callback)

		// 需要认证的路由（会话 Token 或 API Key）
		authorized := v1.Group("")
		authorized.Use(middleware.UserAuth(keys, jwtMgr))
		{
			actions := authorized.Group("/actions")
			actions.Use(middleware.RateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window))
			{
				actions.POST("/daily-note", h.Action.DailyNote)
				actions.POST("/weekly-report", h.Action.WeeklyReport)
				actions.POST("/text-calendar", h.Action.TextCalendar)
				actions.POST("/image-calendar", h.Action.ImageCalendar)
				actions.POST("/template-calendar", h.Action.TemplateCalendar)
			}

			authorized.POST("/auth/apikey", h.APIKey.Create)
			authorized.DELETE("/auth/apikey", h.APIKey.Revoke)

			authorized.GET("/config", h.UserConfig.Get)
			authorized.PUT("/config", h.UserConfig.Update)

			dailyNotes := authorized.Group("/daily-notes")
			{
				dailyNotes.GET("", h.Record.ListDailyNotes)
				dailyNotes.GET("/:id", h.Record.GetDailyNote)
				dailyNotes.DELETE("/:id", h.Record.DeleteDailyNote)
			}

			weeklyReports := authorized.Group("/weekly-reports")
			{
				weeklyReports.GET("", h.Record.ListWeeklyReports)
				weeklyReports.GET("/:id", h.Record.GetWeeklyReport)
				weeklyReports.DELETE("/:id", h.Record.DeleteWeeklyReport)
			}

			authorized.GET("/records/export", h.Export.ExportRecords)
			authorized.GET("/cal/calendars", h.Calendar.ListCalendars)
			authorized.GET("/dida/projects", h.Dida.Projects)

			templates := authorized.Group("/templates/calendar")
			{
				templates.POST("", h.Template.Create)
				templates.GET("", h.Template.List)
				templates.GET("/recent", h.Template.Recent)
				templates.GET("/:id", h.Template.Get)
				templates.PATCH("/:id", h.Template.Update)
			}
		}
	}

	return r
}
