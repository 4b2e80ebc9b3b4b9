package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// CronHandler 定时任务 HTTP 处理器，路由由 CronSecret 中间件保护
type CronHandler struct {
	dispatchSvc service.DispatchService
	recordSvc   service.RecordService
	now         func() time.Time
}

// NewCronHandler 创建 CronHandler
func NewCronHandler(dispatchSvc service.DispatchService, recordSvc service.RecordService) *CronHandler {
	return &CronHandler{dispatchSvc: dispatchSvc, recordSvc: recordSvc, now: time.Now}
}

// Dispatch 扫描并触发到期任务
// POST /api/v1/cron/dispatch
func (h *CronHandler) Dispatch(c *gin.Context) {
	result := h.dispatchSvc.Dispatch(c.Request.Context(), h.now())
	response.Raw(c, result)
}

// MigrateToCOS 将内联正文迁移到对象存储
// POST /api/v1/cron/migrate-to-cos
func (h *CronHandler) MigrateToCOS(c *gin.Context) {
	result, err := h.recordSvc.MigrateToCOS(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrStoreNotConfigured) {
			response.BadRequest(c, 25001, "对象存储未配置")
			return
		}
		response.InternalError(c)
		return
	}
	response.Raw(c, result)
}
