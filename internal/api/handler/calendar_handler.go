package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// CalendarHandler 日历处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// ListCalendars 列出日历，携带 username/password 查询参数时用于测试连接
// GET /api/v1/cal/calendars
func (h *CalendarHandler) ListCalendars(c *gin.Context) {
	var query dto.ListCalendarsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	calendars, err := h.calendarSvc.ListCalendars(c.Request.Context(), userID, &query)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}
	response.OK(c, gin.H{"list": calendars})
}

func (h *CalendarHandler) handleCalendarError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCalendarNotConfigured):
		response.BadRequest(c, 24001, "未配置日历账户")
	case errors.Is(err, service.ErrCalendarUnavailable):
		response.BadGateway(c, 24002, "日历服务不可用")
	default:
		response.InternalError(c)
	}
}
