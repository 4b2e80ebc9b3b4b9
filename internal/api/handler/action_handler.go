package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/gateway"
	"github.com/Redwinam/dida-master/pkg/response"
)

// ActionHandler 动作触发 HTTP 处理器
// 业务失败统一返回 200 + {error:true, message, name}
type ActionHandler struct {
	actionSvc   service.ActionService
	calendarSvc service.CalendarService
	templateSvc service.TemplateService
}

// NewActionHandler 创建 ActionHandler
func NewActionHandler(actionSvc service.ActionService, calendarSvc service.CalendarService, templateSvc service.TemplateService) *ActionHandler {
	return &ActionHandler{actionSvc: actionSvc, calendarSvc: calendarSvc, templateSvc: templateSvc}
}

// DailyNote 触发每日笔记生成
// POST /api/v1/actions/daily-note
func (h *ActionHandler) DailyNote(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.actionSvc.TriggerDaily(c.Request.Context(), userID, userToken(c))
	if err != nil {
		h.handleActionError(c, err)
		return
	}
	response.Raw(c, result)
}

// WeeklyReport 触发周报生成
// POST /api/v1/actions/weekly-report
func (h *ActionHandler) WeeklyReport(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.actionSvc.TriggerWeekly(c.Request.Context(), userID, userToken(c))
	if err != nil {
		h.handleActionError(c, err)
		return
	}
	response.Raw(c, result)
}

// TextCalendar 文本转日程
// POST /api/v1/actions/text-calendar
func (h *ActionHandler) TextCalendar(c *gin.Context) {
	var req dto.TextCalendarRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.TextToCalendar(c.Request.Context(), userID, userToken(c), req.Text)
	if err != nil {
		h.handleActionError(c, err)
		return
	}
	response.Raw(c, result)
}

// ImageCalendar 图片转日程
// POST /api/v1/actions/image-calendar
func (h *ActionHandler) ImageCalendar(c *gin.Context) {
	var req dto.ImageCalendarRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.ImageToCalendar(c.Request.Context(), userID, userToken(c), req.ImageBase64)
	if err != nil {
		h.handleActionError(c, err)
		return
	}
	response.Raw(c, result)
}

// TemplateCalendar 按模板解析文本生成单个日程
// POST /api/v1/actions/template-calendar
func (h *ActionHandler) TemplateCalendar(c *gin.Context) {
	var req dto.TemplateCalendarRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.templateSvc.Apply(c.Request.Context(), userID, userToken(c), &req)
	if err != nil {
		h.handleActionError(c, err)
		return
	}
	response.Raw(c, result)
}

func (h *ActionHandler) handleActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConfigNotFound):
		response.Action(c, "ConfigError", service.ErrConfigNotFound.Error(), "")
	case errors.Is(err, service.ErrDailyNotConfigured),
		errors.Is(err, service.ErrWeeklyNotConfigured),
		errors.Is(err, service.ErrCalendarNotConfigured):
		response.Action(c, "ConfigError", err.Error(), "")
	case errors.Is(err, service.ErrContextCollectFailed):
		response.Action(c, "ContextError", service.ErrContextCollectFailed.Error(), err.Error())
	case errors.Is(err, gateway.ErrGenerationFailed), errors.Is(err, gateway.ErrNoCredential):
		response.Action(c, "GenerationError", "生成服务调用失败", err.Error())
	case errors.Is(err, service.ErrCalendarUnavailable), errors.Is(err, service.ErrNoCalendar):
		response.Action(c, "CalendarError", err.Error(), "")
	case errors.Is(err, service.ErrTemplateNotFound):
		response.Action(c, "TemplateError", service.ErrTemplateNotFound.Error(), "")
	case errors.Is(err, service.ErrTemplateEventIncomplete):
		response.Action(c, "ValidationError", service.ErrTemplateEventIncomplete.Error(), "")
	default:
		response.Action(c, "Error", "动作执行失败", err.Error())
	}
}
