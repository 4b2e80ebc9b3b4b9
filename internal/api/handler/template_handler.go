package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// TemplateHandler 日程模板处理器
type TemplateHandler struct {
	templateSvc service.TemplateService
}

// NewTemplateHandler 创建 TemplateHandler
func NewTemplateHandler(templateSvc service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateSvc: templateSvc}
}

// Create 创建模板
// POST /api/v1/templates/calendar
func (h *TemplateHandler) Create(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tpl, err := h.templateSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleTemplateError(c, err)
		return
	}
	response.OK(c, tpl)
}

// List 模板列表，按更新时间倒序
// GET /api/v1/templates/calendar
func (h *TemplateHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	items, total, err := h.templateSvc.List(c.Request.Context(), userID, &page)
	if err != nil {
		h.handleTemplateError(c, err)
		return
	}
	response.OKPage(c, items, total, page.GetPage(), page.GetPageSize())
}

// Recent 最近日程，用于从已有事件创建模板
// GET /api/v1/templates/calendar/recent
func (h *TemplateHandler) Recent(c *gin.Context) {
	var query dto.RecentEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	events, err := h.templateSvc.Recent(c.Request.Context(), userID, &query)
	if err != nil {
		h.handleTemplateError(c, err)
		return
	}
	response.OK(c, events)
}

// Get 模板详情
// GET /api/v1/templates/calendar/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tpl, err := h.templateSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleTemplateError(c, err)
		return
	}
	response.OK(c, tpl)
}

// Update 更新模板
// PATCH /api/v1/templates/calendar/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	var req dto.UpdateTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tpl, err := h.templateSvc.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handleTemplateError(c, err)
		return
	}
	response.OK(c, tpl)
}

func (h *TemplateHandler) handleTemplateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTemplateNotFound):
		response.NotFound(c, 27001, "模板不存在")
	case errors.Is(err, service.ErrTemplateNameRequired):
		response.BadRequest(c, 27002, "模板名称不能为空")
	case errors.Is(err, service.ErrCalendarNotConfigured):
		response.BadRequest(c, 24001, "未配置日历账户")
	case errors.Is(err, service.ErrCalendarUnavailable):
		response.BadGateway(c, 24002, "日历服务不可用")
	default:
		response.InternalError(c)
	}
}
