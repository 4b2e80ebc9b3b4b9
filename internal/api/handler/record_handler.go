package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// RecordHandler 历史记录 HTTP 处理器
type RecordHandler struct {
	recordSvc service.RecordService
}

// NewRecordHandler 创建 RecordHandler
func NewRecordHandler(recordSvc service.RecordService) *RecordHandler {
	return &RecordHandler{recordSvc: recordSvc}
}

// ListDailyNotes 每日笔记列表
// GET /api/v1/daily-notes
func (h *RecordHandler) ListDailyNotes(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	items, total, err := h.recordSvc.ListDailyNotes(c.Request.Context(), userID, &page)
	if err != nil {
		h.handleRecordError(c, err)
		return
	}
	response.OKPage(c, items, total, page.GetPage(), page.GetPageSize())
}

// GetDailyNote 每日笔记详情
// GET /api/v1/daily-notes/:id
func (h *RecordHandler) GetDailyNote(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	detail, err := h.recordSvc.GetDailyNote(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleRecordError(c, err)
		return
	}
	response.OK(c, detail)
}

// DeleteDailyNote 删除每日笔记
// DELETE /api/v1/daily-notes/:id
func (h *RecordHandler) DeleteDailyNote(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.recordSvc.DeleteDailyNote(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleRecordError(c, err)
		return
	}
	response.OK(c, nil)
}

// ListWeeklyReports 周报列表
// GET /api/v1/weekly-reports
func (h *RecordHandler) ListWeeklyReports(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	items, total, err := h.recordSvc.ListWeeklyReports(c.Request.Context(), userID, &page)
	if err != nil {
		h.handleRecordError(c, err)
		return
	}
	response.OKPage(c, items, total, page.GetPage(), page.GetPageSize())
}

// GetWeeklyReport 周报详情
// GET /api/v1/weekly-reports/:id
func (h *RecordHandler) GetWeeklyReport(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	detail, err := h.recordSvc.GetWeeklyReport(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleRecordError(c, err)
		return
	}
	response.OK(c, detail)
}

// DeleteWeeklyReport 删除周报
// DELETE /api/v1/weekly-reports/:id
func (h *RecordHandler) DeleteWeeklyReport(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.recordSvc.DeleteWeeklyReport(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleRecordError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *RecordHandler) handleRecordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		response.NotFound(c, 23001, "记录不存在")
	default:
		response.InternalError(c)
	}
}
