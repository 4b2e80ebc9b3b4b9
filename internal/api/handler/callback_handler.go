package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// CallbackHandler 生成网关回调处理器
// 所有结果（包括失败）都以 200 返回，避免网关重复投递
type CallbackHandler struct {
	callbackSvc service.CallbackService
}

// NewCallbackHandler 创建 CallbackHandler
func NewCallbackHandler(callbackSvc service.CallbackService) *CallbackHandler {
	return &CallbackHandler{callbackSvc: callbackSvc}
}

// Handle 处理生成结果回调
// POST /api/v1/callbacks/:kind
func (h *CallbackHandler) Handle(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Raw(c, &dto.CallbackResult{Status: dto.CallbackStatusFailed, Error: "Invalid callback body"})
		return
	}

	switch c.Param("kind") {
	case dto.KindDailyNote:
		response.Raw(c, h.callbackSvc.HandleDaily(c.Request.Context(), &req))
	case dto.KindWeeklyReport:
		response.Raw(c, h.callbackSvc.HandleWeekly(c.Request.Context(), &req))
	default:
		response.Raw(c, &dto.CallbackResult{Status: dto.CallbackStatusFailed, Error: "Unknown callback kind"})
	}
}
