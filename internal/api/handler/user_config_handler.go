package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// UserConfigHandler 用户配置处理器
type UserConfigHandler struct {
	configSvc service.UserConfigService
}

// NewUserConfigHandler 创建 UserConfigHandler
func NewUserConfigHandler(configSvc service.UserConfigService) *UserConfigHandler {
	return &UserConfigHandler{configSvc: configSvc}
}

// Get 获取当前用户配置（敏感字段脱敏）
// GET /api/v1/config
func (h *UserConfigHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	cfg, err := h.configSvc.Get(c.Request.Context(), userID)
	if err != nil {
		h.handleConfigError(c, err)
		return
	}
	response.OK(c, cfg)
}

// Update 更新当前用户配置
// PUT /api/v1/config
func (h *UserConfigHandler) Update(c *gin.Context) {
	var req dto.UserConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	cfg, err := h.configSvc.Update(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleConfigError(c, err)
		return
	}
	response.OK(c, cfg)
}

func (h *UserConfigHandler) handleConfigError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTimezone):
		response.BadRequest(c, 20001, "时区无效")
	case errors.Is(err, service.ErrInvalidSchedule):
		response.BadRequest(c, 20002, "定时时间格式应为 HH:MM")
	default:
		response.InternalError(c)
	}
}
