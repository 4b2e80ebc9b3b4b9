package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

// APIKeyHandler API Key 管理处理器
type APIKeyHandler struct {
	apiKeySvc service.APIKeyService
}

// NewAPIKeyHandler 创建 APIKeyHandler
func NewAPIKeyHandler(apiKeySvc service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{apiKeySvc: apiKeySvc}
}

// Create 创建或轮换 API Key
// POST /api/v1/auth/apikey
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.apiKeySvc.Create(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// Revoke 撤销 API Key
// DELETE /api/v1/auth/apikey
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.apiKeySvc.Revoke(c.Request.Context(), userID); err != nil {
		if errors.Is(err, service.ErrAPIKeyNotFound) {
			response.NotFound(c, 21001, "API Key 不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}
