package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/internal/api/middleware"
	"github.com/Redwinam/dida-master/pkg/response"
)

// MustGetUserID 从 Gin 上下文中提取认证中间件注入的 user_id
// ok=false 时已写入 401 响应，调用方直接 return
func MustGetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return userID, true
}

// userToken 会话认证时的原始 Token，API Key 认证时为空
func userToken(c *gin.Context) string {
	return c.GetString(middleware.ContextUserToken)
}

// bindJSON 绑定失败时写入 413 或 400 响应
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, 413, 10005, "请求体过大")
			return false
		}
		response.BadRequest(c, 10001, "参数校验失败")
		return false
	}
	return true
}
