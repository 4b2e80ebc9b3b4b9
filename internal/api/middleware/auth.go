package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Redwinam/dida-master/pkg/jwt"
	"github.com/Redwinam/dida-master/pkg/response"
)

// 上下文键
const (
	ContextUserID    = "user_id"
	ContextUserToken = "user_token"
	ContextAuthKind  = "auth_kind"
)

// 认证方式
const (
	AuthKindAPIKey   = "api_key"
	AuthKindSession  = "session"
	AuthKindDispatch = "dispatch"
)

// KeyAuthenticator 校验明文 API Key 并返回所属用户
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (string, error)
}

// UserAuth 用户认证中间件
// 优先使用 x-api-key 请求头（或 api_key 查询参数），否则校验 Authorization: Bearer 会话 Token
func UserAuth(keys KeyAuthenticator, jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader("x-api-key")
		if rawKey == "" {
			rawKey = c.Query("api_key")
		}
		if rawKey != "" {
			userID, err := keys.Authenticate(c.Request.Context(), rawKey)
			if err != nil {
				response.Unauthorized(c, 10002, "API Key 无效")
				c.Abort()
				return
			}
			c.Set(ContextUserID, userID)
			c.Set(ContextAuthKind, AuthKindAPIKey)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证信息")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID())
		if claims.IsDispatch() {
			// 分发 Token 不是用户会话，不向生成网关转发
			c.Set(ContextAuthKind, AuthKindDispatch)
			c.Next()
			return
		}
		c.Set(ContextUserToken, parts[1])
		c.Set(ContextAuthKind, AuthKindSession)
		c.Next()
	}
}

// CronSecret 定时任务密钥校验
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("x-cron-secret")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.Unauthorized(c, 10002, "Unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
