package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/response"
)

const (
	oauthStateCookie = "dida_oauth_state"
	oauthStateMaxAge = 600 // 秒
	oauthCookiePath  = "/api/v1/auth/dida"
)

// DidaHandler 滴答清单账户处理器
type DidaHandler struct {
	didaSvc service.DidaService
}

// NewDidaHandler 创建 DidaHandler
func NewDidaHandler(didaSvc service.DidaService) *DidaHandler {
	return &DidaHandler{didaSvc: didaSvc}
}

// Projects 清单列表，携带 token 查询参数时用于连接前校验
// GET /api/v1/dida/projects
func (h *DidaHandler) Projects(c *gin.Context) {
	var query dto.ProjectsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	projects, err := h.didaSvc.Projects(c.Request.Context(), userID, query.Token)
	if err != nil {
		h.handleDidaError(c, err)
		return
	}
	response.OK(c, gin.H{"list": projects})
}

// Authorize 跳转到开放平台授权页
// GET /api/v1/auth/dida/authorize
func (h *DidaHandler) Authorize(c *gin.Context) {
	state := uuid.NewString()
	target, err := h.didaSvc.AuthorizeURL(state)
	if err != nil {
		h.handleDidaError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, oauthCookiePath, "", isHTTPS(c), true)
	c.Redirect(http.StatusFound, target)
}

// Callback 授权回调，换取 Token 后携带 dida_token 跳回前端
// GET /api/v1/auth/dida/callback
func (h *DidaHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, 10001, "缺少授权码")
		return
	}
	expected, err := c.Cookie(oauthStateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		response.BadRequest(c, 26003, "授权状态校验失败")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, oauthCookiePath, "", isHTTPS(c), true)

	target, err := h.didaSvc.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		h.handleDidaError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func isHTTPS(c *gin.Context) bool {
	return c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}

func (h *DidaHandler) handleDidaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDidaTokenMissing):
		response.BadRequest(c, 26001, "未连接滴答清单，请先完成授权或填写 Token")
	case errors.Is(err, service.ErrDidaUnavailable):
		response.BadGateway(c, 26002, "获取滴答清单列表失败")
	case errors.Is(err, service.ErrOAuthNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, 26004, "未配置滴答清单 OAuth 应用")
	case errors.Is(err, service.ErrOAuthExchangeFailed):
		response.BadGateway(c, 26005, "滴答清单授权失败")
	default:
		response.InternalError(c)
	}
}
