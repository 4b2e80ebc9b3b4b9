package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/gateway"
	"github.com/Redwinam/dida-master/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubKeys map[string]string

func (s stubKeys) Authenticate(_ context.Context, raw string) (string, error) {
	if userID, ok := s[raw]; ok {
		return userID, nil
	}
	return "", errors.New("invalid")
}

func newAuthEngine(keys KeyAuthenticator, mgr *jwt.Manager) *gin.Engine {
	r := gin.New()
	r.GET("/me", UserAuth(keys, mgr), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(ContextUserID),
			"token":   c.GetString(ContextUserToken),
			"kind":    c.GetString(ContextAuthKind),
		})
	})
	return r
}

func TestUserAuth(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-0123456789"})
	token, err := mgr.GenerateToken("u-session", "", time.Minute)
	if err != nil {
		t.Fatalf("签发 Token 失败: %v", err)
	}
	dispatchToken, err := mgr.GenerateDispatchToken("u-cron", time.Minute)
	if err != nil {
		t.Fatalf("签发分发 Token 失败: %v", err)
	}
	keys := stubKeys{"dm_valid": "u-key"}

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"API Key 请求头", func(r *http.Request) { r.Header.Set("x-api-key", "dm_valid") }, http.StatusOK, `"kind":"api_key"`},
		{"API Key 查询参数", func(r *http.Request) { r.URL.RawQuery = "api_key=dm_valid" }, http.StatusOK, `"user_id":"u-key"`},
		{"API Key 无效", func(r *http.Request) { r.Header.Set("x-api-key", "dm_bad") }, http.StatusUnauthorized, ""},
		{"会话 Token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, `"user_id":"u-session"`},
		{"分发 Token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+dispatchToken) }, http.StatusOK, `"kind":"dispatch","token":"","user_id":"u-cron"`},
		{"Token 无效", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
		{"格式错误", func(r *http.Request) { r.Header.Set("Authorization", token) }, http.StatusUnauthorized, ""},
		{"缺少认证", func(r *http.Request) {}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			newAuthEngine(keys, mgr).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("expected %s in %s", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestUserAuth_SessionTokenForwarded(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-0123456789"})
	token, _ := mgr.GenerateToken("u1", "", time.Minute)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAuthEngine(stubKeys{}, mgr).ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"token":"`+token+`"`) {
		t.Errorf("expected forwarded token, got %s", w.Body.String())
	}
}

func TestCronSecret(t *testing.T) {
	r := gin.New()
	r.POST("/cron", CronSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		header   string
		wantCode int
	}{
		{"s3cret", http.StatusNoContent},
		{"wrong", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/cron", nil)
		if tt.header != "" {
			req.Header.Set("x-cron-secret", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.wantCode {
			t.Errorf("header %q: expected %d, got %d", tt.header, tt.wantCode, w.Code)
		}
	}
}

func TestRateLimit_NilRedisPassesThrough(t *testing.T) {
	r := gin.New()
	r.POST("/a", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/a", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

// 定时触发经 UserAuth 到达动作端点后，生成网关必须收到系统凭证而不是分发 Token
func TestScheduledTrigger_GatewayUsesSystemCredential(t *testing.T) {
	var gatewayAuth string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"queued"}`))
	}))
	defer gw.Close()

	client := gateway.NewClient(&config.GatewayConfig{
		URL:            gw.URL,
		ServiceRoleKey: "service-role-secret",
		ServiceKey:     "service-secret",
	}, zap.NewNop())

	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-0123456789"})
	engine := gin.New()
	engine.POST("/api/v1/actions/:kind", UserAuth(stubKeys{}, mgr), func(c *gin.Context) {
		_, err := client.Generate(c.Request.Context(), &gateway.Request{
			ServiceKey:  "dida-daily-note",
			UserID:      c.GetString(ContextUserID),
			CallbackURL: "https://dida.example.com/api/v1/callbacks/daily-note",
			UserToken:   c.GetString(ContextUserToken),
		})
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"error": true, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "queued"})
	})
	actions := httptest.NewServer(engine)
	defer actions.Close()

	trigger := service.NewHTTPTrigger(actions.URL, 5*time.Second, mgr)
	if err := trigger.Fire(context.Background(), "daily-note", "u1"); err != nil {
		t.Fatalf("定时触发应成功: %v", err)
	}
	if gatewayAuth != "Bearer service-role-secret" {
		t.Errorf("期望网关收到系统凭证，实际=%q", gatewayAuth)
	}

	// 用户会话 Token 仍按原样转发
	session, _ := mgr.GenerateToken("u1", "", time.Minute)
	req, _ := http.NewRequest("POST", actions.URL+"/api/v1/actions/daily-note", nil)
	req.Header.Set("Authorization", "Bearer "+session)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("手动触发请求失败: %v", err)
	}
	resp.Body.Close()
	if gatewayAuth != "Bearer "+session {
		t.Errorf("期望网关收到用户 Token，实际=%q", gatewayAuth)
	}
}
