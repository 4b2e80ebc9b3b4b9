package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

// ErrGenerationFailed 网关调用失败（网络错误或非 2xx）
var ErrGenerationFailed = errors.New("生成网关调用失败")

// 服务标识，网关据此选择任务类型与模型
const (
	ServiceDailyNote       = "DIDA_DAILY_NOTE"
	ServiceWeeklyReport    = "DIDA_WEEKLY_REPORT"
	ServiceTextToCalendar  = "DIDA_TEXT_TO_CALENDAR"
	ServiceImageToCalendar = "DIDA_IMAGE_TO_CALENDAR"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dida_gateway_requests_total",
		Help: "Generation gateway requests by service key, mode and outcome",
	}, []string{"service_key", "mode", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dida_gateway_request_duration_seconds",
		Help:    "Generation gateway request latency",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"service_key", "mode"})
)

// Input 生成输入
type Input struct {
	Type        string `json:"type"` // text | image
	Prompt      string `json:"prompt"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// Request 一次生成请求
// CallbackURL 非空时为异步模式，网关稍后将结果 POST 到该地址并原样回传 CallbackPayload
type Request struct {
	ServiceKey      string
	Input           Input
	UserID          string
	CallbackURL     string
	CallbackPayload interface{}
	UserToken       string
}

type requestBody struct {
	ServiceKey      string      `json:"service_key"`
	Input           Input       `json:"input"`
	UserID          string      `json:"user_id,omitempty"`
	CallbackURL     string      `json:"callback_url,omitempty"`
	CallbackPayload interface{} `json:"callback_payload,omitempty"`
}

// Result 同步模式下 Content 为提取出的文本；异步模式下 Queued 为 true
type Result struct {
	Content string
	Queued  bool
	Raw     map[string]interface{}
}

// Client 生成网关客户端
type Client struct {
	url        string
	system     Credential
	systemErr  error
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建网关客户端；系统凭证缺失不会报错，只有真正需要回退时才失败
func NewClient(cfg *config.GatewayConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	system, err := SystemCredential(cfg)
	return &Client{
		url:        cfg.URL,
		system:     system,
		systemErr:  err,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Generate 调用网关
func (c *Client) Generate(ctx context.Context, req *Request) (*Result, error) {
	mode := "sync"
	if req.CallbackURL != "" {
		mode = "async"
	}
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.ServiceKey, mode).Observe(time.Since(start).Seconds())
	}()

	result, err := c.generate(ctx, req, mode)
	status := "ok"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(req.ServiceKey, mode, status).Inc()
	return result, err
}

func (c *Client) generate(ctx context.Context, req *Request, mode string) (*Result, error) {
	auth, authKind, err := c.authorization(req.UserToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	body := requestBody{
		ServiceKey: req.ServiceKey,
		Input:      req.Input,
		UserID:     req.UserID,
	}
	if req.CallbackURL != "" {
		body.CallbackURL = req.CallbackURL
		body.CallbackPayload = req.CallbackPayload
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化网关请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", auth)

	c.logger.Debug("调用生成网关",
		zap.String("service_key", req.ServiceKey),
		zap.String("mode", mode),
		zap.String("auth", authKind),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("生成网关请求失败", zap.String("service_key", req.ServiceKey), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", ErrGenerationFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.logger.Error("生成网关鉴权失败 (401)",
				zap.String("service_key", req.ServiceKey),
				zap.String("auth", authKind),
				zap.String("token_prefix", maskToken(auth)),
			)
		} else {
			c.logger.Error("生成网关返回错误",
				zap.String("service_key", req.ServiceKey),
				zap.Int("status", resp.StatusCode),
			)
		}
		se := &pkgerrors.StatusError{Service: "gateway", StatusCode: resp.StatusCode, Body: string(raw)}
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, se)
	}

	var decoded map[string]interface{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			if mode == "async" {
				return &Result{Queued: true}, nil
			}
			return nil, fmt.Errorf("%w: 解析响应失败: %v", ErrGenerationFailed, err)
		}
	}

	if mode == "async" {
		return &Result{Queued: true, Raw: decoded}, nil
	}
	return &Result{Content: ExtractContent(decoded), Raw: decoded}, nil
}

// ExtractContent 按 content → data.content → result.content → choices[0].message.content 顺序提取文本
func ExtractContent(resp map[string]interface{}) string {
	if resp == nil {
		return ""
	}
	if s := stringAt(resp, "content"); s != "" {
		return s
	}
	for _, wrapper := range []string{"data", "result"} {
		if m, ok := resp[wrapper].(map[string]interface{}); ok {
			if s := stringAt(m, "content"); s != "" {
				return s
			}
		}
	}
	return ChoiceContent(resp)
}

// ChoiceContent 提取 chat-completion 结构中的 choices[0].message.content
func ChoiceContent(m map[string]interface{}) string {
	choices, ok := m["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]interface{})
	if !ok {
		return ""
	}
	msg, ok := first["message"].(map[string]interface{})
	if !ok {
		return ""
	}
	return stringAt(msg, "content")
}

func stringAt(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
