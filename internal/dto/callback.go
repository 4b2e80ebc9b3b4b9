package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// 回调任务类型
const (
	KindDailyNote    = "daily-note"
	KindWeeklyReport = "weekly-report"
)

// 回调结果状态
const (
	CallbackStatusSuccess = "success"
	CallbackStatusFailed  = "failed"
	CallbackStatusError   = "error"
)

// ErrMissingContext 恢复上下文缺少必填字段
var ErrMissingContext = errors.New("Missing context")

// CallbackRequest 生成网关回调请求体
type CallbackRequest struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Result  interface{}     `json:"result"`
	Payload json.RawMessage `json:"payload"`
}

// ResumeContext 触发时写入 callback_payload、回调时原样取回的上下文
type ResumeContext struct {
	Kind          string `json:"kind"`
	UserID        string `json:"user_id,omitempty"`
	DidaToken     string `json:"dida_token"`
	DidaProjectID string `json:"dida_project_id"`
	Timezone      string `json:"timezone,omitempty"`

	// 每日笔记
	NoteDate string `json:"note_date,omitempty"` // YYYY-MM-DD

	// 周报
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
	DateStr     string `json:"date_str,omitempty"`
}

// DecodeResumeContext 严格解码：拒绝未知字段，校验必填字段
func DecodeResumeContext(raw json.RawMessage) (*ResumeContext, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrMissingContext
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var rc ResumeContext
	if err := dec.Decode(&rc); err != nil {
		return nil, fmt.Errorf("解析回调上下文失败: %w", err)
	}
	if rc.DidaToken == "" || rc.DidaProjectID == "" {
		return nil, ErrMissingContext
	}
	return &rc, nil
}

// CallbackResult 回调处理结果，始终以 200 返回
type CallbackResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
	NoteID   string `json:"note_id,omitempty"`
	RecordID string `json:"record_id,omitempty"`
}
