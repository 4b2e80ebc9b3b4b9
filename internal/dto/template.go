package dto

import "encoding/json"

// ── 日程模板 DTO ──

// FieldList 固定字段列表，兼容单个字符串
type FieldList []string

// UnmarshalJSON 接受 "location" 或 ["location","calendar"]
func (f *FieldList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*f = nil
		if one != "" {
			*f = FieldList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*f = many
	return nil
}

// TemplateRulesInput 模板规则
type TemplateRulesInput struct {
	FixedFields FieldList `json:"fixed_fields"`
	TitleRule   string    `json:"title_rule"`
}

// CreateTemplateRequest 创建模板请求
type CreateTemplateRequest struct {
	Name      string                 `json:"name"       binding:"required"`
	BaseEvent map[string]interface{} `json:"base_event" binding:"required"`
	Rules     *TemplateRulesInput    `json:"rules"`
}

// UpdateTemplateRequest 更新模板请求，未提供的字段沿用原值
type UpdateTemplateRequest struct {
	Name      *string                `json:"name"`
	BaseEvent map[string]interface{} `json:"base_event"`
	Rules     *TemplateRulesInput    `json:"rules"`
}

// TemplateRules 模板规则响应
type TemplateRules struct {
	FixedFields []string `json:"fixed_fields"`
	TitleRule   string   `json:"title_rule"`
}

// TemplateResponse 模板详情
type TemplateResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	BaseEvent  map[string]interface{} `json:"base_event"`
	Rules      TemplateRules          `json:"rules"`
	LastUsedAt string                 `json:"last_used_at,omitempty"`
	CreatedAt  string                 `json:"created_at"`
	UpdatedAt  string                 `json:"updated_at"`
}

// RecentEventsQuery 最近日程查询
type RecentEventsQuery struct {
	Limit        int `form:"limit"         binding:"omitempty,min=1"`
	LookbackDays int `form:"lookback_days" binding:"omitempty,min=1"`
}

// GetLimit 默认 10，最多 100
func (q *RecentEventsQuery) GetLimit() int {
	switch {
	case q.Limit <= 0:
		return 10
	case q.Limit > 100:
		return 100
	}
	return q.Limit
}

// GetLookbackDays 默认 30，最多 365
func (q *RecentEventsQuery) GetLookbackDays() int {
	switch {
	case q.LookbackDays <= 0:
		return 30
	case q.LookbackDays > 365:
		return 365
	}
	return q.LookbackDays
}

// RecentEvent 最近日程，用于从已有事件创建模板
type RecentEvent struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	Location string `json:"location,omitempty"`
	Calendar string `json:"calendar,omitempty"`
}

// RecentEventsResponse 最近日程列表
type RecentEventsResponse struct {
	Events []RecentEvent `json:"events"`
}

// TemplateCalendarRequest 按模板生成日程请求
type TemplateCalendarRequest struct {
	Text       string `json:"text"        binding:"required"`
	TemplateID string `json:"template_id" binding:"required"`
}

// TemplateEventResponse 合并后的日程
type TemplateEventResponse struct {
	Event map[string]interface{} `json:"event"`
}
