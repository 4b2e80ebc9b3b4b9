package model

import (
	"time"

	"gorm.io/datatypes"
)

// TemplateRules 日程模板规则
// FixedFields 中的字段始终取 BaseEvent 的值，其余字段由模型解析
type TemplateRules struct {
	FixedFields []string `json:"fixed_fields"`
	TitleRule   string   `json:"title_rule"`
}

// IsFixed 字段是否由模板固定
func (r TemplateRules) IsFixed(field string) bool {
	for _, f := range r.FixedFields {
		if f == field {
			return true
		}
	}
	return false
}

// CalendarTemplate 日程模板，对应 dida_master_calendar_templates
type CalendarTemplate struct {
	ID         string                            `gorm:"type:uuid;primaryKey"        json:"id"`
	UserID     string                            `gorm:"type:uuid;not null;index"    json:"user_id"`
	Name       string                            `gorm:"type:varchar(100);not null"  json:"name"`
	BaseEvent  datatypes.JSONMap                 `gorm:"type:jsonb;not null"         json:"base_event"`
	Rules      datatypes.JSONType[TemplateRules] `gorm:"type:jsonb;not null"         json:"rules"`
	LastUsedAt *time.Time                        `json:"last_used_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (CalendarTemplate) TableName() string { return "dida_master_calendar_templates" }
