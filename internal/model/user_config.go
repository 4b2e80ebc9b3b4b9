package model

import (
	"strings"

	"gorm.io/datatypes"
)

// 默认值
const (
	DefaultTimezone         = "Asia/Shanghai"
	DefaultCalLookaheadDays = 2
)

// UserSettings 用户配置（JSONB）
type UserSettings struct {
	Timezone string `json:"timezone,omitempty"`
	MBTI     string `json:"mbti,omitempty"`

	DidaToken             string `json:"dida_token,omitempty"`
	DidaCookie            string `json:"dida_cookie,omitempty"`
	DidaProjectID         string `json:"dida_project_id,omitempty"`
	WeeklyReportProjectID string `json:"weekly_report_project_id,omitempty"`
	ExcludeProjectName    string `json:"exclude_project_name,omitempty"`

	CalEnable        bool   `json:"cal_enable,omitempty"`
	CalServerURL     string `json:"cal_server_url,omitempty"`
	CalUsername      string `json:"cal_username,omitempty"`
	CalPassword      string `json:"cal_password,omitempty"`
	CalLookaheadDays int    `json:"cal_lookahead_days,omitempty"`
	CalendarTarget   string `json:"calendar_target,omitempty"` // 逗号分隔，首个为默认日历

	ScheduleDailyEnabled  bool   `json:"schedule_daily_enabled,omitempty"`
	ScheduleDailyTime     string `json:"schedule_daily_time,omitempty"`
	ScheduleWeeklyEnabled bool   `json:"schedule_weekly_enabled,omitempty"`
	ScheduleWeeklyTime    string `json:"schedule_weekly_time,omitempty"`
	ScheduleWeeklyDay     int    `json:"schedule_weekly_day,omitempty"` // 0=周日
}

// WithDefaults 返回填充默认值后的副本
func (s UserSettings) WithDefaults() UserSettings {
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if s.CalLookaheadDays <= 0 {
		s.CalLookaheadDays = DefaultCalLookaheadDays
	}
	return s
}

// CalendarTargets 拆分 calendar_target
func (s *UserSettings) CalendarTargets() []string {
	var out []string
	for _, name := range strings.Split(s.CalendarTarget, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// CalendarEnabled 是否配置了可用的日历账户
func (s *UserSettings) CalendarEnabled() bool {
	return s.CalEnable && s.CalUsername != "" && s.CalPassword != ""
}

// UserConfig 用户配置表，对应 dida_master_user_config
type UserConfig struct {
	UserID   string                           `gorm:"type:uuid;primaryKey" json:"user_id"`
	Settings datatypes.JSONType[UserSettings] `gorm:"type:jsonb;not null"  json:"settings"`
	BaseModel
}

// TableName 指定表名
func (UserConfig) TableName() string { return "dida_master_user_config" }
