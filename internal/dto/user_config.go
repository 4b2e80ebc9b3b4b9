package dto

// ── 用户配置 DTO ──

// UserConfigRequest 更新用户配置请求
type UserConfigRequest struct {
	Timezone string `json:"timezone"`
	MBTI     string `json:"mbti"`

	DidaToken             string `json:"dida_token"`
	DidaCookie            string `json:"dida_cookie"`
	DidaProjectID         string `json:"dida_project_id"`
	WeeklyReportProjectID string `json:"weekly_report_project_id"`
	ExcludeProjectName    string `json:"exclude_project_name"`

	CalEnable        bool   `json:"cal_enable"`
	CalServerURL     string `json:"cal_server_url"`
	CalUsername      string `json:"cal_username"`
	CalPassword      string `json:"cal_password"`
	CalLookaheadDays int    `json:"cal_lookahead_days" binding:"omitempty,min=0,max=30"`
	CalendarTarget   string `json:"calendar_target"`

	ScheduleDailyEnabled  bool   `json:"schedule_daily_enabled"`
	ScheduleDailyTime     string `json:"schedule_daily_time"`
	ScheduleWeeklyEnabled bool   `json:"schedule_weekly_enabled"`
	ScheduleWeeklyTime    string `json:"schedule_weekly_time"`
	ScheduleWeeklyDay     int    `json:"schedule_weekly_day" binding:"omitempty,min=0,max=6"`
}

// UserConfigResponse 用户配置响应（敏感字段脱敏）
type UserConfigResponse struct {
	UserConfigRequest
	HasAPIKey bool   `json:"has_api_key"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ── API Key DTO ──

// APIKeyResponse 创建 API Key 响应，明文仅返回一次
type APIKeyResponse struct {
	APIKey    string `json:"api_key"`
	KeyPrefix string `json:"key_prefix"`
	CreatedAt string `json:"created_at"`
}
