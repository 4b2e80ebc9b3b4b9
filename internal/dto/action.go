package dto

// ── 动作触发 DTO ──

// TextCalendarRequest 文本转日程请求
type TextCalendarRequest struct {
	Text string `json:"text" binding:"required"`
}

// ImageCalendarRequest 图片转日程请求
type ImageCalendarRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}

// CalendarEvent 模型解析出的日程
type CalendarEvent struct {
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	Location    string `json:"location,omitempty"`
	Calendar    string `json:"calendar,omitempty"`
	AllDay      bool   `json:"allDay,omitempty"`
	Description string `json:"description,omitempty"`
}

// CalendarEventsResponse 解析结果
type CalendarEventsResponse struct {
	Events []CalendarEvent `json:"events"`
}

// ListCalendarsQuery 日历列表查询，可携带临时凭证用于测试连接
type ListCalendarsQuery struct {
	ServerURL string `form:"server_url"`
	Username  string `form:"username"`
	Password  string `form:"password"`
}

// CalendarResponse 日历信息
type CalendarResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
