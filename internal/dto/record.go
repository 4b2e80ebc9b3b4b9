package dto

// ── 历史记录 DTO ──

// RecordItem 列表项（不含正文）
type RecordItem struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	NoteDate      string  `json:"note_date,omitempty"`
	PeriodStart   string  `json:"period_start,omitempty"`
	PeriodEnd     string  `json:"period_end,omitempty"`
	DidaTaskID    *string `json:"dida_task_id,omitempty"`
	DidaProjectID *string `json:"dida_project_id,omitempty"`
	StoredInCOS   bool    `json:"stored_in_cos"`
	CreatedAt     string  `json:"created_at"`
}

// RecordDetail 记录详情
// 对象存储读取失败时 Content 为 null，并提供 CDNURL 供前端直接拉取
type RecordDetail struct {
	RecordItem
	Content *string `json:"content"`
	CDNURL  string  `json:"cdn_url,omitempty"`
}
