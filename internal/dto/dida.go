package dto

// ── 滴答清单 DTO ──

// ProjectsQuery 清单列表查询，token 为空时使用已保存的 Token
type ProjectsQuery struct {
	Token string `form:"token"`
}

// ProjectResponse 清单
type ProjectResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed,omitempty"`
}
