package dto

// ── 定时任务 DTO ──

// DispatchResult 一次分发扫描的结果
type DispatchResult struct {
	Status    string   `json:"status"`
	Triggered int      `json:"triggered"`
	Errors    []string `json:"errors"`
}

// MigrateStats 单张表的迁移统计
type MigrateStats struct {
	Total    int `json:"total"`
	Migrated int `json:"migrated"`
	Errors   int `json:"errors"`
}

// MigrateResult 迁移到对象存储的结果
type MigrateResult struct {
	Status  string                  `json:"status"`
	Results map[string]MigrateStats `json:"results"`
}
