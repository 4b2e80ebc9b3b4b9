package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	UserConfig   UserConfigRepository
	APIKey       APIKeyRepository
	DailyNote    DailyNoteRepository
	WeeklyReport WeeklyReportRepository
	Template     CalendarTemplateRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		UserConfig:   NewUserConfigRepo(db),
		APIKey:       NewAPIKeyRepo(db),
		DailyNote:    NewDailyNoteRepo(db),
		WeeklyReport: NewWeeklyReportRepo(db),
		Template:     NewCalendarTemplateRepo(db),
	}
}
