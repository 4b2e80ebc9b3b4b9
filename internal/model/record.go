package model

import "time"

// DailyNote 每日笔记，对应 dida_master_daily_notes
type DailyNote struct {
	Record
	NoteDate time.Time `gorm:"type:date;not null" json:"note_date"`
}

// TableName 指定表名
func (DailyNote) TableName() string { return "dida_master_daily_notes" }

// WeeklyReport 周报，对应 dida_master_weekly_reports
type WeeklyReport struct {
	Record
	PeriodStart time.Time `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null" json:"period_end"`
}

// TableName 指定表名
func (WeeklyReport) TableName() string { return "dida_master_weekly_reports" }
