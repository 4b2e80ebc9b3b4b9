package model

import "time"

// BaseModel 通用审计字段
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Record 每日笔记与周报的公共字段
// Content 与 CosKey 互斥：上传对象存储成功时 Content 为空
type Record struct {
	ID            string  `gorm:"type:uuid;primaryKey"        json:"id"`
	UserID        string  `gorm:"type:uuid;not null;index"    json:"user_id"`
	Title         string  `gorm:"type:varchar(200);not null"  json:"title"`
	Content       string  `gorm:"type:text;not null;default:''" json:"content"`
	DidaTaskID    *string `gorm:"type:varchar(64)"            json:"dida_task_id,omitempty"`
	DidaProjectID *string `gorm:"type:varchar(64)"            json:"dida_project_id,omitempty"`
	CosKey        *string `gorm:"type:varchar(512)"           json:"cos_key,omitempty"`
	BaseModel
}

// StoredInCOS 内容是否保存在对象存储
func (r *Record) StoredInCOS() bool {
	return r.CosKey != nil && *r.CosKey != ""
}
