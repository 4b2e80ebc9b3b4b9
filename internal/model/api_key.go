package model

import "time"

// APIKey 用户 API Key，对应 dida_master_api_keys
// 明文只在创建时返回一次，库中仅保存前缀与 bcrypt 哈希
type APIKey struct {
	ID         string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;uniqueIndex"                 json:"user_id"`
	KeyPrefix  string     `gorm:"type:varchar(16);not null;index"                json:"key_prefix"`
	KeyHash    string     `gorm:"type:varchar(100);not null"                     json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (APIKey) TableName() string { return "dida_master_api_keys" }
