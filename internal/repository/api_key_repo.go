package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Redwinam/dida-master/internal/model"
)

// APIKeyRepository API Key 数据访问接口
type APIKeyRepository interface {
	List(ctx context.Context) ([]model.APIKey, error)
	GetByUserID(ctx context.Context, userID string) (*model.APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error)
	Upsert(ctx context.Context, key *model.APIKey) error
	DeleteByUserID(ctx context.Context, userID string) error
	TouchLastUsed(ctx context.Context, id string) error
}

type apiKeyRepo struct {
	db *gorm.DB
}

// NewAPIKeyRepo 创建 APIKeyRepository 实例
func NewAPIKeyRepo(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepo{db: db}
}

func (r *apiKeyRepo) List(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := r.db.WithContext(ctx).Find(&keys).Error
	return keys, err
}

func (r *apiKeyRepo) GetByUserID(ctx context.Context, userID string) (*model.APIKey, error) {
	var key model.APIKey
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepo) FindByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := r.db.WithContext(ctx).
		Where("key_prefix = ?", prefix).
		Find(&keys).Error
	return keys, err
}

// Upsert 每个用户仅保留一个 Key，重复创建即轮换
func (r *apiKeyRepo) Upsert(ctx context.Context, key *model.APIKey) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"key_prefix":   key.KeyPrefix,
				"key_hash":     key.KeyHash,
				"last_used_at": nil,
				"updated_at":   gorm.Expr("NOW()"),
			}),
		}).
		Create(key).Error
}

func (r *apiKeyRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.APIKey{}).Error
}

func (r *apiKeyRepo) TouchLastUsed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", gorm.Expr("NOW()")).Error
}
