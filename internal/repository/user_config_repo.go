package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Redwinam/dida-master/internal/model"
)

// UserConfigRepository 用户配置数据访问接口
type UserConfigRepository interface {
	List(ctx context.Context) ([]model.UserConfig, error)
	Get(ctx context.Context, userID string) (*model.UserConfig, error)
	Upsert(ctx context.Context, cfg *model.UserConfig) error
}

type userConfigRepo struct {
	db *gorm.DB
}

// NewUserConfigRepo 创建 UserConfigRepository 实例
func NewUserConfigRepo(db *gorm.DB) UserConfigRepository {
	return &userConfigRepo{db: db}
}

func (r *userConfigRepo) List(ctx context.Context) ([]model.UserConfig, error) {
	var configs []model.UserConfig
	err := r.db.WithContext(ctx).Order("user_id").Find(&configs).Error
	return configs, err
}

func (r *userConfigRepo) Get(ctx context.Context, userID string) (*model.UserConfig, error) {
	var cfg model.UserConfig
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert 按 user_id 插入或覆盖 settings
func (r *userConfigRepo) Upsert(ctx context.Context, cfg *model.UserConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"settings":   cfg.Settings,
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(cfg).Error
}
