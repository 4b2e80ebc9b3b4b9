package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/model"
)

// DailyNoteRepository 每日笔记数据访问接口
type DailyNoteRepository interface {
	Create(ctx context.Context, note *model.DailyNote) error
	GetByIDForUser(ctx context.Context, id, userID string) (*model.DailyNote, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.DailyNote, int64, error)
	UpdateTaskID(ctx context.Context, id, taskID string) error
	Delete(ctx context.Context, id, userID string) error
	ListUnmigrated(ctx context.Context) ([]model.DailyNote, error)
	MarkMigrated(ctx context.Context, id, cosKey string) error
}

type dailyNoteRepo struct {
	db *gorm.DB
}

// NewDailyNoteRepo 创建 DailyNoteRepository 实例
func NewDailyNoteRepo(db *gorm.DB) DailyNoteRepository {
	return &dailyNoteRepo{db: db}
}

func (r *dailyNoteRepo) Create(ctx context.Context, note *model.DailyNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *dailyNoteRepo) GetByIDForUser(ctx context.Context, id, userID string) (*model.DailyNote, error) {
	var note model.DailyNote
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *dailyNoteRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.DailyNote, int64, error) {
	var notes []model.DailyNote
	var total int64

	db := r.db.WithContext(ctx).Model(&model.DailyNote{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("note_date DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notes).Error
	return notes, total, err
}

func (r *dailyNoteRepo) UpdateTaskID(ctx context.Context, id, taskID string) error {
	return r.db.WithContext(ctx).
		Model(&model.DailyNote{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dida_task_id": taskID,
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
}

func (r *dailyNoteRepo) Delete(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.DailyNote{}).Error
}

// ListUnmigrated 内容仍内联保存、尚未上传对象存储的记录
func (r *dailyNoteRepo) ListUnmigrated(ctx context.Context) ([]model.DailyNote, error) {
	var notes []model.DailyNote
	err := r.db.WithContext(ctx).
		Where("(cos_key IS NULL OR cos_key = '') AND content <> ''").
		Order("created_at").
		Find(&notes).Error
	return notes, err
}

func (r *dailyNoteRepo) MarkMigrated(ctx context.Context, id, cosKey string) error {
	return r.db.WithContext(ctx).
		Model(&model.DailyNote{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cos_key":    cosKey,
			"content":    "",
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}
