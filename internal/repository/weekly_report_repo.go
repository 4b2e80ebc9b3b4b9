package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/model"
)

// WeeklyReportRepository 周报数据访问接口
type WeeklyReportRepository interface {
	Create(ctx context.Context, report *model.WeeklyReport) error
	GetByIDForUser(ctx context.Context, id, userID string) (*model.WeeklyReport, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.WeeklyReport, int64, error)
	UpdateTaskID(ctx context.Context, id, taskID string) error
	Delete(ctx context.Context, id, userID string) error
	ListUnmigrated(ctx context.Context) ([]model.WeeklyReport, error)
	MarkMigrated(ctx context.Context, id, cosKey string) error
}

type weeklyReportRepo struct {
	db *gorm.DB
}

// NewWeeklyReportRepo 创建 WeeklyReportRepository 实例
func NewWeeklyReportRepo(db *gorm.DB) WeeklyReportRepository {
	return &weeklyReportRepo{db: db}
}

func (r *weeklyReportRepo) Create(ctx context.Context, report *model.WeeklyReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *weeklyReportRepo) GetByIDForUser(ctx context.Context, id, userID string) (*model.WeeklyReport, error) {
	var report model.WeeklyReport
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *weeklyReportRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.WeeklyReport, int64, error) {
	var reports []model.WeeklyReport
	var total int64

	db := r.db.WithContext(ctx).Model(&model.WeeklyReport{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("period_start DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&reports).Error
	return reports, total, err
}

func (r *weeklyReportRepo) UpdateTaskID(ctx context.Context, id, taskID string) error {
	return r.db.WithContext(ctx).
		Model(&model.WeeklyReport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dida_task_id": taskID,
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
}

func (r *weeklyReportRepo) Delete(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.WeeklyReport{}).Error
}

// ListUnmigrated 内容仍内联保存、尚未上传对象存储的记录
func (r *weeklyReportRepo) ListUnmigrated(ctx context.Context) ([]model.WeeklyReport, error) {
	var reports []model.WeeklyReport
	err := r.db.WithContext(ctx).
		Where("(cos_key IS NULL OR cos_key = '') AND content <> ''").
		Order("created_at").
		Find(&reports).Error
	return reports, err
}

func (r *weeklyReportRepo) MarkMigrated(ctx context.Context, id, cosKey string) error {
	return r.db.WithContext(ctx).
		Model(&model.WeeklyReport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cos_key":    cosKey,
			"content":    "",
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}
