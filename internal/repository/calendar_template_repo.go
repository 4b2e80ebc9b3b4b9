package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/model"
)

// CalendarTemplateRepository 日程模板数据访问接口
type CalendarTemplateRepository interface {
	Create(ctx context.Context, tpl *model.CalendarTemplate) error
	GetByIDForUser(ctx context.Context, id, userID string) (*model.CalendarTemplate, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.CalendarTemplate, int64, error)
	Update(ctx context.Context, tpl *model.CalendarTemplate) error
	TouchLastUsed(ctx context.Context, id, userID string, at time.Time) error
}

type calendarTemplateRepo struct {
	db *gorm.DB
}

// NewCalendarTemplateRepo 创建 CalendarTemplateRepository 实例
func NewCalendarTemplateRepo(db *gorm.DB) CalendarTemplateRepository {
	return &calendarTemplateRepo{db: db}
}

func (r *calendarTemplateRepo) Create(ctx context.Context, tpl *model.CalendarTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *calendarTemplateRepo) GetByIDForUser(ctx context.Context, id, userID string) (*model.CalendarTemplate, error) {
	var tpl model.CalendarTemplate
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *calendarTemplateRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.CalendarTemplate, int64, error) {
	var templates []model.CalendarTemplate
	var total int64

	db := r.db.WithContext(ctx).Model(&model.CalendarTemplate{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&templates).Error
	return templates, total, err
}

// Update 覆盖名称、基础事件与规则，记录不存在时返回 gorm.ErrRecordNotFound
func (r *calendarTemplateRepo) Update(ctx context.Context, tpl *model.CalendarTemplate) error {
	res := r.db.WithContext(ctx).
		Model(&model.CalendarTemplate{}).
		Where("id = ? AND user_id = ?", tpl.ID, tpl.UserID).
		Updates(map[string]interface{}{
			"name":       tpl.Name,
			"base_event": tpl.BaseEvent,
			"rules":      tpl.Rules,
			"updated_at": gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *calendarTemplateRepo) TouchLastUsed(ctx context.Context, id, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CalendarTemplate{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"last_used_at": at,
			"updated_at":   at,
		}).Error
}
