package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/pkg/cos"
)

// ── 历史记录模块业务错误 ──

var (
	ErrRecordNotFound     = errors.New("记录不存在")
	ErrStoreNotConfigured = errors.New("对象存储未配置")
)

// RecordService 每日笔记与周报历史记录接口
type RecordService interface {
	ListDailyNotes(ctx context.Context, userID string, page *dto.PaginationRequest) ([]dto.RecordItem, int64, error)
	GetDailyNote(ctx context.Context, userID, id string) (*dto.RecordDetail, error)
	DeleteDailyNote(ctx context.Context, userID, id string) error

	ListWeeklyReports(ctx context.Context, userID string, page *dto.PaginationRequest) ([]dto.RecordItem, int64, error)
	GetWeeklyReport(ctx context.Context, userID, id string) (*dto.RecordDetail, error)
	DeleteWeeklyReport(ctx context.Context, userID, id string) error

	// MigrateToCOS 将内联保存的正文迁移到对象存储
	MigrateToCOS(ctx context.Context) (*dto.MigrateResult, error)
}

type recordService struct {
	repo   *repository.Repository
	store  ObjectStore
	logger *zap.Logger
}

// NewRecordService 创建 RecordService 实例
func NewRecordService(repo *repository.Repository, store ObjectStore, logger *zap.Logger) RecordService {
	return &recordService{repo: repo, store: store, logger: logger}
}

const dateLayout = "2006-01-02"

func dailyNoteItem(n *model.DailyNote) dto.RecordItem {
	item := recordItem(&n.Record)
	item.NoteDate = n.NoteDate.Format(dateLayout)
	return item
}

func weeklyReportItem(r *model.WeeklyReport) dto.RecordItem {
	item := recordItem(&r.Record)
	item.PeriodStart = r.PeriodStart.Format(dateLayout)
	item.PeriodEnd = r.PeriodEnd.Format(dateLayout)
	return item
}

func recordItem(r *model.Record) dto.RecordItem {
	return dto.RecordItem{
		ID:            r.ID,
		Title:         r.Title,
		DidaTaskID:    r.DidaTaskID,
		DidaProjectID: r.DidaProjectID,
		StoredInCOS:   r.StoredInCOS(),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}

// ────────────────────── Daily notes ──────────────────────

func (s *recordService) ListDailyNotes(ctx context.Context, userID string, page *dto.PaginationRequest) ([]dto.RecordItem, int64, error) {
	notes, total, err := s.repo.DailyNote.ListByUser(ctx, userID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		s.logger.Error("查询每日笔记失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}
	items := make([]dto.RecordItem, 0, len(notes))
	for i := range notes {
		items = append(items, dailyNoteItem(&notes[i]))
	}
	return items, total, nil
}

func (s *recordService) GetDailyNote(ctx context.Context, userID, id string) (*dto.RecordDetail, error) {
	note, err := s.repo.DailyNote.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.detail(ctx, dailyNoteItem(note), &note.Record), nil
}

func (s *recordService) DeleteDailyNote(ctx context.Context, userID, id string) error {
	note, err := s.repo.DailyNote.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return notFoundOr(err)
	}
	s.deleteObject(ctx, &note.Record)
	return s.repo.DailyNote.Delete(ctx, id, userID)
}

// ────────────────────── Weekly reports ──────────────────────

func (s *recordService) ListWeeklyReports(ctx context.Context, userID string, page *dto.PaginationRequest) ([]dto.RecordItem, int64, error) {
	reports, total, err := s.repo.WeeklyReport.ListByUser(ctx, userID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		s.logger.Error("查询周报失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}
	items := make([]dto.RecordItem, 0, len(reports))
	for i := range reports {
		items = append(items, weeklyReportItem(&reports[i]))
	}
	return items, total, nil
}

func (s *recordService) GetWeeklyReport(ctx context.Context, userID, id string) (*dto.RecordDetail, error) {
	report, err := s.repo.WeeklyReport.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.detail(ctx, weeklyReportItem(report), &report.Record), nil
}

func (s *recordService) DeleteWeeklyReport(ctx context.Context, userID, id string) error {
	report, err := s.repo.WeeklyReport.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return notFoundOr(err)
	}
	s.deleteObject(ctx, &report.Record)
	return s.repo.WeeklyReport.Delete(ctx, id, userID)
}

// ────────────────────── 辅助函数 ──────────────────────

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// detail 读取正文；对象存储读取失败时返回 CDN 签名地址
func (s *recordService) detail(ctx context.Context, item dto.RecordItem, rec *model.Record) *dto.RecordDetail {
	d := &dto.RecordDetail{RecordItem: item}
	if !rec.StoredInCOS() {
		content := rec.Content
		d.Content = &content
		return d
	}

	stored, err := s.store.FetchRecord(ctx, *rec.CosKey)
	if err == nil {
		d.Content = &stored.Content
		return d
	}

	s.logger.Warn("读取对象存储失败，返回 CDN 地址", zap.String("key", *rec.CosKey), zap.Error(err))
	if url, uerr := s.store.SignedURL(*rec.CosKey); uerr == nil {
		d.CDNURL = url
	}
	return d
}

// deleteObject 尽力删除对象，失败只记录日志
func (s *recordService) deleteObject(ctx context.Context, rec *model.Record) {
	if !rec.StoredInCOS() || s.store == nil || !s.store.Enabled() {
		return
	}
	if err := s.store.Delete(ctx, *rec.CosKey); err != nil {
		s.logger.Warn("删除对象存储内容失败", zap.String("key", *rec.CosKey), zap.Error(err))
	}
}

// ────────────────────── MigrateToCOS ──────────────────────

func (s *recordService) MigrateToCOS(ctx context.Context) (*dto.MigrateResult, error) {
	if s.store == nil || !s.store.Enabled() {
		return nil, ErrStoreNotConfigured
	}

	result := &dto.MigrateResult{Status: "ok", Results: map[string]dto.MigrateStats{}}

	notes, err := s.repo.DailyNote.ListUnmigrated(ctx)
	if err != nil {
		return nil, err
	}
	var daily dto.MigrateStats
	daily.Total = len(notes)
	for i := range notes {
		n := &notes[i]
		key := cos.DailyNoteKey(n.UserID, n.NoteDate.Format(dateLayout), n.ID)
		if s.migrateOne(ctx, key, &n.Record, s.repo.DailyNote.MarkMigrated) {
			daily.Migrated++
		} else {
			daily.Errors++
		}
	}
	result.Results["daily_notes"] = daily

	reports, err := s.repo.WeeklyReport.ListUnmigrated(ctx)
	if err != nil {
		return nil, err
	}
	var weekly dto.MigrateStats
	weekly.Total = len(reports)
	for i := range reports {
		r := &reports[i]
		key := cos.WeeklyReportKey(r.UserID, r.PeriodStart.Format(dateLayout), r.PeriodEnd.Format(dateLayout), r.ID)
		if s.migrateOne(ctx, key, &r.Record, s.repo.WeeklyReport.MarkMigrated) {
			weekly.Migrated++
		} else {
			weekly.Errors++
		}
	}
	result.Results["weekly_reports"] = weekly

	s.logger.Info("迁移到对象存储完成",
		zap.Int("daily_migrated", daily.Migrated),
		zap.Int("weekly_migrated", weekly.Migrated),
		zap.Int("errors", daily.Errors+weekly.Errors),
	)
	return result, nil
}

func (s *recordService) migrateOne(ctx context.Context, key string, rec *model.Record, mark func(ctx context.Context, id, cosKey string) error) bool {
	err := s.store.UploadRecord(ctx, key, &cos.StoredRecord{
		Title:     rec.Title,
		Content:   rec.Content,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("迁移上传失败", zap.String("record_id", rec.ID), zap.Error(err))
		return false
	}
	if err := mark(ctx, rec.ID, key); err != nil {
		s.logger.Error("迁移更新记录失败", zap.String("record_id", rec.ID), zap.Error(err))
		return false
	}
	return true
}
