package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/pkg/cos"
	"github.com/Redwinam/dida-master/pkg/dida"
	"github.com/Redwinam/dida-master/pkg/gateway"
)

// CallbackService 生成网关回调处理接口
//
// 处理流程：校验 → 落库（对象存储优先，失败时内联保存）→ 写回滴答清单笔记
// 落库失败不阻断笔记写回；校验失败时不产生任何写操作
type CallbackService interface {
	HandleDaily(ctx context.Context, req *dto.CallbackRequest) *dto.CallbackResult
	HandleWeekly(ctx context.Context, req *dto.CallbackRequest) *dto.CallbackResult
}

type callbackService struct {
	repo   *repository.Repository
	store  ObjectStore
	tasks  TaskClient
	now    func() time.Time
	logger *zap.Logger
}

// NewCallbackService 创建 CallbackService 实例
func NewCallbackService(repo *repository.Repository, store ObjectStore, tasks TaskClient, logger *zap.Logger) CallbackService {
	return &callbackService{repo: repo, store: store, tasks: tasks, now: time.Now, logger: logger}
}

// ExtractResultContent 从回调 result 中提取文本：字符串原样使用，
// 否则依次尝试 choices[0].message.content 与 content，最后回退为紧凑 JSON
func ExtractResultContent(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		if s := gateway.ChoiceContent(v); s != "" {
			return s
		}
		if s, ok := v["content"].(string); ok && s != "" {
			return s
		}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(data)
}

// validate 返回 nil 上下文时 result 即为失败结果
func (s *callbackService) validate(kind string, req *dto.CallbackRequest) (*dto.ResumeContext, *dto.CallbackResult) {
	if !req.Success || req.Error != "" {
		s.logger.Warn("生成失败回调", zap.String("kind", kind), zap.String("error", req.Error))
		return nil, &dto.CallbackResult{Status: dto.CallbackStatusFailed, Error: req.Error}
	}

	rc, err := dto.DecodeResumeContext(req.Payload)
	if err != nil {
		s.logger.Warn("回调上下文无效", zap.String("kind", kind), zap.Error(err))
		return nil, &dto.CallbackResult{Status: dto.CallbackStatusFailed, Error: err.Error()}
	}
	if rc.Kind != "" && rc.Kind != kind {
		s.logger.Warn("回调类型与上下文不一致", zap.String("kind", kind), zap.String("context_kind", rc.Kind))
		return nil, &dto.CallbackResult{Status: dto.CallbackStatusFailed, Error: "Callback kind mismatch"}
	}
	return rc, nil
}

// ────────────────────── HandleDaily ──────────────────────

func (s *callbackService) HandleDaily(ctx context.Context, req *dto.CallbackRequest) *dto.CallbackResult {
	rc, failed := s.validate(dto.KindDailyNote, req)
	if failed != nil {
		return failed
	}

	now := s.now()
	loc := loadLocation(rc.Timezone)
	content := ExtractResultContent(req.Result)
	noteDate := parseDateOr(rc.NoteDate, loc, now.In(loc))
	title := zhLongDate(noteDate, loc)

	var recordID string
	if rc.UserID == "" {
		s.logger.Warn("回调上下文缺少 user_id，跳过落库", zap.String("kind", dto.KindDailyNote))
	} else {
		recordID = uuid.NewString()
		note := &model.DailyNote{
			Record:   s.buildRecord(ctx, recordID, rc, title, content, cos.DailyNoteKey(rc.UserID, noteDate.Format("2006-01-02"), recordID), now),
			NoteDate: noteDate,
		}
		if err := s.repo.DailyNote.Create(ctx, note); err != nil {
			s.logger.Error("保存每日笔记记录失败", zap.String("record_id", recordID), zap.Error(err))
			recordID = ""
		}
	}

	return s.notify(ctx, rc, title, content, recordID, func(taskID string) error {
		return s.repo.DailyNote.UpdateTaskID(ctx, recordID, taskID)
	})
}

// ────────────────────── HandleWeekly ──────────────────────

func (s *callbackService) HandleWeekly(ctx context.Context, req *dto.CallbackRequest) *dto.CallbackResult {
	rc, failed := s.validate(dto.KindWeeklyReport, req)
	if failed != nil {
		return failed
	}

	now := s.now()
	loc := loadLocation(rc.Timezone)
	content := ExtractResultContent(req.Result)

	periodEnd := parseDateOr(rc.PeriodEnd, loc, now.In(loc))
	periodStart := parseDateOr(rc.PeriodStart, loc, periodEnd.AddDate(0, 0, -7))
	dateStr := rc.DateStr
	if dateStr == "" {
		dateStr = zhDate(periodStart, loc) + " - " + zhDate(periodEnd, loc)
	}
	title := "周报 " + dateStr

	var recordID string
	if rc.UserID == "" {
		s.logger.Warn("回调上下文缺少 user_id，跳过落库", zap.String("kind", dto.KindWeeklyReport))
	} else {
		recordID = uuid.NewString()
		key := cos.WeeklyReportKey(rc.UserID, periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"), recordID)
		report := &model.WeeklyReport{
			Record:      s.buildRecord(ctx, recordID, rc, title, content, key, now),
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
		if err := s.repo.WeeklyReport.Create(ctx, report); err != nil {
			s.logger.Error("保存周报记录失败", zap.String("record_id", recordID), zap.Error(err))
			recordID = ""
		}
	}

	return s.notify(ctx, rc, title, content, recordID, func(taskID string) error {
		return s.repo.WeeklyReport.UpdateTaskID(ctx, recordID, taskID)
	})
}

// buildRecord 上传对象存储；成功时只保存 cos_key，失败或未配置时内联保存正文
func (s *callbackService) buildRecord(ctx context.Context, id string, rc *dto.ResumeContext, title, content, key string, now time.Time) model.Record {
	projectID := rc.DidaProjectID
	rec := model.Record{
		ID:            id,
		UserID:        rc.UserID,
		Title:         title,
		DidaProjectID: &projectID,
	}

	if s.store != nil && s.store.Enabled() {
		err := s.store.UploadRecord(ctx, key, &cos.StoredRecord{
			Title:     title,
			Content:   content,
			CreatedAt: now.UTC().Format(time.RFC3339),
		})
		if err == nil {
			rec.CosKey = &key
			return rec
		}
		s.logger.Error("上传对象存储失败，改为内联保存", zap.String("key", key), zap.Error(err))
	}

	rec.Content = content
	return rec
}

func (s *callbackService) notify(ctx context.Context, rc *dto.ResumeContext, title, content, recordID string, saveTaskID func(string) error) *dto.CallbackResult {
	timezone := rc.Timezone
	if timezone == "" {
		timezone = model.DefaultTimezone
	}

	task, err := s.tasks.CreateNote(ctx, rc.DidaToken, &dida.Note{
		ProjectID: rc.DidaProjectID,
		Title:     title,
		Content:   content,
		TimeZone:  timezone,
	}, s.now())
	if err != nil {
		s.logger.Error("创建滴答清单笔记失败", zap.String("title", title), zap.Error(err))
		return &dto.CallbackResult{Status: dto.CallbackStatusError, Message: err.Error(), RecordID: recordID}
	}

	if recordID != "" && task.ID != "" {
		if err := saveTaskID(task.ID); err != nil {
			s.logger.Warn("回写笔记 ID 失败", zap.String("record_id", recordID), zap.Error(err))
		}
	}

	s.logger.Info("回调处理完成", zap.String("title", title), zap.String("note_id", task.ID))
	return &dto.CallbackResult{Status: dto.CallbackStatusSuccess, NoteID: task.ID, RecordID: recordID}
}

func parseDateOr(s string, loc *time.Location, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return fallback
	}
	return d
}
