package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/pkg/gateway"
)

// ── 动作触发模块业务错误 ──

var (
	ErrConfigNotFound       = errors.New("Config not found")
	ErrDailyNotConfigured   = errors.New("未配置滴答清单 Token 或笔记目标清单")
	ErrWeeklyNotConfigured  = errors.New("未配置滴答清单 Token 或周报目标清单")
	ErrContextCollectFailed = errors.New("收集任务上下文失败")
)

// ActionService 生成动作触发接口
// 两个动作都以异步模式调用生成网关，结果由回调接口落库并写回滴答清单
type ActionService interface {
	TriggerDaily(ctx context.Context, userID, userToken string) (*dto.StatusResponse, error)
	TriggerWeekly(ctx context.Context, userID, userToken string) (*dto.StatusResponse, error)
}

type actionService struct {
	repo      *repository.Repository
	context   ContextService
	generator Generator
	baseURL   string
	now       func() time.Time
	logger    *zap.Logger
}

// NewActionService 创建 ActionService 实例
func NewActionService(baseURL string, repo *repository.Repository, contextSvc ContextService, generator Generator, logger *zap.Logger) ActionService {
	return &actionService{
		repo:      repo,
		context:   contextSvc,
		generator: generator,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
		logger:    logger,
	}
}

// loadSettings 读取用户配置并填充默认值
func loadSettings(ctx context.Context, repo *repository.Repository, userID string) (*model.UserSettings, error) {
	cfg, err := repo.UserConfig.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	settings := cfg.Settings.Data().WithDefaults()
	return &settings, nil
}

func (s *actionService) callbackURL(kind string) string {
	return s.baseURL + "/api/v1/callbacks/" + kind
}

// ────────────────────── TriggerDaily ──────────────────────

func (s *actionService) TriggerDaily(ctx context.Context, userID, userToken string) (*dto.StatusResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if settings.DidaToken == "" || settings.DidaProjectID == "" {
		return nil, ErrDailyNotConfigured
	}

	now := s.now()
	loc := loadLocation(settings.Timezone)

	tasks, err := s.context.CollectTasks(ctx, settings)
	if err != nil {
		s.logger.Error("收集每日任务失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrContextCollectFailed, err)
	}
	events := s.context.CollectEvents(ctx, settings, TodayWindow(now, loc, settings.CalLookaheadDays))

	resume := dto.ResumeContext{
		Kind:          dto.KindDailyNote,
		UserID:        userID,
		DidaToken:     settings.DidaToken,
		DidaProjectID: settings.DidaProjectID,
		Timezone:      settings.Timezone,
		NoteDate:      now.In(loc).Format("2006-01-02"),
	}

	_, err = s.generator.Generate(ctx, &gateway.Request{
		ServiceKey:      gateway.ServiceDailyNote,
		Input:           gateway.Input{Type: "text", Prompt: dailyPrompt(now, loc, settings.MBTI, events, tasks)},
		UserID:          userID,
		CallbackURL:     s.callbackURL(dto.KindDailyNote),
		CallbackPayload: resume,
		UserToken:       userToken,
	})
	if err != nil {
		s.logger.Error("提交每日笔记生成失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("每日笔记生成已提交", zap.String("user_id", userID), zap.String("note_date", resume.NoteDate))
	return &dto.StatusResponse{Status: "queued", Message: "每日笔记生成中，完成后将写入滴答清单"}, nil
}

// ────────────────────── TriggerWeekly ──────────────────────

func (s *actionService) TriggerWeekly(ctx context.Context, userID, userToken string) (*dto.StatusResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if settings.DidaToken == "" || settings.WeeklyReportProjectID == "" {
		return nil, ErrWeeklyNotConfigured
	}

	now := s.now()
	loc := loadLocation(settings.Timezone)
	since := now.AddDate(0, 0, -7)

	done, pending, err := s.context.CollectWeeklyTasks(ctx, settings, since, now)
	if err != nil {
		s.logger.Error("收集周报任务失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrContextCollectFailed, err)
	}

	wc := weeklyContext{
		Done:       done,
		Pending:    pending,
		PastEvents: s.context.CollectEvents(ctx, settings, TimeWindow{Start: since, End: now}),
		NextEvents: s.context.CollectEvents(ctx, settings, TimeWindow{Start: now, End: now.AddDate(0, 0, 7)}),
		DateStr:    zhDate(since, loc) + " - " + zhDate(now, loc),
		Now:        now,
		Location:   loc,
		MBTI:       settings.MBTI,
	}

	resume := dto.ResumeContext{
		Kind:          dto.KindWeeklyReport,
		UserID:        userID,
		DidaToken:     settings.DidaToken,
		DidaProjectID: settings.WeeklyReportProjectID,
		Timezone:      settings.Timezone,
		PeriodStart:   since.In(loc).Format("2006-01-02"),
		PeriodEnd:     now.In(loc).Format("2006-01-02"),
		DateStr:       wc.DateStr,
	}

	_, err = s.generator.Generate(ctx, &gateway.Request{
		ServiceKey:      gateway.ServiceWeeklyReport,
		Input:           gateway.Input{Type: "text", Prompt: weeklyPrompt(wc)},
		UserID:          userID,
		CallbackURL:     s.callbackURL(dto.KindWeeklyReport),
		CallbackPayload: resume,
		UserToken:       userToken,
	})
	if err != nil {
		s.logger.Error("提交周报生成失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("周报生成已提交", zap.String("user_id", userID), zap.String("period", wc.DateStr))
	return &dto.StatusResponse{Status: "queued", Message: "周报生成中，完成后将写入滴答清单"}, nil
}
