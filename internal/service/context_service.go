package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/pkg/caldav"
	"github.com/Redwinam/dida-master/pkg/dida"
)

// TimeWindow 日历查询区间
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// TodayWindow 从本地今日零点到零点之后 lookaheadDays 天
// lookaheadDays 不足 1 时按 1 天处理，保证至少覆盖今天
func TodayWindow(now time.Time, loc *time.Location, lookaheadDays int) TimeWindow {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if lookaheadDays < 1 {
		lookaheadDays = 1
	}
	return TimeWindow{Start: start, End: start.AddDate(0, 0, lookaheadDays)}
}

// ContextService 生成上下文聚合接口
type ContextService interface {
	// CollectTasks 汇总未排除清单中的全部任务
	CollectTasks(ctx context.Context, s *model.UserSettings) (string, error)
	// CollectWeeklyTasks 返回 since 以来已完成任务与当前未完成任务两段上下文
	CollectWeeklyTasks(ctx context.Context, s *model.UserSettings, since, now time.Time) (done, pending string, err error)
	// CollectEvents 汇总所有日历在区间内的事件；日历未启用时返回“无”
	CollectEvents(ctx context.Context, s *model.UserSettings, window TimeWindow) string
	// ListEvents 读取所有日历在区间内的原始事件，单个日历失败时跳过
	ListEvents(ctx context.Context, s *model.UserSettings, window TimeWindow) ([]caldav.Event, error)
}

type contextService struct {
	tasks     TaskClient
	calendars CalendarFactory
	retries   int
	backoff   time.Duration
	logger    *zap.Logger
}

// NewContextService 创建 ContextService 实例
func NewContextService(cfg *config.CalDAVConfig, tasks TaskClient, calendars CalendarFactory, logger *zap.Logger) ContextService {
	retries := cfg.Retries
	if retries < 1 {
		retries = 3
	}
	return &contextService{
		tasks:     tasks,
		calendars: calendars,
		retries:   retries,
		backoff:   cfg.RetryBackoff,
		logger:    logger,
	}
}

// ────────────────────── Tasks ──────────────────────

func (s *contextService) CollectTasks(ctx context.Context, cfg *model.UserSettings) (string, error) {
	projects, err := s.tasks.Projects(ctx, cfg.DidaToken)
	if err != nil {
		return "", fmt.Errorf("获取清单列表失败: %w", err)
	}
	pending := s.pendingTasks(ctx, cfg, projects)
	return FormatTasks(pending, projects), nil
}

func (s *contextService) CollectWeeklyTasks(ctx context.Context, cfg *model.UserSettings, since, now time.Time) (string, string, error) {
	projects, err := s.tasks.Projects(ctx, cfg.DidaToken)
	if err != nil {
		return "", "", fmt.Errorf("获取清单列表失败: %w", err)
	}
	excluded := newProjectFilter(cfg, projects)

	var done []dida.Task
	completed, err := s.tasks.CompletedTasks(ctx, cfg.DidaToken, cfg.DidaCookie, since, now)
	if err != nil {
		s.logger.Warn("获取已完成任务失败", zap.Error(err))
	}
	for _, t := range completed {
		if !excluded(t.ProjectID) {
			done = append(done, t)
		}
	}

	pending := s.pendingTasks(ctx, cfg, projects)
	return FormatTasks(done, projects), FormatTasks(pending, projects), nil
}

func (s *contextService) pendingTasks(ctx context.Context, cfg *model.UserSettings, projects []dida.Project) []dida.Task {
	excluded := newProjectFilter(cfg, projects)

	var all []dida.Task
	for _, p := range projects {
		if excluded(p.ID) {
			continue
		}
		tasks, err := s.tasks.ProjectTasks(ctx, cfg.DidaToken, p.ID)
		if err != nil {
			s.logger.Warn("获取清单任务失败，已跳过",
				zap.String("project_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		all = append(all, tasks...)
	}
	return all
}

// newProjectFilter 排除名称在排除列表中的清单，以及笔记与周报的目标清单
func newProjectFilter(cfg *model.UserSettings, projects []dida.Project) func(projectID string) bool {
	names := make(map[string]bool)
	for _, raw := range strings.Split(cfg.ExcludeProjectName, ",") {
		name := strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))
		if name != "" {
			names[name] = true
		}
	}

	ids := make(map[string]bool)
	for _, p := range projects {
		if names[p.Name] {
			ids[p.ID] = true
		}
	}
	if cfg.DidaProjectID != "" {
		ids[cfg.DidaProjectID] = true
	}
	if cfg.WeeklyReportProjectID != "" {
		ids[cfg.WeeklyReportProjectID] = true
	}

	return func(projectID string) bool { return ids[projectID] }
}

// ────────────────────── Events ──────────────────────

func (s *contextService) CollectEvents(ctx context.Context, cfg *model.UserSettings, window TimeWindow) string {
	if !cfg.CalendarEnabled() {
		return noEventsText
	}
	events, err := s.ListEvents(ctx, cfg, window)
	if err != nil {
		s.logger.Warn("收集日历事件失败", zap.Error(err))
		return noEventsText
	}
	return FormatEvents(events, loadLocation(cfg.Timezone))
}

func (s *contextService) ListEvents(ctx context.Context, cfg *model.UserSettings, window TimeWindow) ([]caldav.Event, error) {
	if cfg.CalUsername == "" || cfg.CalPassword == "" {
		return nil, ErrCalendarNotConfigured
	}
	loc := loadLocation(cfg.Timezone)

	client, err := s.calendars(caldav.Credentials{
		ServerURL: cfg.CalServerURL,
		Username:  cfg.CalUsername,
		Password:  cfg.CalPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}

	var calendars []caldav.Calendar
	err = s.withRetry(ctx, "日历列表", func() error {
		var lerr error
		calendars, lerr = client.Calendars(ctx)
		return lerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}

	var events []caldav.Event
	for _, cal := range calendars {
		var calEvents []caldav.Event
		err := s.withRetry(ctx, cal.Name, func() error {
			var eerr error
			calEvents, eerr = client.Events(ctx, cal, window.Start, window.End, loc)
			return eerr
		})
		if err != nil {
			s.logger.Warn("获取日历事件失败，已跳过",
				zap.String("calendar", cal.Name),
				zap.Error(err),
			)
			continue
		}
		events = append(events, calEvents...)
	}
	return events, nil
}

// withRetry 固定间隔重试，最多 s.retries 次，ctx 取消时立即停止
func (s *contextService) withRetry(ctx context.Context, what string, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.backoff), uint64(s.retries-1)),
		ctx,
	)
	return backoff.RetryNotify(fn, policy, func(err error, wait time.Duration) {
		s.logger.Debug("日历请求失败，准备重试",
			zap.String("target", what),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

// loadLocation 无法识别的时区回退到 Asia/Shanghai
func loadLocation(name string) *time.Location {
	if name == "" {
		name = model.DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc, err = time.LoadLocation(model.DefaultTimezone)
		if err != nil {
			return time.FixedZone("CST", 8*3600)
		}
	}
	return loc
}
