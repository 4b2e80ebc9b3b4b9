package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/pkg/caldav"
	"github.com/Redwinam/dida-master/pkg/gateway"
)

// ── 日历模块业务错误 ──

var (
	ErrCalendarNotConfigured = errors.New("未配置日历账户")
	ErrCalendarUnavailable   = errors.New("日历服务不可用")
	ErrNoCalendar            = errors.New("未找到可写入的日历")
)

// CalendarService 日历接口
type CalendarService interface {
	// ListCalendars 列出日历；query 携带用户名和密码时用于测试连接
	ListCalendars(ctx context.Context, userID string, query *dto.ListCalendarsQuery) ([]dto.CalendarResponse, error)
	TextToCalendar(ctx context.Context, userID, userToken, text string) (*dto.CalendarEventsResponse, error)
	ImageToCalendar(ctx context.Context, userID, userToken, imageBase64 string) (*dto.CalendarEventsResponse, error)
}

type calendarService struct {
	repo      *repository.Repository
	calendars CalendarFactory
	generator Generator
	now       func() time.Time
	logger    *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, calendars CalendarFactory, generator Generator, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, calendars: calendars, generator: generator, now: time.Now, logger: logger}
}

func (s *calendarService) settingsOrEmpty(ctx context.Context, userID string) (*model.UserSettings, error) {
	return loadSettingsOrDefault(ctx, s.repo, userID)
}

// loadSettingsOrDefault 未保存配置的用户按默认配置处理
func loadSettingsOrDefault(ctx context.Context, repo *repository.Repository, userID string) (*model.UserSettings, error) {
	settings, err := loadSettings(ctx, repo, userID)
	if errors.Is(err, ErrConfigNotFound) {
		empty := model.UserSettings{}.WithDefaults()
		return &empty, nil
	}
	return settings, err
}

// ────────────────────── ListCalendars ──────────────────────

func (s *calendarService) ListCalendars(ctx context.Context, userID string, query *dto.ListCalendarsQuery) ([]dto.CalendarResponse, error) {
	var cred caldav.Credentials
	if query != nil && query.Username != "" && query.Password != "" {
		cred = caldav.Credentials{ServerURL: query.ServerURL, Username: query.Username, Password: query.Password}
	} else {
		settings, err := s.settingsOrEmpty(ctx, userID)
		if err != nil {
			return nil, err
		}
		if settings.CalUsername == "" || settings.CalPassword == "" {
			return nil, ErrCalendarNotConfigured
		}
		cred = caldav.Credentials{ServerURL: settings.CalServerURL, Username: settings.CalUsername, Password: settings.CalPassword}
	}

	client, err := s.calendars(cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}
	calendars, err := client.Calendars(ctx)
	if err != nil {
		s.logger.Warn("获取日历列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}

	out := make([]dto.CalendarResponse, 0, len(calendars))
	for _, c := range calendars {
		out = append(out, dto.CalendarResponse{Name: c.Name, URL: c.URL})
	}
	return out, nil
}

// ────────────────────── Text / Image ──────────────────────

func (s *calendarService) TextToCalendar(ctx context.Context, userID, userToken, text string) (*dto.CalendarEventsResponse, error) {
	settings, err := s.settingsOrEmpty(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets := settings.CalendarTargets()
	input := gateway.Input{
		Type:   "text",
		Prompt: calendarPrompt("文本", targets, s.today(settings)),
		Text:   text,
	}
	return s.parseAndSave(ctx, userID, userToken, gateway.ServiceTextToCalendar, input, settings, targets)
}

func (s *calendarService) ImageToCalendar(ctx context.Context, userID, userToken, imageBase64 string) (*dto.CalendarEventsResponse, error) {
	settings, err := s.settingsOrEmpty(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets := settings.CalendarTargets()
	input := gateway.Input{
		Type:        "image",
		Prompt:      calendarPrompt("图片", targets, s.today(settings)),
		ImageBase64: imageBase64,
	}
	return s.parseAndSave(ctx, userID, userToken, gateway.ServiceImageToCalendar, input, settings, targets)
}

func (s *calendarService) today(settings *model.UserSettings) string {
	return s.now().In(loadLocation(settings.Timezone)).Format(dateLayout)
}

func (s *calendarService) parseAndSave(ctx context.Context, userID, userToken, serviceKey string, input gateway.Input, settings *model.UserSettings, targets []string) (*dto.CalendarEventsResponse, error) {
	res, err := s.generator.Generate(ctx, &gateway.Request{
		ServiceKey: serviceKey,
		Input:      input,
		UserID:     userID,
		UserToken:  userToken,
	})
	if err != nil {
		return nil, err
	}

	events := parseCalendarEvents(res.Content)
	if len(events) == 0 {
		s.logger.Warn("模型未返回可解析的日程", zap.String("service_key", serviceKey))
		return &dto.CalendarEventsResponse{Events: []dto.CalendarEvent{}}, nil
	}

	if settings.CalendarEnabled() {
		if err := writeEvents(ctx, s.calendars, settings, targets, events, s.logger); err != nil {
			return nil, err
		}
	}
	return &dto.CalendarEventsResponse{Events: events}, nil
}

// parseCalendarEvents 无法解析时返回空列表
func parseCalendarEvents(content string) []dto.CalendarEvent {
	var events []dto.CalendarEvent
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &events); err != nil {
		return nil
	}
	return events
}

// writeEvents 逐条写入日历，名称未命中时写入第一个日历
// 开始时间无法解析的事件跳过，写入失败时中止
func writeEvents(ctx context.Context, factory CalendarFactory, settings *model.UserSettings, targets []string, events []dto.CalendarEvent, logger *zap.Logger) error {
	client, err := factory(caldav.Credentials{
		ServerURL: settings.CalServerURL,
		Username:  settings.CalUsername,
		Password:  settings.CalPassword,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}
	calendars, err := client.Calendars(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}
	if len(calendars) == 0 {
		return ErrNoCalendar
	}

	loc := loadLocation(settings.Timezone)
	for _, ev := range events {
		name := ev.Calendar
		if name == "" && len(targets) > 0 {
			name = targets[0]
		}
		target := calendars[0]
		for _, c := range calendars {
			if c.Name == name {
				target = c
				break
			}
		}

		start, ok := parseEventTime(ev.Start, loc)
		if !ok {
			logger.Warn("日程开始时间无法解析，已跳过", zap.String("title", ev.Title), zap.String("start", ev.Start))
			continue
		}
		end, _ := parseEventTime(ev.End, loc)

		if _, err := client.PutEvent(ctx, target, &caldav.NewEvent{
			Title:       ev.Title,
			Start:       start,
			End:         end,
			Location:    ev.Location,
			Description: ev.Description,
			AllDay:      ev.AllDay,
		}); err != nil {
			return fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
		}
		logger.Info("日程已写入日历", zap.String("calendar", target.Name), zap.String("title", ev.Title))
	}
	return nil
}

// parseEventTime 支持 RFC3339、无时区的本地时间与纯日期
func parseEventTime(v string, loc *time.Location) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", dateLayout} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
