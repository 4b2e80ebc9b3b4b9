package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

// ── 定时分发模块业务错误 ──

var (
	ErrTriggerRejected = errors.New("动作端点返回错误")
)

const (
	watermarkTTL     = 48 * time.Hour
	triggerTokenTTL  = 5 * time.Minute
	noWeekdayFilter  = -1
	scheduleClockLen = len("15:04")
)

var dispatchTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dida_dispatch_triggers_total",
	Help: "Scheduled action triggers by kind and result",
}, []string{"kind", "result"})

// DispatchService 定时分发业务接口
type DispatchService interface {
	// Dispatch 扫描所有用户配置，触发到期的每日笔记与周报任务
	Dispatch(ctx context.Context, now time.Time) *dto.DispatchResult
}

type dispatchService struct {
	repo      *repository.Repository
	watermark Watermark
	trigger   Trigger
	grace     time.Duration
	logger    *zap.Logger
}

// NewDispatchService 创建 DispatchService 实例
func NewDispatchService(cfg *config.CronConfig, repo *repository.Repository, watermark Watermark, trigger Trigger, logger *zap.Logger) DispatchService {
	if watermark == nil {
		watermark = NewMemoryWatermark()
	}
	return &dispatchService{
		repo:      repo,
		watermark: watermark,
		trigger:   trigger,
		grace:     time.Duration(cfg.GraceMinutes) * time.Minute,
		logger:    logger,
	}
}

// ────────────────────── Dispatch ──────────────────────

func (s *dispatchService) Dispatch(ctx context.Context, now time.Time) *dto.DispatchResult {
	result := &dto.DispatchResult{Status: "ok", Errors: []string{}}

	configs, err := s.repo.UserConfig.List(ctx)
	if err != nil {
		s.logger.Error("加载用户配置失败", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("加载用户配置失败: %v", err))
		return result
	}

	keys, err := s.repo.APIKey.List(ctx)
	if err != nil {
		s.logger.Error("加载 API Key 失败", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("加载 API Key 失败: %v", err))
		return result
	}
	hasKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		hasKey[k.UserID] = true
	}

	for _, uc := range configs {
		settings := uc.Settings.Data()
		if !settings.ScheduleDailyEnabled && !settings.ScheduleWeeklyEnabled {
			continue
		}

		tz := settings.Timezone
		if tz == "" {
			tz = model.DefaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("用户 %s 时区无效 %q: %v", uc.UserID, tz, err))
			continue
		}

		if !hasKey[uc.UserID] {
			continue
		}

		if settings.ScheduleDailyEnabled {
			if slot, ok := scheduleMatch(now, loc, settings.ScheduleDailyTime, s.grace, noWeekdayFilter); ok {
				s.fire(ctx, dto.KindDailyNote, uc.UserID, slot, result)
			}
		}
		if settings.ScheduleWeeklyEnabled {
			if slot, ok := scheduleMatch(now, loc, settings.ScheduleWeeklyTime, s.grace, settings.ScheduleWeeklyDay); ok {
				s.fire(ctx, dto.KindWeeklyReport, uc.UserID, slot, result)
			}
		}
	}

	s.logger.Info("定时分发完成",
		zap.Int("users", len(configs)),
		zap.Int("triggered", result.Triggered),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (s *dispatchService) fire(ctx context.Context, kind, userID string, slot time.Time, result *dto.DispatchResult) {
	key := fmt.Sprintf("%s:%s:%s", kind, userID, slot.Format("2006-01-02T15:04"))

	claimed, err := s.watermark.Claim(ctx, key, watermarkTTL)
	if err != nil {
		// 水位线不可用时仍然触发
		s.logger.Warn("占用水位线失败", zap.String("key", key), zap.Error(err))
		claimed = true
	}
	if !claimed {
		dispatchTriggers.WithLabelValues(kind, "skipped").Inc()
		return
	}

	if err := s.trigger.Fire(ctx, kind, userID); err != nil {
		if relErr := s.watermark.Release(ctx, key); relErr != nil {
			s.logger.Warn("释放水位线失败", zap.String("key", key), zap.Error(relErr))
		}
		s.logger.Error("触发动作失败",
			zap.String("kind", kind),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		dispatchTriggers.WithLabelValues(kind, "failed").Inc()
		result.Errors = append(result.Errors, fmt.Sprintf("%s 用户 %s: %v", kind, userID, err))
		return
	}

	dispatchTriggers.WithLabelValues(kind, "triggered").Inc()
	result.Triggered++
}

// scheduleMatch 判断 now 是否落在 hhmm 槽位之后 grace 以内
// 槽位取用户时区的今天或昨天，以覆盖跨零点的宽限窗口；weekday 为 -1 时不限星期
func scheduleMatch(now time.Time, loc *time.Location, hhmm string, grace time.Duration, weekday int) (time.Time, bool) {
	hour, minute, ok := parseClock(hhmm)
	if !ok {
		return time.Time{}, false
	}

	tick := now.Truncate(time.Minute)
	local := now.In(loc)
	for _, offset := range []int{0, -1} {
		day := local.AddDate(0, 0, offset)
		slot := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if weekday != noWeekdayFilter && int(slot.Weekday()) != weekday {
			continue
		}
		if diff := tick.Sub(slot); diff >= 0 && diff <= grace {
			return slot, true
		}
	}
	return time.Time{}, false
}

// parseClock 只接受补零的 24 小时制 HH:MM
func parseClock(s string) (int, int, bool) {
	if len(s) != scheduleClockLen || s[2] != ':' {
		return 0, 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ────────────────────── Trigger ──────────────────────

// Trigger 调用动作端点
type Trigger interface {
	Fire(ctx context.Context, kind, userID string) error
}

// TokenIssuer 签发分发专用短期 Token
// 动作端点据此识别定时触发，生成网关改用系统凭证
type TokenIssuer interface {
	GenerateDispatchToken(userID string, ttl time.Duration) (string, error)
}

type httpTrigger struct {
	baseURL string
	tokens  TokenIssuer
	client  *http.Client
}

// NewHTTPTrigger 通过 HTTP 调用本服务的动作端点
func NewHTTPTrigger(baseURL string, timeout time.Duration, tokens TokenIssuer) Trigger {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpTrigger{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *httpTrigger) Fire(ctx context.Context, kind, userID string) error {
	token, err := t.tokens.GenerateDispatchToken(userID, triggerTokenTTL)
	if err != nil {
		return fmt.Errorf("签发触发 Token 失败: %w", err)
	}

	url := t.baseURL + "/api/v1/actions/" + kind
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求动作端点失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &pkgerrors.StatusError{Service: "action", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var envelope struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error {
		return fmt.Errorf("%w: %s", ErrTriggerRejected, envelope.Message)
	}
	return nil
}
