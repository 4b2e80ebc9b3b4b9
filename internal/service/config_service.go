package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
)

// ── 用户配置模块业务错误 ──

var (
	ErrInvalidTimezone = errors.New("时区无效")
	ErrInvalidSchedule = errors.New("定时时间格式应为 HH:MM")
)

const secretMask = "******"

// UserConfigService 用户配置接口
type UserConfigService interface {
	Get(ctx context.Context, userID string) (*dto.UserConfigResponse, error)
	Update(ctx context.Context, userID string, req *dto.UserConfigRequest) (*dto.UserConfigResponse, error)
}

type userConfigService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserConfigService 创建 UserConfigService 实例
func NewUserConfigService(repo *repository.Repository, logger *zap.Logger) UserConfigService {
	return &userConfigService{repo: repo, logger: logger}
}

// ────────────────────── Get ──────────────────────

func (s *userConfigService) Get(ctx context.Context, userID string) (*dto.UserConfigResponse, error) {
	var settings model.UserSettings
	var updatedAt time.Time

	cfg, err := s.repo.UserConfig.Get(ctx, userID)
	switch {
	case err == nil:
		settings = cfg.Settings.Data()
		updatedAt = cfg.UpdatedAt
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		s.logger.Error("查询用户配置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return s.toResponse(ctx, userID, settings.WithDefaults(), updatedAt), nil
}

// ────────────────────── Update ──────────────────────

func (s *userConfigService) Update(ctx context.Context, userID string, req *dto.UserConfigRequest) (*dto.UserConfigResponse, error) {
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, ErrInvalidTimezone
		}
	}
	for _, t := range []string{req.ScheduleDailyTime, req.ScheduleWeeklyTime} {
		if t == "" {
			continue
		}
		if _, _, ok := parseClock(t); !ok {
			return nil, ErrInvalidSchedule
		}
	}

	var old model.UserSettings
	existing, err := s.repo.UserConfig.Get(ctx, userID)
	switch {
	case err == nil:
		old = existing.Settings.Data()
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}

	settings := model.UserSettings{
		Timezone:              req.Timezone,
		MBTI:                  req.MBTI,
		DidaToken:             keepSecret(req.DidaToken, old.DidaToken),
		DidaCookie:            keepSecret(req.DidaCookie, old.DidaCookie),
		DidaProjectID:         req.DidaProjectID,
		WeeklyReportProjectID: req.WeeklyReportProjectID,
		ExcludeProjectName:    req.ExcludeProjectName,
		CalEnable:             req.CalEnable,
		CalServerURL:          req.CalServerURL,
		CalUsername:           req.CalUsername,
		CalPassword:           keepSecret(req.CalPassword, old.CalPassword),
		CalLookaheadDays:      req.CalLookaheadDays,
		CalendarTarget:        req.CalendarTarget,
		ScheduleDailyEnabled:  req.ScheduleDailyEnabled,
		ScheduleDailyTime:     req.ScheduleDailyTime,
		ScheduleWeeklyEnabled: req.ScheduleWeeklyEnabled,
		ScheduleWeeklyTime:    req.ScheduleWeeklyTime,
		ScheduleWeeklyDay:     req.ScheduleWeeklyDay,
	}

	cfg := &model.UserConfig{UserID: userID, Settings: datatypes.NewJSONType(settings)}
	if err := s.repo.UserConfig.Upsert(ctx, cfg); err != nil {
		s.logger.Error("保存用户配置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户配置已更新", zap.String("user_id", userID))
	return s.toResponse(ctx, userID, settings.WithDefaults(), time.Now()), nil
}

func (s *userConfigService) toResponse(ctx context.Context, userID string, st model.UserSettings, updatedAt time.Time) *dto.UserConfigResponse {
	resp := &dto.UserConfigResponse{
		UserConfigRequest: dto.UserConfigRequest{
			Timezone:              st.Timezone,
			MBTI:                  st.MBTI,
			DidaToken:             maskSecret(st.DidaToken),
			DidaCookie:            maskSecret(st.DidaCookie),
			DidaProjectID:         st.DidaProjectID,
			WeeklyReportProjectID: st.WeeklyReportProjectID,
			ExcludeProjectName:    st.ExcludeProjectName,
			CalEnable:             st.CalEnable,
			CalServerURL:          st.CalServerURL,
			CalUsername:           st.CalUsername,
			CalPassword:           maskSecret(st.CalPassword),
			CalLookaheadDays:      st.CalLookaheadDays,
			CalendarTarget:        st.CalendarTarget,
			ScheduleDailyEnabled:  st.ScheduleDailyEnabled,
			ScheduleDailyTime:     st.ScheduleDailyTime,
			ScheduleWeeklyEnabled: st.ScheduleWeeklyEnabled,
			ScheduleWeeklyTime:    st.ScheduleWeeklyTime,
			ScheduleWeeklyDay:     st.ScheduleWeeklyDay,
		},
	}
	if !updatedAt.IsZero() {
		resp.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	}
	if _, err := s.repo.APIKey.GetByUserID(ctx, userID); err == nil {
		resp.HasAPIKey = true
	}
	return resp
}

// maskSecret 仅保留前 4 位
func maskSecret(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 8:
		return secretMask
	default:
		return v[:4] + secretMask
	}
}

// keepSecret 提交的值仍是脱敏形式时保留原值
func keepSecret(incoming, old string) string {
	if strings.Contains(incoming, secretMask) {
		return old
	}
	return incoming
}
