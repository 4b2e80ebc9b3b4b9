package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/pkg/caldav"
	"github.com/Redwinam/dida-master/pkg/gateway"
)

// ── 日程模板模块业务错误 ──

var (
	ErrTemplateNotFound        = errors.New("模板不存在")
	ErrTemplateNameRequired    = errors.New("模板名称不能为空")
	ErrTemplateEventIncomplete = errors.New("日程缺少开始或结束时间")
)

// TemplateService 日程模板接口
type TemplateService interface {
	Create(ctx context.Context, userID string, req *dto.CreateTemplateRequest) (*dto.TemplateResponse, error)
	List(ctx context.Context, userID string, page *dto.PaginationRequest) ([]dto.TemplateResponse, int64, error)
	Get(ctx context.Context, userID, id string) (*dto.TemplateResponse, error)
	Update(ctx context.Context, userID, id string, req *dto.UpdateTemplateRequest) (*dto.TemplateResponse, error)
	// Recent 最近 lookback 天内有开始时间的日程，按开始时间倒序
	Recent(ctx context.Context, userID string, query *dto.RecentEventsQuery) (*dto.RecentEventsResponse, error)
	// Apply 解析文本并以模板固定字段覆盖，日历启用时写入日历
	Apply(ctx context.Context, userID, userToken string, req *dto.TemplateCalendarRequest) (*dto.TemplateEventResponse, error)
}

type templateService struct {
	repo      *repository.Repository
	context   ContextService
	calendars CalendarFactory
	generator Generator
	now       func() time.Time
	logger    *zap.Logger
}

// NewTemplateService 创建 TemplateService 实例
func NewTemplateService(repo *repository.Repository, contextSvc ContextService, calendars CalendarFactory, generator Generator, logger *zap.Logger) TemplateService {
	return &templateService{
		repo:      repo,
		context:   contextSvc,
		calendars: calendars,
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
}

// ────────────────────── CRUD ──────────────────────

func (s *templateService) Create(ctx context.Context, userID string, req *dto.CreateTemplateRequest) (*dto.TemplateResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrTemplateNameRequired
	}
	rules := normalizeRules(req.Rules)

	tpl := &model.CalendarTemplate{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		BaseEvent: fixedBaseEvent(req.BaseEvent, rules),
		Rules:     datatypes.NewJSONType(rules),
	}
	if err := s.repo.Template.Create(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("日程模板已创建", zap.String("user_id", userID), zap.String("template_id", tpl.ID))
	return templateResponse(tpl), nil
}

func (s *templateService) List(ctx context.Context, userID string, page *dto.PaginationRequest) ([]dto.TemplateResponse, int64, error) {
	templates, total, err := s.repo.Template.ListByUser(ctx, userID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.TemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, *templateResponse(&templates[i]))
	}
	return out, total, nil
}

func (s *templateService) Get(ctx context.Context, userID, id string) (*dto.TemplateResponse, error) {
	tpl, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return templateResponse(tpl), nil
}

func (s *templateService) Update(ctx context.Context, userID, id string, req *dto.UpdateTemplateRequest) (*dto.TemplateResponse, error) {
	tpl, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			tpl.Name = name
		}
	}

	rules := tpl.Rules.Data()
	if req.Rules != nil {
		rules = normalizeRules(req.Rules)
	}
	base := map[string]interface{}(tpl.BaseEvent)
	if req.BaseEvent != nil {
		base = req.BaseEvent
	}
	tpl.Rules = datatypes.NewJSONType(rules)
	tpl.BaseEvent = fixedBaseEvent(base, rules)

	if err := s.repo.Template.Update(ctx, tpl); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	tpl.UpdatedAt = s.now()
	return templateResponse(tpl), nil
}

func (s *templateService) find(ctx context.Context, userID, id string) (*model.CalendarTemplate, error) {
	tpl, err := s.repo.Template.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tpl, nil
}

// normalizeRules 去除空白，nil 视为无规则
func normalizeRules(in *dto.TemplateRulesInput) model.TemplateRules {
	rules := model.TemplateRules{FixedFields: []string{}}
	if in == nil {
		return rules
	}
	for _, f := range in.FixedFields {
		if f = strings.TrimSpace(f); f != "" {
			rules.FixedFields = append(rules.FixedFields, f)
		}
	}
	rules.TitleRule = strings.TrimSpace(in.TitleRule)
	return rules
}

// fixedBaseEvent 只保留固定字段中有值的部分
func fixedBaseEvent(base map[string]interface{}, rules model.TemplateRules) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for _, f := range rules.FixedFields {
		if v, ok := base[f]; ok && hasValue(v) {
			out[f] = v
		}
	}
	return out
}

func hasValue(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

func templateResponse(t *model.CalendarTemplate) *dto.TemplateResponse {
	rules := t.Rules.Data()
	fixed := rules.FixedFields
	if fixed == nil {
		fixed = []string{}
	}
	base := map[string]interface{}(t.BaseEvent)
	if base == nil {
		base = map[string]interface{}{}
	}
	resp := &dto.TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		BaseEvent: base,
		Rules:     dto.TemplateRules{FixedFields: fixed, TitleRule: rules.TitleRule},
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
	if t.LastUsedAt != nil {
		resp.LastUsedAt = t.LastUsedAt.Format(time.RFC3339)
	}
	return resp
}

// ────────────────────── Recent ──────────────────────

func (s *templateService) Recent(ctx context.Context, userID string, query *dto.RecentEventsQuery) (*dto.RecentEventsResponse, error) {
	settings, err := loadSettingsOrDefault(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	end := s.now()
	window := TimeWindow{Start: end.AddDate(0, 0, -query.GetLookbackDays()), End: end}
	events, err := s.context.ListEvents(ctx, settings, window)
	if err != nil {
		return nil, err
	}

	withStart := make([]caldav.Event, 0, len(events))
	for _, ev := range events {
		if ev.Start != nil {
			withStart = append(withStart, ev)
		}
	}
	sort.SliceStable(withStart, func(i, j int) bool { return withStart[i].Start.After(*withStart[j].Start) })
	if limit := query.GetLimit(); len(withStart) > limit {
		withStart = withStart[:limit]
	}

	loc := loadLocation(settings.Timezone)
	out := make([]dto.RecentEvent, 0, len(withStart))
	for _, ev := range withStart {
		item := dto.RecentEvent{
			Title:    ev.Title,
			Start:    ev.Start.In(loc).Format(time.RFC3339),
			Location: ev.Location,
			Calendar: ev.Calendar,
		}
		if ev.End != nil {
			item.End = ev.End.In(loc).Format(time.RFC3339)
		}
		out = append(out, item)
	}
	return &dto.RecentEventsResponse{Events: out}, nil
}

// ────────────────────── Apply ──────────────────────

func (s *templateService) Apply(ctx context.Context, userID, userToken string, req *dto.TemplateCalendarRequest) (*dto.TemplateEventResponse, error) {
	tpl, err := s.find(ctx, userID, req.TemplateID)
	if err != nil {
		return nil, err
	}
	settings, err := loadSettingsOrDefault(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	rules := tpl.Rules.Data()
	targets := settings.CalendarTargets()
	now := s.now()
	today := now.In(loadLocation(settings.Timezone)).Format(dateLayout)

	res, err := s.generator.Generate(ctx, &gateway.Request{
		ServiceKey: gateway.ServiceTextToCalendar,
		Input: gateway.Input{
			Type:   "text",
			Prompt: templatePrompt(req.Text, targets, today, settings.Timezone, rules),
			Text:   req.Text,
		},
		UserID:    userID,
		UserToken: userToken,
	})
	if err != nil {
		return nil, err
	}

	parsed := parseTemplateFields(res.Content)
	merged := mergeEventFields(parsed, tpl.BaseEvent, rules)

	if _, ok := merged["description"]; !ok {
		if notes, ok := parsed["notes"]; ok && hasValue(notes) {
			merged["description"] = notes
		}
	}
	if rules.TitleRule != "" {
		if _, ok := merged["title"]; !ok {
			merged["title"] = ""
		}
	}
	if len(targets) > 0 && !containsString(targets, stringField(merged, "calendar")) {
		if base := stringField(tpl.BaseEvent, "calendar"); base != "" {
			merged["calendar"] = base
		} else {
			merged["calendar"] = targets[0]
		}
	}
	if stringField(merged, "start") == "" || stringField(merged, "end") == "" {
		return nil, ErrTemplateEventIncomplete
	}

	if settings.CalendarEnabled() {
		ev := dto.CalendarEvent{
			Title:       stringField(merged, "title"),
			Start:       stringField(merged, "start"),
			End:         stringField(merged, "end"),
			Location:    stringField(merged, "location"),
			Calendar:    stringField(merged, "calendar"),
			Description: stringField(merged, "description"),
		}
		ev.AllDay, _ = merged["allDay"].(bool)
		if err := writeEvents(ctx, s.calendars, settings, targets, []dto.CalendarEvent{ev}, s.logger); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Template.TouchLastUsed(ctx, tpl.ID, userID, now); err != nil {
		s.logger.Warn("更新模板使用时间失败", zap.String("template_id", tpl.ID), zap.Error(err))
	}

	s.logger.Info("模板日程已生成",
		zap.String("user_id", userID),
		zap.String("template_id", tpl.ID),
		zap.Bool("written", settings.CalendarEnabled()),
	)
	return &dto.TemplateEventResponse{Event: merged}, nil
}

// parseTemplateFields 模型返回数组时取首个对象，无法解析时返回空对象
func parseTemplateFields(content string) map[string]interface{} {
	var raw interface{}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return map[string]interface{}{}
	}
	if list, ok := raw.([]interface{}); ok {
		if len(list) == 0 {
			return map[string]interface{}{}
		}
		raw = list[0]
	}
	if obj, ok := raw.(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{}
}

// mergeEventFields 模型字段中有值的部分，再以模板固定字段覆盖
func mergeEventFields(parsed, base map[string]interface{}, rules model.TemplateRules) map[string]interface{} {
	merged := make(map[string]interface{}, len(parsed))
	for k, v := range parsed {
		if hasValue(v) {
			merged[k] = v
		}
	}
	for _, f := range rules.FixedFields {
		if v, ok := base[f]; ok && hasValue(v) {
			merged[f] = v
		}
	}
	return merged
}

// stringField 非字符串值按默认格式转为字符串
func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
