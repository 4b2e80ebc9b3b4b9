package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/pkg/caldav"
	"github.com/Redwinam/dida-master/pkg/cos"
	"github.com/Redwinam/dida-master/pkg/dida"
	"github.com/Redwinam/dida-master/pkg/gateway"
)

// ── Mock UserConfigRepository ──

type mockUserConfigRepo struct {
	configs map[string]*model.UserConfig
	listErr error
}

func newMockUserConfigRepo() *mockUserConfigRepo {
	return &mockUserConfigRepo{configs: make(map[string]*model.UserConfig)}
}

func (m *mockUserConfigRepo) put(userID string, s model.UserSettings) {
	m.configs[userID] = &model.UserConfig{UserID: userID, Settings: datatypes.NewJSONType(s)}
}

func (m *mockUserConfigRepo) List(_ context.Context) ([]model.UserConfig, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	result := make([]model.UserConfig, 0, len(ids))
	for _, id := range ids {
		result = append(result, *m.configs[id])
	}
	return result, nil
}

func (m *mockUserConfigRepo) Get(_ context.Context, userID string) (*model.UserConfig, error) {
	if c, ok := m.configs[userID]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserConfigRepo) Upsert(_ context.Context, cfg *model.UserConfig) error {
	cfg.UpdatedAt = time.Now()
	m.configs[cfg.UserID] = cfg
	return nil
}

// ── Mock APIKeyRepository ──

type mockAPIKeyRepo struct {
	keys    map[string]*model.APIKey // user_id → key
	touched int
}

func newMockAPIKeyRepo() *mockAPIKeyRepo {
	return &mockAPIKeyRepo{keys: make(map[string]*model.APIKey)}
}

func (m *mockAPIKeyRepo) List(_ context.Context) ([]model.APIKey, error) {
	var result []model.APIKey
	for _, k := range m.keys {
		result = append(result, *k)
	}
	return result, nil
}

func (m *mockAPIKeyRepo) GetByUserID(_ context.Context, userID string) (*model.APIKey, error) {
	if k, ok := m.keys[userID]; ok {
		return k, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAPIKeyRepo) FindByPrefix(_ context.Context, prefix string) ([]model.APIKey, error) {
	var result []model.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			result = append(result, *k)
		}
	}
	return result, nil
}

func (m *mockAPIKeyRepo) Upsert(_ context.Context, key *model.APIKey) error {
	if key.ID == "" {
		key.ID = "key-" + key.UserID
	}
	m.keys[key.UserID] = key
	return nil
}

func (m *mockAPIKeyRepo) DeleteByUserID(_ context.Context, userID string) error {
	delete(m.keys, userID)
	return nil
}

func (m *mockAPIKeyRepo) TouchLastUsed(_ context.Context, _ string) error {
	m.touched++
	return nil
}

// ── Mock DailyNoteRepository ──

type mockDailyNoteRepo struct {
	notes     map[string]*model.DailyNote
	createErr error
}

func newMockDailyNoteRepo() *mockDailyNoteRepo {
	return &mockDailyNoteRepo{notes: make(map[string]*model.DailyNote)}
}

func (m *mockDailyNoteRepo) Create(_ context.Context, note *model.DailyNote) error {
	if m.createErr != nil {
		return m.createErr
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	m.notes[note.ID] = note
	return nil
}

func (m *mockDailyNoteRepo) GetByIDForUser(_ context.Context, id, userID string) (*model.DailyNote, error) {
	if n, ok := m.notes[id]; ok && n.UserID == userID {
		return n, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDailyNoteRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.DailyNote, int64, error) {
	var all []model.DailyNote
	for _, n := range m.notes {
		if n.UserID == userID {
			all = append(all, *n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].NoteDate.After(all[j].NoteDate) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockDailyNoteRepo) UpdateTaskID(_ context.Context, id, taskID string) error {
	n, ok := m.notes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.DidaTaskID = &taskID
	return nil
}

func (m *mockDailyNoteRepo) Delete(_ context.Context, id, userID string) error {
	if n, ok := m.notes[id]; ok && n.UserID == userID {
		delete(m.notes, id)
	}
	return nil
}

func (m *mockDailyNoteRepo) ListUnmigrated(_ context.Context) ([]model.DailyNote, error) {
	var result []model.DailyNote
	for _, n := range m.notes {
		if !n.StoredInCOS() && n.Content != "" {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockDailyNoteRepo) MarkMigrated(_ context.Context, id, cosKey string) error {
	n, ok := m.notes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.CosKey = &cosKey
	n.Content = ""
	return nil
}

// ── Mock WeeklyReportRepository ──

type mockWeeklyReportRepo struct {
	reports map[string]*model.WeeklyReport
}

func newMockWeeklyReportRepo() *mockWeeklyReportRepo {
	return &mockWeeklyReportRepo{reports: make(map[string]*model.WeeklyReport)}
}

func (m *mockWeeklyReportRepo) Create(_ context.Context, r *model.WeeklyReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.reports[r.ID] = r
	return nil
}

func (m *mockWeeklyReportRepo) GetByIDForUser(_ context.Context, id, userID string) (*model.WeeklyReport, error) {
	if r, ok := m.reports[id]; ok && r.UserID == userID {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeeklyReportRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.WeeklyReport, int64, error) {
	var all []model.WeeklyReport
	for _, r := range m.reports {
		if r.UserID == userID {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PeriodStart.After(all[j].PeriodStart) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockWeeklyReportRepo) UpdateTaskID(_ context.Context, id, taskID string) error {
	r, ok := m.reports[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.DidaTaskID = &taskID
	return nil
}

func (m *mockWeeklyReportRepo) Delete(_ context.Context, id, userID string) error {
	if r, ok := m.reports[id]; ok && r.UserID == userID {
		delete(m.reports, id)
	}
	return nil
}

func (m *mockWeeklyReportRepo) ListUnmigrated(_ context.Context) ([]model.WeeklyReport, error) {
	var result []model.WeeklyReport
	for _, r := range m.reports {
		if !r.StoredInCOS() && r.Content != "" {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockWeeklyReportRepo) MarkMigrated(_ context.Context, id, cosKey string) error {
	r, ok := m.reports[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.CosKey = &cosKey
	r.Content = ""
	return nil
}

// ── Mock CalendarTemplateRepository ──

type mockTemplateRepo struct {
	templates map[string]*model.CalendarTemplate
	touched   []string
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{templates: make(map[string]*model.CalendarTemplate)}
}

func (m *mockTemplateRepo) Create(_ context.Context, tpl *model.CalendarTemplate) error {
	now := time.Now()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *mockTemplateRepo) GetByIDForUser(_ context.Context, id, userID string) (*model.CalendarTemplate, error) {
	if t, ok := m.templates[id]; ok && t.UserID == userID {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTemplateRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.CalendarTemplate, int64, error) {
	var all []model.CalendarTemplate
	for _, t := range m.templates {
		if t.UserID == userID {
			all = append(all, *t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockTemplateRepo) Update(_ context.Context, tpl *model.CalendarTemplate) error {
	t, ok := m.templates[tpl.ID]
	if !ok || t.UserID != tpl.UserID {
		return gorm.ErrRecordNotFound
	}
	t.Name, t.BaseEvent, t.Rules = tpl.Name, tpl.BaseEvent, tpl.Rules
	t.UpdatedAt = time.Now()
	return nil
}

func (m *mockTemplateRepo) TouchLastUsed(_ context.Context, id, userID string, at time.Time) error {
	t, ok := m.templates[id]
	if !ok || t.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	t.LastUsedAt = &at
	t.UpdatedAt = at
	m.touched = append(m.touched, id)
	return nil
}

// ── 测试仓储聚合 ──

type mockRepos struct {
	userConfig   *mockUserConfigRepo
	apiKey       *mockAPIKeyRepo
	dailyNote    *mockDailyNoteRepo
	weeklyReport *mockWeeklyReportRepo
	template     *mockTemplateRepo
}

func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		userConfig:   newMockUserConfigRepo(),
		apiKey:       newMockAPIKeyRepo(),
		dailyNote:    newMockDailyNoteRepo(),
		weeklyReport: newMockWeeklyReportRepo(),
		template:     newMockTemplateRepo(),
	}
	repo := &repository.Repository{
		UserConfig:   m.userConfig,
		APIKey:       m.apiKey,
		DailyNote:    m.dailyNote,
		WeeklyReport: m.weeklyReport,
		Template:     m.template,
	}
	return repo, m
}

// ── Mock TaskClient ──

type mockTaskClient struct {
	projects     []dida.Project
	projectsErr  error
	tasks        map[string][]dida.Task
	failProjects map[string]bool
	completed    []dida.Task
	completedErr error
	noteErr      error
	notes        []dida.Note
	fetched      []string
}

func newMockTaskClient() *mockTaskClient {
	return &mockTaskClient{tasks: make(map[string][]dida.Task), failProjects: make(map[string]bool)}
}

func (m *mockTaskClient) Projects(_ context.Context, _ string) ([]dida.Project, error) {
	return m.projects, m.projectsErr
}

func (m *mockTaskClient) ProjectTasks(_ context.Context, _ string, projectID string) ([]dida.Task, error) {
	m.fetched = append(m.fetched, projectID)
	if m.failProjects[projectID] {
		return nil, fmt.Errorf("project %s unavailable", projectID)
	}
	return m.tasks[projectID], nil
}

func (m *mockTaskClient) CompletedTasks(_ context.Context, _, _ string, _, _ time.Time) ([]dida.Task, error) {
	return m.completed, m.completedErr
}

func (m *mockTaskClient) CreateNote(_ context.Context, _ string, note *dida.Note, _ time.Time) (*dida.Task, error) {
	if m.noteErr != nil {
		return nil, m.noteErr
	}
	m.notes = append(m.notes, *note)
	return &dida.Task{ID: fmt.Sprintf("note-%d", len(m.notes)), ProjectID: note.ProjectID, Title: note.Title}, nil
}

// ── Mock CalendarClient ──

type mockCalendarClient struct {
	calendars    []caldav.Calendar
	calendarsErr error
	events       map[string][]caldav.Event
	failures     map[string]int // 日历名 → 剩余失败次数，-1 表示始终失败
	calls        map[string]int
	put          []caldav.NewEvent
	putTargets   []string
}

func newMockCalendarClient() *mockCalendarClient {
	return &mockCalendarClient{
		events:   make(map[string][]caldav.Event),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (m *mockCalendarClient) factory() CalendarFactory {
	return func(_ caldav.Credentials) (CalendarClient, error) { return m, nil }
}

func (m *mockCalendarClient) Calendars(_ context.Context) ([]caldav.Calendar, error) {
	return m.calendars, m.calendarsErr
}

func (m *mockCalendarClient) Events(_ context.Context, cal caldav.Calendar, _, _ time.Time, _ *time.Location) ([]caldav.Event, error) {
	m.calls[cal.Name]++
	switch left := m.failures[cal.Name]; {
	case left < 0:
		return nil, errors.New("connection reset")
	case left > 0:
		m.failures[cal.Name] = left - 1
		return nil, errors.New("connection reset")
	}
	return m.events[cal.Name], nil
}

func (m *mockCalendarClient) PutEvent(_ context.Context, cal caldav.Calendar, ev *caldav.NewEvent) (string, error) {
	m.put = append(m.put, *ev)
	m.putTargets = append(m.putTargets, cal.Name)
	return "uid-" + ev.Title, nil
}

// ── Mock ObjectStore ──

type mockStore struct {
	enabled   bool
	objects   map[string]*cos.StoredRecord
	uploadErr error
	fetchErr  error
	deleted   []string
}

func newMockStore(enabled bool) *mockStore {
	return &mockStore{enabled: enabled, objects: make(map[string]*cos.StoredRecord)}
}

func (m *mockStore) Enabled() bool { return m.enabled }

func (m *mockStore) UploadRecord(_ context.Context, key string, rec *cos.StoredRecord) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[key] = rec
	return nil
}

func (m *mockStore) FetchRecord(_ context.Context, key string) (*cos.StoredRecord, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	rec, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *mockStore) SignedURL(key string) (string, error) {
	return "https://cdn.example.com/" + key + "?sign=x", nil
}

// ── Mock Generator ──

type mockGenerator struct {
	requests []gateway.Request
	content  string
	err      error
}

func (m *mockGenerator) Generate(_ context.Context, req *gateway.Request) (*gateway.Result, error) {
	m.requests = append(m.requests, *req)
	if m.err != nil {
		return nil, m.err
	}
	if req.CallbackURL != "" {
		return &gateway.Result{Queued: true}, nil
	}
	return &gateway.Result{Content: m.content}, nil
}

// ── Mock Trigger ──

type triggerCall struct {
	kind   string
	userID string
}

type mockTrigger struct {
	mu    sync.Mutex
	calls []triggerCall
	fail  map[string]error // user_id → error
}

func (m *mockTrigger) Fire(_ context.Context, kind, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, triggerCall{kind: kind, userID: userID})
	if err, ok := m.fail[userID]; ok {
		return err
	}
	return nil
}
