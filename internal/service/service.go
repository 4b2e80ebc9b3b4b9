package service

import (
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Context    ContextService
	Action     ActionService
	Callback   CallbackService
	Dispatch   DispatchService
	Record     RecordService
	Export     ExportService
	APIKey     APIKeyService
	UserConfig UserConfigService
	Calendar   CalendarService
	Template   TemplateService
	Dida       DidaService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	contextSvc := NewContextService(&cfg.CalDAV, deps.Tasks, deps.Calendars, logger)

	return &Service{
		Context:    contextSvc,
		Action:     NewActionService(cfg.Server.BaseURL, repo, contextSvc, deps.Generator, logger),
		Callback:   NewCallbackService(repo, deps.Store, deps.Tasks, logger),
		Dispatch:   NewDispatchService(&cfg.Cron, repo, deps.Watermark, deps.Trigger, logger),
		Record:     NewRecordService(repo, deps.Store, logger),
		Export:     NewExportService(repo, deps.Store, logger),
		APIKey:     NewAPIKeyService(repo, logger),
		UserConfig: NewUserConfigService(repo, logger),
		Calendar:   NewCalendarService(repo, deps.Calendars, deps.Generator, logger),
		Template:   NewTemplateService(repo, contextSvc, deps.Calendars, deps.Generator, logger),
		Dida:       NewDidaService(repo, deps.Tasks, deps.OAuth, cfg.Dida.OAuth.FrontendURL, logger),
	}
}
