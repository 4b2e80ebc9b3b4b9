package handler

import "github.com/Redwinam/dida-master/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Cron       *CronHandler
	Callback   *CallbackHandler
	Action     *ActionHandler
	Record     *RecordHandler
	Export     *ExportHandler
	APIKey     *APIKeyHandler
	UserConfig *UserConfigHandler
	Calendar   *CalendarHandler
	Template   *TemplateHandler
	Dida       *DidaHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Cron:       NewCronHandler(svc.Dispatch, svc.Record),
		Callback:   NewCallbackHandler(svc.Callback),
		Action:     NewActionHandler(svc.Action, svc.Calendar, svc.Template),
		Record:     NewRecordHandler(svc.Record),
		Export:     NewExportHandler(svc.Export),
		APIKey:     NewAPIKeyHandler(svc.APIKey),
		UserConfig: NewUserConfigHandler(svc.UserConfig),
		Calendar:   NewCalendarHandler(svc.Calendar),
		Template:   NewTemplateHandler(svc.Template),
		Dida:       NewDidaHandler(svc.Dida),
	}
}
