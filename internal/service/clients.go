package service

import (
	"context"
	"time"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/pkg/caldav"
	"github.com/Redwinam/dida-master/pkg/cos"
	"github.com/Redwinam/dida-master/pkg/dida"
	"github.com/Redwinam/dida-master/pkg/gateway"
)

// ── 外部服务依赖 ──
//
// 以接口形式注入，测试中使用内存实现替代

// TaskClient 任务清单服务
type TaskClient interface {
	Projects(ctx context.Context, token string) ([]dida.Project, error)
	ProjectTasks(ctx context.Context, token, projectID string) ([]dida.Task, error)
	CompletedTasks(ctx context.Context, token, cookie string, from, to time.Time) ([]dida.Task, error)
	CreateNote(ctx context.Context, token string, note *dida.Note, now time.Time) (*dida.Task, error)
}

// CalendarClient 单个用户的 CalDAV 连接
type CalendarClient interface {
	Calendars(ctx context.Context) ([]caldav.Calendar, error)
	Events(ctx context.Context, cal caldav.Calendar, start, end time.Time, loc *time.Location) ([]caldav.Event, error)
	PutEvent(ctx context.Context, cal caldav.Calendar, ev *caldav.NewEvent) (string, error)
}

// CalendarFactory 按用户凭证创建 CalDAV 连接
type CalendarFactory func(cred caldav.Credentials) (CalendarClient, error)

// NewCalendarFactory 基于 pkg/caldav 的默认实现
func NewCalendarFactory(cfg *config.CalDAVConfig) CalendarFactory {
	return func(cred caldav.Credentials) (CalendarClient, error) {
		c, err := caldav.NewClient(cfg, cred)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// ObjectStore 对象存储
type ObjectStore interface {
	Enabled() bool
	UploadRecord(ctx context.Context, key string, rec *cos.StoredRecord) error
	FetchRecord(ctx context.Context, key string) (*cos.StoredRecord, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key string) (string, error)
}

// Generator 生成网关
type Generator interface {
	Generate(ctx context.Context, req *gateway.Request) (*gateway.Result, error)
}

// OAuthProvider 任务清单开放平台授权
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// Deps 业务层依赖的外部服务
type Deps struct {
	Tasks     TaskClient
	Calendars CalendarFactory
	Store     ObjectStore
	Generator Generator
	Watermark Watermark
	Trigger   Trigger
	OAuth     OAuthProvider
}
