package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/pkg/dida"
)

type mockOAuth struct {
	token   string
	err     error
	gotCode string
}

func (m *mockOAuth) AuthCodeURL(state string) string {
	return "https://dida365.com/oauth/authorize?state=" + state
}

func (m *mockOAuth) Exchange(_ context.Context, code string) (string, error) {
	m.gotCode = code
	return m.token, m.err
}

type tokenRecordingTasks struct {
	*mockTaskClient
	gotToken string
}

func (t *tokenRecordingTasks) Projects(ctx context.Context, token string) ([]dida.Project, error) {
	t.gotToken = token
	return t.mockTaskClient.Projects(ctx, token)
}

func setupTestDidaService(oauth OAuthProvider, frontend string) (DidaService, *mockRepos, *tokenRecordingTasks) {
	repo, mocks := newMockRepository()
	tasks := &tokenRecordingTasks{mockTaskClient: newMockTaskClient()}
	return NewDidaService(repo, tasks, oauth, frontend, zap.NewNop()), mocks, tasks
}

func TestDidaService_Projects_StoredToken(t *testing.T) {
	svc, mocks, tasks := setupTestDidaService(nil, "")
	mocks.userConfig.put("u1", model.UserSettings{DidaToken: "stored"})
	tasks.projects = []dida.Project{{ID: "p1", Name: "工作"}, {ID: "p2", Name: "归档", Closed: true}}

	res, err := svc.Projects(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if tasks.gotToken != "stored" {
		t.Errorf("应使用已保存的 Token，实际=%q", tasks.gotToken)
	}
	if len(res) != 2 || !res[1].Closed {
		t.Errorf("清单列表错误: %+v", res)
	}
}

func TestDidaService_Projects_QueryTokenWins(t *testing.T) {
	svc, mocks, tasks := setupTestDidaService(nil, "")
	mocks.userConfig.put("u1", model.UserSettings{DidaToken: "stored"})

	if _, err := svc.Projects(context.Background(), "u1", "fresh"); err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if tasks.gotToken != "fresh" {
		t.Errorf("查询参数中的 Token 优先，实际=%q", tasks.gotToken)
	}
}

func TestDidaService_Projects_Errors(t *testing.T) {
	svc, _, tasks := setupTestDidaService(nil, "")

	if _, err := svc.Projects(context.Background(), "u1", ""); !errors.Is(err, ErrDidaTokenMissing) {
		t.Errorf("无 Token 期望 ErrDidaTokenMissing，实际: %v", err)
	}

	tasks.projectsErr = errors.New("401 unauthorized")
	if _, err := svc.Projects(context.Background(), "u1", "bad"); !errors.Is(err, ErrDidaUnavailable) {
		t.Errorf("上游失败期望 ErrDidaUnavailable，实际: %v", err)
	}
}

func TestDidaService_OAuthNotConfigured(t *testing.T) {
	svc, _, _ := setupTestDidaService(nil, "")

	if _, err := svc.AuthorizeURL("s"); !errors.Is(err, ErrOAuthNotConfigured) {
		t.Errorf("AuthorizeURL 期望 ErrOAuthNotConfigured，实际: %v", err)
	}
	if _, err := svc.ExchangeCode(context.Background(), "c"); !errors.Is(err, ErrOAuthNotConfigured) {
		t.Errorf("ExchangeCode 期望 ErrOAuthNotConfigured，实际: %v", err)
	}
}

func TestDidaService_ExchangeCode_RedirectsToFrontend(t *testing.T) {
	oauth := &mockOAuth{token: "at 1"}
	svc, _, _ := setupTestDidaService(oauth, "https://app.example.com/settings?tab=dida")

	target, err := svc.ExchangeCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("跳转地址无效: %v", err)
	}
	if u.Host != "app.example.com" || u.Path != "/settings" {
		t.Errorf("跳转地址错误: %s", target)
	}
	if u.Query().Get("dida_token") != "at 1" || u.Query().Get("tab") != "dida" {
		t.Errorf("应保留原查询参数并追加 dida_token: %s", target)
	}
	if oauth.gotCode != "code-1" {
		t.Errorf("授权码未传递: %s", oauth.gotCode)
	}
}

func TestDidaService_ExchangeCode_Failure(t *testing.T) {
	svc, _, _ := setupTestDidaService(&mockOAuth{err: errors.New("invalid_grant")}, "")

	if _, err := svc.ExchangeCode(context.Background(), "bad"); !errors.Is(err, ErrOAuthExchangeFailed) {
		t.Errorf("期望 ErrOAuthExchangeFailed，实际: %v", err)
	}
}
