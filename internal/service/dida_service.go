package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/repository"
)

// ── 滴答清单账户模块业务错误 ──

var (
	ErrDidaTokenMissing    = errors.New("未连接滴答清单")
	ErrDidaUnavailable     = errors.New("滴答清单服务不可用")
	ErrOAuthNotConfigured  = errors.New("未配置滴答清单 OAuth 应用")
	ErrOAuthExchangeFailed = errors.New("滴答清单授权失败")
)

// DidaService 滴答清单账户接口
type DidaService interface {
	// Projects token 为空时使用用户已保存的 Token
	Projects(ctx context.Context, userID, token string) ([]dto.ProjectResponse, error)
	AuthorizeURL(state string) (string, error)
	// ExchangeCode 换取 Token 并返回携带 dida_token 的前端跳转地址
	ExchangeCode(ctx context.Context, code string) (string, error)
}

type didaService struct {
	repo        *repository.Repository
	tasks       TaskClient
	oauth       OAuthProvider
	frontendURL string
	logger      *zap.Logger
}

// NewDidaService 创建 DidaService 实例，oauth 为 nil 时授权接口不可用
func NewDidaService(repo *repository.Repository, tasks TaskClient, oauth OAuthProvider, frontendURL string, logger *zap.Logger) DidaService {
	if frontendURL == "" {
		frontendURL = "/"
	}
	return &didaService{repo: repo, tasks: tasks, oauth: oauth, frontendURL: frontendURL, logger: logger}
}

func (s *didaService) Projects(ctx context.Context, userID, token string) ([]dto.ProjectResponse, error) {
	if token == "" {
		settings, err := loadSettingsOrDefault(ctx, s.repo, userID)
		if err != nil {
			return nil, err
		}
		token = settings.DidaToken
	}
	if token == "" {
		return nil, ErrDidaTokenMissing
	}

	projects, err := s.tasks.Projects(ctx, token)
	if err != nil {
		s.logger.Warn("获取滴答清单列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDidaUnavailable, err)
	}

	out := make([]dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, dto.ProjectResponse{ID: p.ID, Name: p.Name, Closed: p.Closed})
	}
	return out, nil
}

func (s *didaService) AuthorizeURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.oauth.AuthCodeURL(state), nil
}

func (s *didaService) ExchangeCode(ctx context.Context, code string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthNotConfigured
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("滴答清单授权码换取失败", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrOAuthExchangeFailed, err)
	}

	u, err := url.Parse(s.frontendURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("dida_token", token)
	u.RawQuery = q.Encode()
	s.logger.Info("滴答清单授权完成")
	return u.String(), nil
}
