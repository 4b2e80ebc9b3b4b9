package dida

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/Redwinam/dida-master/config"
)

// OAuthScopes 读写任务所需的授权范围
var OAuthScopes = []string{"tasks:write", "tasks:read"}

// ErrOAuthExchange 授权码换取 Token 失败
var ErrOAuthExchange = errors.New("dida oauth exchange failed")

// OAuth 开放平台授权码流程
type OAuth struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewOAuth 创建授权流程，redirectURL 为本服务的回调地址
func NewOAuth(cfg *config.DidaOAuthConfig, redirectURL string, httpClient *http.Client) *OAuth {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: redirectURL,
			Scopes:      OAuthScopes,
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL 授权页地址
func (o *OAuth) AuthCodeURL(state string) string {
	return o.conf.AuthCodeURL(state)
}

// Exchange 用授权码换取访问 Token
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	tok, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrOAuthExchange)
	}
	return tok.AccessToken, nil
}
