package gateway

import (
	"errors"
	"strings"

	"github.com/Redwinam/dida-master/config"
)

// ErrNoCredential 所有系统凭证来源均为空
var ErrNoCredential = errors.New("未配置生成网关系统凭证")

// CredentialSource 一个具名的凭证来源
type CredentialSource struct {
	Name  string
	Value string
}

// Credential 选中的系统凭证
type Credential struct {
	Source string
	Token  string
}

// NewCredential 按顺序返回第一个非空来源
func NewCredential(sources ...CredentialSource) (Credential, error) {
	for _, s := range sources {
		if v := strings.TrimSpace(s.Value); v != "" {
			return Credential{Source: s.Name, Token: v}, nil
		}
	}
	return Credential{}, ErrNoCredential
}

// SystemCredential service_role_key → service_key → public_key
func SystemCredential(cfg *config.GatewayConfig) (Credential, error) {
	return NewCredential(
		CredentialSource{Name: "service_role_key", Value: cfg.ServiceRoleKey},
		CredentialSource{Name: "service_key", Value: cfg.ServiceKey},
		CredentialSource{Name: "public_key", Value: cfg.PublicKey},
	)
}

// minUserTokenLen 用户 Token 长度超过该值才视为有效
const minUserTokenLen = 20

// authorization 优先使用调用方 Token，否则回退系统凭证
func (c *Client) authorization(userToken string) (header, kind string, err error) {
	if len(userToken) > minUserTokenLen {
		return "Bearer " + userToken, "user_token", nil
	}
	if c.systemErr != nil {
		return "", "", c.systemErr
	}
	return "Bearer " + c.system.Token, c.system.Source, nil
}

// maskToken 日志中只保留前缀
func maskToken(header string) string {
	const keep = 20
	if len(header) <= keep {
		return header
	}
	return header[:keep] + "..."
}
