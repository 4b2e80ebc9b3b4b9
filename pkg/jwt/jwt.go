package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Redwinam/dida-master/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// Claims 会话 Token 声明
// 用户 ID 取自标准 sub 字段，与外部认证服务签发的 Token 保持一致
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwtv5.RegisteredClaims
}

// 角色声明
const (
	RoleAuthenticated = "authenticated"
	// RoleDispatch 定时分发器调用动作端点时使用，不代表用户会话
	RoleDispatch = "dispatch"
)

// UserID 返回 Token 所属用户
func (c *Claims) UserID() string { return c.Subject }

// IsDispatch 是否为定时分发器签发的 Token
func (c *Claims) IsDispatch() bool { return c.Role == RoleDispatch }

// Manager 会话 Token 管理器
type Manager struct {
	secret []byte
	issuer string
}

// NewManager 创建 Token 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// GenerateToken 签发会话 Token，供内部工具与测试使用
func (m *Manager) GenerateToken(userID, email string, ttl time.Duration) (string, error) {
	return m.sign(userID, email, RoleAuthenticated, ttl)
}

// GenerateDispatchToken 签发定时分发专用 Token
func (m *Manager) GenerateDispatchToken(userID string, ttl time.Duration) (string, error) {
	return m.sign(userID, "", RoleDispatch, ttl)
}

func (m *Manager) sign(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(m.issuer))
	}

	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
