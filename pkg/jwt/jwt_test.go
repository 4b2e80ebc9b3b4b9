package jwt

import (
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/Redwinam/dida-master/config"
)

func newTestManager(issuer string) *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret: "test-secret-key-for-unit-testing-2026",
		Issuer:    issuer,
	})
}

func TestGenerateAndParseToken(t *testing.T) {
	m := newTestManager("dida-master")

	token, err := m.GenerateToken("user-1", "a@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID())
	}
	if claims.Email != "a@example.com" {
		t.Errorf("期望 Email=a@example.com，实际=%s", claims.Email)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := newTestManager("")

	token, err := m.GenerateToken("user-1", "", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	if _, err := m.ParseToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m1 := newTestManager("")
	m2 := NewManager(&config.AuthConfig{JWTSecret: "another-secret-key-2026-xyz"})

	token, _ := m1.GenerateToken("user-1", "", time.Minute)
	if _, err := m2.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_IssuerMismatch(t *testing.T) {
	signer := newTestManager("someone-else")
	verifier := newTestManager("dida-master")

	token, _ := signer.GenerateToken("user-1", "", time.Minute)
	if _, err := verifier.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_MissingSubject(t *testing.T) {
	m := newTestManager("")
	claims := Claims{RegisteredClaims: jwtv5.RegisteredClaims{
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, _ := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)

	if _, err := m.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("缺少 sub 应返回 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	m := newTestManager("")
	if _, err := m.ParseToken("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestGenerateDispatchToken(t *testing.T) {
	m := newTestManager("")

	token, err := m.GenerateDispatchToken("user-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateDispatchToken 失败: %v", err)
	}
	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}
	if !claims.IsDispatch() || claims.UserID() != "user-1" {
		t.Errorf("期望分发 Token，实际 role=%s sub=%s", claims.Role, claims.UserID())
	}

	session, _ := m.GenerateToken("user-1", "", time.Minute)
	if c, _ := m.ParseToken(session); c.IsDispatch() {
		t.Error("会话 Token 不应被识别为分发 Token")
	}
}
