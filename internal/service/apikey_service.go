package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
)

// ── API Key 模块业务错误 ──

var (
	ErrAPIKeyInvalid  = errors.New("API Key 无效")
	ErrAPIKeyNotFound = errors.New("API Key 不存在")
)

const (
	apiKeyPrefix    = "sk-"
	apiKeyRandBytes = 24 // 48 位十六进制
	apiKeyLookupLen = len(apiKeyPrefix) + 8
)

// APIKeyService API Key 管理接口
type APIKeyService interface {
	// Create 创建或轮换当前用户的 API Key，明文只返回这一次
	Create(ctx context.Context, userID string) (*dto.APIKeyResponse, error)
	Revoke(ctx context.Context, userID string) error
	// Authenticate 校验明文 Key，返回所属用户
	Authenticate(ctx context.Context, rawKey string) (string, error)
}

type apiKeyService struct {
	repo   *repository.Repository
	cost   int
	logger *zap.Logger
}

// NewAPIKeyService 创建 APIKeyService 实例
func NewAPIKeyService(repo *repository.Repository, logger *zap.Logger) APIKeyService {
	return &apiKeyService{repo: repo, cost: bcrypt.DefaultCost, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *apiKeyService) Create(ctx context.Context, userID string) (*dto.APIKeyResponse, error) {
	buf := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("生成随机数失败: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), s.cost)
	if err != nil {
		return nil, fmt.Errorf("API Key 哈希失败: %w", err)
	}

	key := &model.APIKey{
		UserID:    userID,
		KeyPrefix: raw[:apiKeyLookupLen],
		KeyHash:   string(hash),
	}
	if err := s.repo.APIKey.Upsert(ctx, key); err != nil {
		s.logger.Error("保存 API Key 失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("API Key 已创建", zap.String("user_id", userID), zap.String("prefix", key.KeyPrefix))
	return &dto.APIKeyResponse{
		APIKey:    raw,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ────────────────────── Revoke ──────────────────────

func (s *apiKeyService) Revoke(ctx context.Context, userID string) error {
	if _, err := s.repo.APIKey.GetByUserID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAPIKeyNotFound
		}
		return err
	}
	return s.repo.APIKey.DeleteByUserID(ctx, userID)
}

// ────────────────────── Authenticate ──────────────────────

func (s *apiKeyService) Authenticate(ctx context.Context, rawKey string) (string, error) {
	rawKey = strings.TrimSpace(rawKey)
	if !strings.HasPrefix(rawKey, apiKeyPrefix) || len(rawKey) <= apiKeyLookupLen {
		return "", ErrAPIKeyInvalid
	}

	candidates, err := s.repo.APIKey.FindByPrefix(ctx, rawKey[:apiKeyLookupLen])
	if err != nil {
		return "", err
	}
	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(rawKey)) == nil {
			if err := s.repo.APIKey.TouchLastUsed(ctx, k.ID); err != nil {
				s.logger.Warn("更新 API Key 使用时间失败", zap.Error(err))
			}
			return k.UserID, nil
		}
	}
	return "", ErrAPIKeyInvalid
}
