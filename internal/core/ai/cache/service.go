package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-redis/redis/v8"

	"meal-plan-personalizer/internal/core/ai"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/pkg/common"
)

// Service 生成結果快取
// 相同提示詞在 TTL 內直接重用回應，減少模型呼叫
type Service struct {
	client *redis.Client
	config *config.RedisConfig
}

// NewService 創建快取服務
func NewService(cfg *config.RedisConfig) (*Service, error) {
	if !cfg.Enabled {
		return &Service{config: cfg}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{
		client: client,
		config: cfg,
	}, nil
}

// Get 讀取快取的生成結果
func (s *Service) Get(ctx context.Context, model, prompt string) (*ai.Response, error) {
	if !s.config.Enabled || s.client == nil {
		return nil, common.ErrCacheDisabled
	}

	key := s.generateKey(model, prompt)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			common.LogCacheMiss("ai_response", key)
			return nil, fmt.Errorf("cache miss")
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var resp ai.Response
	if err := common.ParseJSONBytes(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	common.LogCacheHit("ai_response", key)
	resp.CacheHit = true
	return &resp, nil
}

// Set 寫入生成結果
func (s *Service) Set(ctx context.Context, model, prompt string, resp *ai.Response) error {
	if !s.config.Enabled || s.client == nil {
		return nil
	}

	key := s.generateKey(model, prompt)
	data, err := common.ToJSON(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close 關閉連線
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// generateKey 以模型與提示詞雜湊產生快取鍵
func (s *Service) generateKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + ":" + prompt))
	return "ai:response:" + hex.EncodeToString(sum[:])
}
