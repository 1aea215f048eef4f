package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"meal-plan-personalizer/internal/core/ai"
	"meal-plan-personalizer/internal/core/ai/cache"
	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/pkg/common"
)

// Generator 文字生成介面
type Generator interface {
	Generate(ctx context.Context, prompt string) (*ai.Response, error)
	GetModel() string
	Close() error
}

// Service 餐點生成服務，包裝模型呼叫與回應快取
type Service struct {
	generator Generator
	cache     *cache.Service
	config    *config.OpenRouterConfig
}

// NewService 創建生成服務
func NewService(generator Generator, cacheService *cache.Service, cfg *config.OpenRouterConfig) *Service {
	return &Service{
		generator: generator,
		cache:     cacheService,
		config:    cfg,
	}
}

// Enabled 生成功能是否可用
func (s *Service) Enabled() bool {
	return s.config != nil && s.config.Enabled && s.generator != nil
}

// Generate 生成回應，優先使用快取
func (s *Service) Generate(ctx context.Context, prompt string) (*ai.Response, error) {
	if !s.Enabled() {
		return nil, common.ErrAIServiceError
	}

	model := s.generator.GetModel()
	if s.cache != nil {
		if resp, err := s.cache.Get(ctx, model, prompt); err == nil {
			return resp, nil
		}
	}

	resp, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, model, prompt, resp); err != nil {
			common.LogWarn("Failed to cache AI response", zap.Error(err))
		}
	}
	return resp, nil
}

// GenerateMeals 依個人化摘要生成指定數量的餐點
// personalization 為管線輸出的偏好摘要，會直接注入提示詞
func (s *Service) GenerateMeals(ctx context.Context, personalization string, mealCtx meal.MealContext, count int) ([]ai.GeneratedMeal, error) {
	if count <= 0 {
		return []ai.GeneratedMeal{}, nil
	}

	prompt := buildMealPrompt(personalization, mealCtx, count)
	resp, err := s.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	meals, err := parseMeals(resp.Content)
	if err != nil {
		common.LogError("Failed to parse generated meals",
			zap.Error(err),
			zap.Int("content_length", len(resp.Content)))
		return nil, fmt.Errorf("failed to parse generated meals: %w", err)
	}
	if len(meals) > count {
		meals = meals[:count]
	}
	return meals, nil
}

// buildMealPrompt 組合生成提示詞
func buildMealPrompt(personalization string, mealCtx meal.MealContext, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d meal ideas as a JSON array. ", count)
	sb.WriteString("Each element must have: title, description, cuisine, calories, total_time_minutes, ingredients (array), instructions (array). ")
	sb.WriteString("Return only the JSON array, no extra text.\n")

	if mealCtx.MealType != "" {
		fmt.Fprintf(&sb, "Meal type: %s.\n", mealCtx.MealType)
	}
	if mealCtx.TargetCalories > 0 {
		fmt.Fprintf(&sb, "Target calories per meal: around %d.\n", mealCtx.TargetCalories)
	}
	if mealCtx.MaxCookTimeMinutes > 0 {
		fmt.Fprintf(&sb, "Maximum cooking time: %d minutes.\n", mealCtx.MaxCookTimeMinutes)
	}
	if mealCtx.Season != "" {
		fmt.Fprintf(&sb, "Season: %s.\n", mealCtx.Season)
	}
	if personalization != "" {
		sb.WriteString("User preferences:\n")
		sb.WriteString(personalization)
	}
	return sb.String()
}

// parseMeals 解析模型輸出為餐點清單，容忍 markdown 代碼框
func parseMeals(content string) ([]ai.GeneratedMeal, error) {
	cleaned := stripCodeFences(content)

	var meals []ai.GeneratedMeal
	if err := common.ParseJSON(cleaned, &meals); err == nil {
		return meals, nil
	}

	// 部分模型會包一層物件
	var wrapped struct {
		Meals []ai.GeneratedMeal `json:"meals"`
	}
	if err := common.ParseJSON(cleaned, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Meals, nil
}

func stripCodeFences(content string) string {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}
	return strings.TrimSpace(cleaned)
}
