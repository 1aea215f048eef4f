package planner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/prefcache"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/core/meal/prompt"
	"meal-plan-personalizer/internal/core/meal/selector"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"
)

// Result 個人化計算結果
type Result struct {
	Prompt       string                     `json:"prompt"`
	Profile      *profile.PreferenceProfile `json:"profile"`
	Recipes      []meal.ScoredRecipe        `json:"recipes"`
	Guidance     meal.VarietyGuidance       `json:"guidance"`
	Distribution meal.Distribution          `json:"distribution"`
}

// Service 個人化管線：偏好檔 → 來源分配 → 多樣性指引 → 食譜挑選 → 提示詞
type Service struct {
	cache     *prefcache.Manager
	selector  *selector.Selector
	scorer    *variety.Scorer
	formatter *prompt.Formatter
	store     store.DocumentStore
}

// NewService 創建個人化服務
func NewService(cache *prefcache.Manager, sel *selector.Selector, scorer *variety.Scorer, formatter *prompt.Formatter, st store.DocumentStore) *Service {
	return &Service{
		cache:     cache,
		selector:  sel,
		scorer:    scorer,
		formatter: formatter,
		store:     st,
	}
}

// Personalize 執行完整個人化管線
func (s *Service) Personalize(ctx context.Context, req meal.PlanRequest) (*Result, error) {
	if req.UserID == "" {
		return nil, common.NewValidationError("user_id 為必填欄位")
	}
	if req.TotalSlots <= 0 {
		return nil, common.NewValidationError("total_slots 必須大於 0")
	}

	start := time.Now()

	prof := s.cache.GetProfile(ctx, req.UserID)
	dist := s.selector.Distribution(req.SourcePriority, req.TotalSlots)

	// 呼叫端未提供近期餐點時，從烹飪紀錄回推多樣性視窗
	recentMeals := req.RecentMeals
	if len(recentMeals) == 0 {
		recentMeals = s.recentCookedTitles(ctx, req.UserID)
	}
	guidance := s.scorer.GenerateGuidance(recentMeals)

	recipes := s.selector.SelectTopRecipes(ctx, req.UserID, dist.CookbookCount, prof, req.Meal, req.RecentlyUsedIDs)

	// 食譜庫不足時把缺額轉給生成端；cookbook_only 維持原分配，由回退計分處理
	if shortfall := dist.CookbookCount - len(recipes); shortfall > 0 && req.SourcePriority != meal.SourceCookbookOnly {
		dist.CookbookCount -= shortfall
		dist.AICount += shortfall
	}

	text := s.formatter.Format(prof, recipes, guidance)
	if !s.formatter.IsWithinTokenLimits(text) {
		// 超出 token 預算時改用較精簡的自然語言版本
		text = s.formatter.FormatNaturalLanguage(prof, recipes, guidance)
	}

	common.LogInfo("Personalization completed",
		zap.String("user_id", req.UserID),
		zap.Int("cookbook_count", dist.CookbookCount),
		zap.Int("ai_count", dist.AICount),
		zap.Int("selected_recipes", len(recipes)),
		zap.Float64("diversity_score", guidance.DiversityScore),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		Prompt:       text,
		Profile:      prof,
		Recipes:      recipes,
		Guidance:     guidance,
		Distribution: dist,
	}, nil
}

// EvaluateCandidate 評估候選餐點相對近期餐點的多樣性分數 [0,10]
// 供生成端過濾與排序候選菜名
func (s *Service) EvaluateCandidate(candidate string, req meal.PlanRequest, availableCookbook int) float64 {
	scoreCtx := &variety.ScoreContext{
		SourcePriority:           req.SourcePriority,
		AvailableCookbookRecipes: availableCookbook,
		MealSlotsNeeded:          req.TotalSlots,
	}
	return s.scorer.VarietyScore(candidate, req.RecentMeals, scoreCtx)
}

// recentCookedTitles 取多樣性視窗內最近烹飪的餐點名稱，由新到舊
func (s *Service) recentCookedTitles(ctx context.Context, userID string) []string {
	since := time.Now().UTC().Add(-s.scorer.RecentWindow())
	docs, err := s.store.GetCollection(ctx, meal.CollectionCookLog, store.Query{
		Where: []store.Where{
			{Field: "user_id", Op: store.OpEqual, Value: userID},
			{Field: "cooked_at", Op: store.OpGreaterEqual, Value: since},
		},
		OrderBy: "cooked_at",
		Desc:    true,
		Limit:   20,
	})
	if err != nil {
		common.LogWarn("Failed to fetch cook log for variety window",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}

	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		var ev meal.CookEvent
		if err := doc.Decode(&ev); err != nil || ev.Title == "" {
			continue
		}
		titles = append(titles, ev.Title)
	}
	return titles
}

// InvalidateProfile 以活動事件標記偏好檔快取失效
func (s *Service) InvalidateProfile(ctx context.Context, userID, event string) error {
	return s.cache.Invalidate(ctx, userID, event)
}

// GetProfile 讀取（必要時重算）使用者偏好檔
func (s *Service) GetProfile(ctx context.Context, userID string) *profile.PreferenceProfile {
	return s.cache.GetProfile(ctx, userID)
}
