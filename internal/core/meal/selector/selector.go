package selector

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"
)

// 來源策略對應的食譜庫占比
var sourceRatios = map[string]float64{
	meal.SourceCookbookOnly: 1.0,
	meal.SourceBalancedMix:  0.7,
	meal.SourceDiscoverNew:  0.4,
}

// 近期使用懲罰層級：最近五次、第六到十次、更早之前
const (
	recencyWithinFive = 8.0
	recencyWithinTen  = 5.0
	recencyOlder      = 2.0
)

// mealTypeKeywords 餐別對應的分類關鍵字
var mealTypeKeywords = map[string][]string{
	"breakfast": {"breakfast", "brunch", "morning"},
	"lunch":     {"lunch", "salad", "sandwich", "soup", "bowl"},
	"dinner":    {"dinner", "main", "entree", "supper"},
	"snack":     {"snack", "appetizer", "dessert", "side"},
}

// Selector 從使用者食譜庫挑選最適合的食譜
type Selector struct {
	store store.DocumentStore
	cfg   config.ScoringConfig
	pref  config.PreferenceConfig
}

// NewSelector 創建食譜挑選器
func NewSelector(st store.DocumentStore, cfg config.ScoringConfig, pref config.PreferenceConfig) *Selector {
	return &Selector{store: st, cfg: cfg, pref: pref}
}

// Distribution 依來源策略分配食譜庫與生成的格數
// 未知策略視為 balanced_mix；兩者相加恆等於 totalSlots
func (s *Selector) Distribution(priority string, totalSlots int) meal.Distribution {
	if totalSlots <= 0 {
		return meal.Distribution{}
	}
	ratio, ok := sourceRatios[priority]
	if !ok {
		ratio = sourceRatios[meal.SourceBalancedMix]
	}
	cookbook := int(math.Floor(ratio * float64(totalSlots)))
	if cookbook > totalSlots {
		cookbook = totalSlots
	}
	return meal.Distribution{
		CookbookCount: cookbook,
		AICount:       totalSlots - cookbook,
	}
}

// SelectTopRecipes 依偏好檔與餐點脈絡為食譜庫評分，回傳前 count 名
// 分數為加權總和並夾在 [0,10]；不完整的食譜直接略過
func (s *Selector) SelectTopRecipes(ctx context.Context, userID string, count int, prof *profile.PreferenceProfile, mealCtx meal.MealContext, recentlyUsedIDs []string) []meal.ScoredRecipe {
	if count <= 0 {
		return []meal.ScoredRecipe{}
	}
	if prof == nil {
		prof = profile.EmptyProfile(userID)
	}

	docs, err := s.store.GetCollection(ctx, meal.CollectionSavedRecipes, store.Query{
		Where:   []store.Where{{Field: "user_id", Op: store.OpEqual, Value: userID}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   s.pref.CookbookLimit,
	})
	if err != nil {
		common.LogWarn("Failed to fetch cookbook for selection",
			zap.String("user_id", userID),
			zap.Error(err))
		return []meal.ScoredRecipe{}
	}

	// 位置越前代表越近期被使用
	usedAt := make(map[string]int, len(recentlyUsedIDs))
	for i, id := range recentlyUsedIDs {
		if _, seen := usedAt[id]; !seen {
			usedAt[id] = i
		}
	}

	scored := make([]meal.ScoredRecipe, 0, len(docs))
	for _, doc := range docs {
		var r meal.SavedRecipe
		if err := doc.Decode(&r); err != nil {
			continue
		}
		if r.ID == "" {
			r.ID = doc.ID
		}
		if r.IsStub() {
			continue
		}

		affinity := s.affinityScore(r, prof)
		contextFit := s.contextScore(r, mealCtx)
		recency := s.recencyScore(r, usedAt)
		quality := s.qualityScore(r)

		total := s.cfg.AffinityWeight*affinity +
			s.cfg.ContextWeight*contextFit -
			s.cfg.RecencyWeight*recency +
			s.cfg.QualityWeight*quality

		scored = append(scored, meal.ScoredRecipe{
			Recipe: r,
			Score:  common.Clamp(total, 0, 10),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Recipe.ID < scored[j].Recipe.ID
	})
	if len(scored) > count {
		scored = scored[:count]
	}
	return scored
}

// affinityScore 偏好契合度 [0,10]：菜系、蛋白質、食材、複雜度與高互動食譜
func (s *Selector) affinityScore(r meal.SavedRecipe, prof *profile.PreferenceProfile) float64 {
	score := 5.0

	cuisine := strings.ToLower(strings.TrimSpace(r.Cuisine))
	if cuisine == "" {
		cuisine = variety.DetectCuisine(r.Title)
	}
	score += 3.0 * rankedShare(prof.CuisineAffinities, cuisine)

	text := r.Title + " " + strings.Join(r.Ingredients, " ")
	if p := variety.DetectProtein(text); p != "" {
		score += 2.0 * rankedShare(prof.FavoriteProteins, p)
	}

	// 與前十名偏好食材重疊，每項 +0.3，至多 +2
	top := prof.PreferredIngredients
	if len(top) > 10 {
		top = top[:10]
	}
	overlap := 0.0
	for _, ing := range r.Ingredients {
		name := strings.ToLower(strings.TrimSpace(ing))
		if name == "" {
			continue
		}
		if rankIndex(top, name) >= 0 {
			overlap += 0.3
		}
	}
	score += math.Min(overlap, 2.0)

	if profile.ComplexityBucket(profile.RecipeComplexityScore(r)) == prof.ComplexityPreference {
		score += 1.0
	}

	score += 2.0 * favoriteShare(prof.RecentFavorites, r.ID)

	return common.Clamp(score, 0, 10)
}

// contextScore 餐點脈絡契合度 [0,10]：熱量、餐別、時間與季節
func (s *Selector) contextScore(r meal.SavedRecipe, mealCtx meal.MealContext) float64 {
	score := 5.0

	if mealCtx.TargetCalories > 0 && r.Calories > 0 {
		diff := math.Abs(float64(r.Calories - mealCtx.TargetCalories))
		score += math.Max(0, 2.0*(1.0-diff/float64(mealCtx.TargetCalories)))
	}

	if keywords, ok := mealTypeKeywords[strings.ToLower(mealCtx.MealType)]; ok {
		category := strings.ToLower(r.Category)
		for _, kw := range keywords {
			if strings.Contains(category, kw) {
				score += 1.5
				break
			}
		}
	}

	if mealCtx.MaxCookTimeMinutes > 0 && r.TotalTimeMinutes > 0 {
		switch {
		case r.TotalTimeMinutes <= mealCtx.MaxCookTimeMinutes:
			score += 1.0
		case float64(r.TotalTimeMinutes) > 1.5*float64(mealCtx.MaxCookTimeMinutes):
			score -= 2.0
		}
	}

	if mealCtx.Season != "" {
		text := strings.ToLower(r.Title + " " + strings.Join(r.Ingredients, " "))
		if strings.Contains(text, strings.ToLower(mealCtx.Season)) {
			score += 0.5
		}
	}

	return common.Clamp(score, 0, 10)
}

// recencyScore 近期使用懲罰 [0,10]，依在已用清單中的位置分級
func (s *Selector) recencyScore(r meal.SavedRecipe, usedAt map[string]int) float64 {
	pos, ok := usedAt[r.ID]
	if !ok {
		return 0
	}
	switch {
	case pos < 5:
		return recencyWithinFive
	case pos < 10:
		return recencyWithinTen
	default:
		return recencyOlder
	}
}

// qualityScore 食譜品質 [0,10]：評分、烹飪次數、完整度與圖片
func (s *Selector) qualityScore(r meal.SavedRecipe) float64 {
	score := 5.0
	if r.Rating > 3 {
		score += r.Rating - 3.0
	}
	if r.CookCount > 0 {
		score += math.Min(0.25*float64(r.CookCount), 1.0)
	}
	if len(r.Ingredients) > 0 && len(r.Instructions) > 0 {
		score += 1.0
	}
	if r.ImageURL != "" {
		score += 0.5
	}
	return common.Clamp(score, 0, 10)
}

// rankedShare 名稱在排名清單中的分數相對榜首的占比，不存在為 0
func rankedShare(items []profile.RankedItem, name string) float64 {
	if name == "" || len(items) == 0 || items[0].Score <= 0 {
		return 0
	}
	for _, item := range items {
		if item.Name == name {
			return common.Clamp(item.Score/items[0].Score, 0, 1)
		}
	}
	return 0
}

// favoriteShare 近期高互動食譜的權重相對榜首的占比
func favoriteShare(favs []profile.RecentFavorite, recipeID string) float64 {
	if len(favs) == 0 || favs[0].Weight <= 0 {
		return 0
	}
	for _, fav := range favs {
		if fav.RecipeID == recipeID {
			return common.Clamp(fav.Weight/favs[0].Weight, 0, 1)
		}
	}
	return 0
}

// rankIndex 回傳名稱在排名清單中的索引，不存在時 -1
func rankIndex(items []profile.RankedItem, name string) int {
	if name == "" {
		return -1
	}
	for i, item := range items {
		if item.Name == name {
			return i
		}
	}
	return -1
}
