package meal

import (
	"time"
)

// 集合名稱
// 引擎只讀取前四個集合，僅寫入 preference_cache
const (
	CollectionSavedRecipes    = "saved_recipes"
	CollectionCookLog         = "cook_log"
	CollectionViewHistory     = "view_history"
	CollectionRecipeRatings   = "recipe_ratings"
	CollectionPreferenceCache = "preference_cache"
)

// 食譜來源優先策略
const (
	SourceCookbookOnly = "cookbook_only"
	SourceBalancedMix  = "balanced_mix"
	SourceDiscoverNew  = "discover_new"
)

// SavedRecipe 使用者收藏的食譜
type SavedRecipe struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Cuisine          string    `json:"cuisine,omitempty"`
	Category         string    `json:"category,omitempty"` // 如 breakfast、dinner、snack
	Ingredients      []string  `json:"ingredients"`
	Instructions     []string  `json:"instructions"`
	Calories         int       `json:"calories,omitempty"`
	TotalTimeMinutes int       `json:"total_time_minutes,omitempty"`
	Rating           float64   `json:"rating,omitempty"`
	CookCount        int       `json:"cook_count,omitempty"`
	ImageURL         string    `json:"image_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsStub 判斷是否為不完整的食譜（缺少食材或步驟，不納入挑選）
func (r SavedRecipe) IsStub() bool {
	return len(r.Ingredients) == 0 || len(r.Instructions) == 0
}

// CookEvent 烹飪活動紀錄
type CookEvent struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	RecipeID string    `json:"recipe_id"`
	Title    string    `json:"title"`
	CookedAt time.Time `json:"cooked_at"`
}

// ViewEvent 瀏覽紀錄
type ViewEvent struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	RecipeID string    `json:"recipe_id"`
	Title    string    `json:"title"`
	ViewedAt time.Time `json:"viewed_at"`
}

// RecipeRating 喜歡/不喜歡評價
type RecipeRating struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	RecipeID string    `json:"recipe_id"`
	Title    string    `json:"title"`
	Liked    bool      `json:"liked"`
	RatedAt  time.Time `json:"rated_at"`
}

// MealContext 單一餐點的規劃脈絡
type MealContext struct {
	MealType           string `json:"meal_type,omitempty"` // breakfast、lunch、dinner、snack
	TargetCalories     int    `json:"target_calories,omitempty"`
	MaxCookTimeMinutes int    `json:"max_cook_time_minutes,omitempty"`
	Season             string `json:"season,omitempty"`
}

// PlanRequest 產生個人化餐點計畫的請求
type PlanRequest struct {
	UserID          string      `json:"user_id"`
	TotalSlots      int         `json:"total_slots"`
	SourcePriority  string      `json:"source_priority,omitempty"`
	RecentMeals     []string    `json:"recent_meals,omitempty"` // 索引 0 為最近一餐
	RecentlyUsedIDs []string    `json:"recently_used_ids,omitempty"`
	Meal            MealContext `json:"meal_context,omitempty"`
}

// ScoredRecipe 附帶挑選分數的食譜，僅存在於單次請求
type ScoredRecipe struct {
	Recipe SavedRecipe `json:"recipe"`
	Score  float64     `json:"score"` // [0,10]
}

// VarietyGuidance 多樣性指引，僅存在於單次請求
type VarietyGuidance struct {
	RecentCuisines      []string `json:"recent_cuisines"`      // ≤4
	RecentProteins      []string `json:"recent_proteins"`      // ≤3
	RecentMethods       []string `json:"recent_methods"`       // ≤3
	RecommendedCuisines []string `json:"recommended_cuisines"` // ≤3
	RecommendedProteins []string `json:"recommended_proteins"` // ≤2
	DiversityScore      float64  `json:"diversity_score"`      // 0–10
	ExplicitExclusions  []string `json:"explicit_exclusions"`  // 禁止重複生成的確切標題
}

// Distribution 食譜來源分配結果
type Distribution struct {
	CookbookCount int `json:"cookbook_count"`
	AICount       int `json:"ai_count"`
}
