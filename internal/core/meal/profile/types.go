package profile

import (
	"time"
)

// 排名清單上限
const (
	MaxIngredients = 15
	MaxProteins    = 8
	MaxCuisines    = 6
	MaxFavorites   = 10
	MaxLikedTitles = 8
)

// 烹飪頻率
const (
	FrequencyHigh    = "high"
	FrequencyMedium  = "medium"
	FrequencyLow     = "low"
	FrequencyUnknown = "unknown"
)

// 烹飪型態
const (
	PatternWeekendWarrior   = "weekend_warrior"
	PatternWeekdayCook      = "weekday_cook"
	PatternBalanced         = "balanced"
	PatternInsufficientData = "insufficient_data"
)

// 複雜度偏好
const (
	ComplexitySimple = "simple"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// 互動程度
const (
	EngagementHigh   = "high"
	EngagementMedium = "medium"
	EngagementLow    = "low"
)

// RankedItem 附分數的排名項目
type RankedItem struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// CookingPatterns 烹飪習慣統計
type CookingPatterns struct {
	Frequency       string `json:"frequency"` // high / medium / low / unknown
	RecentCookCount int    `json:"recent_cook_count"`
	TotalCookCount  int    `json:"total_cook_count"`
	Pattern         string `json:"pattern"` // weekend_warrior / weekday_cook / balanced / insufficient_data
}

// RecentFavorite 近期高互動食譜
type RecentFavorite struct {
	RecipeID  string  `json:"recipe_id"`
	Title     string  `json:"title"`
	Weight    float64 `json:"weight"` // 互動權重
	ViewCount int     `json:"view_count"`
	CookCount int     `json:"cook_count"`
}

// RatingInsights 評價統計
type RatingInsights struct {
	TotalLikes        int      `json:"total_likes"`
	TotalDislikes     int      `json:"total_dislikes"`
	RecentLikedTitles []string `json:"recent_liked_titles"` // ≤8
	EngagementLevel   string   `json:"engagement_level"`
}

// DataQuality 資料品質統計
type DataQuality struct {
	CookbookSize    int  `json:"cookbook_size"`
	RecentActivity  int  `json:"recent_activity"`
	ViewHistorySize int  `json:"view_history_size"`
	RatingsCount    int  `json:"ratings_count"`
	HasGoodData     bool `json:"has_good_data"`
}

// PreferenceProfile 使用者偏好檔
// 由歷史活動推導的可重算產物，產生後不可變，只會被下一次計算取代
type PreferenceProfile struct {
	UserID               string           `json:"user_id"`
	GeneratedAt          time.Time        `json:"generated_at"`
	PreferredIngredients []RankedItem     `json:"preferred_ingredients"` // ≤15，依分數遞減
	FavoriteProteins     []RankedItem     `json:"favorite_proteins"`     // ≤8
	CuisineAffinities    []RankedItem     `json:"cuisine_affinities"`    // ≤6
	CookingPatterns      CookingPatterns  `json:"cooking_patterns"`
	ComplexityPreference string           `json:"complexity_preference"`
	RecentFavorites      []RecentFavorite `json:"recent_favorites"` // ≤10
	SeasonalPreferences  map[string]int   `json:"seasonal_preferences"`
	RatingInsights       RatingInsights   `json:"rating_insights"`
	DataQuality          DataQuality      `json:"data_quality"`
}

// EmptyProfile 規範的空偏好檔，任何錯誤路徑都以此回覆，不讓例外外洩
func EmptyProfile(userID string) *PreferenceProfile {
	return &PreferenceProfile{
		UserID:               userID,
		GeneratedAt:          time.Now().UTC(),
		PreferredIngredients: []RankedItem{},
		FavoriteProteins:     []RankedItem{},
		CuisineAffinities:    []RankedItem{},
		CookingPatterns: CookingPatterns{
			Frequency: FrequencyUnknown,
			Pattern:   PatternInsufficientData,
		},
		ComplexityPreference: ComplexityMedium,
		RecentFavorites:      []RecentFavorite{},
		SeasonalPreferences:  map[string]int{},
		RatingInsights: RatingInsights{
			RecentLikedTitles: []string{},
			EngagementLevel:   EngagementLow,
		},
		DataQuality: DataQuality{},
	}
}

// FallbackProfile 無可用資料時的固定預設偏好檔
func FallbackProfile(userID string) *PreferenceProfile {
	p := EmptyProfile(userID)
	p.FavoriteProteins = []RankedItem{
		{Name: "chicken", Score: 2.0},
		{Name: "salmon", Score: 1.5},
	}
	p.CuisineAffinities = []RankedItem{
		{Name: "italian", Score: 2.0},
		{Name: "mediterranean", Score: 1.5},
	}
	return p
}
