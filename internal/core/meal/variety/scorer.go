package variety

import (
	"math"
	"time"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/infrastructure/config"
)

// 相似度放大與扣分常數
const (
	amplifyThreshold = 0.8 // 超過此相似度視為近乎重複
	amplifyFactor    = 1.5
	exactThreshold   = 0.9 // 原始相似度達此值追加扣分
	scoreSlope       = 12.0
	exactPenalty     = 5.0

	// 小食譜庫回退參數：避免耗盡小收藏後分數永遠歸零
	fallbackSlope        = 8.0
	fallbackExactPenalty = 2.0
	fallbackFloor        = 1.0
	fallbackElapsedBonus = 2.0
	fallbackElapsedMeals = 3
)

// ScoreContext 多樣性評分的請求脈絡
type ScoreContext struct {
	SourcePriority           string
	AvailableCookbookRecipes int
	MealSlotsNeeded          int
}

// limitedCookbook 判斷是否適用小食譜庫回退
func (c *ScoreContext) limitedCookbook() bool {
	if c == nil {
		return false
	}
	return c.SourcePriority == meal.SourceCookbookOnly &&
		c.AvailableCookbookRecipes < c.MealSlotsNeeded
}

// Scorer 相似度與多樣性計分器，純函數、無 I/O
type Scorer struct {
	cfg config.VarietyConfig
}

// NewScorer 創建計分器
func NewScorer(cfg config.VarietyConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// RecentWindow 多樣性計算回溯的時間窗
func (s *Scorer) RecentWindow() time.Duration {
	weeks := s.cfg.RecentWindowWeeks
	if weeks <= 0 {
		weeks = 4
	}
	return time.Duration(weeks) * 7 * 24 * time.Hour
}

// Similarity 計算兩個餐點描述的相似度 [0,1]
// 標題完全相同直接回傳 1.0，否則由四個獨立訊號加總，上限 1.0
func (s *Scorer) Similarity(mealA, mealB string) float64 {
	normA, normB := NormalizeTitle(mealA), NormalizeTitle(mealB)
	if normA == "" || normB == "" {
		return 0
	}
	if normA == normB {
		return 1.0
	}

	sim := 0.0

	if pa, pb := DetectProtein(mealA), DetectProtein(mealB); pa != "" && pa == pb {
		sim += s.cfg.ProteinWeight
	}
	if ca, cb := DetectCuisine(mealA), DetectCuisine(mealB); ca != "" && ca == cb {
		sim += s.cfg.CuisineWeight
	}
	if ia, ib := DetectDominantIngredient(mealA), DetectDominantIngredient(mealB); ia != "" && ia == ib {
		sim += s.cfg.IngredientWeight
	}
	if ma, mb := DetectMethod(mealA), DetectMethod(mealB); ma != "" && ma == mb {
		sim += s.cfg.MethodWeight
	}

	if sim > 1.0 {
		sim = 1.0
	}
	return sim
}

// VarietyScore 計算候選餐點相對近期餐點視窗的多樣性分數 [0,10]
// 取加權相似度的最大值（單一最嚴重的衝突決定分數），而非平均
func (s *Scorer) VarietyScore(candidate string, recentMeals []string, ctx *ScoreContext) float64 {
	if len(recentMeals) == 0 {
		return 10.0
	}

	maxWeighted := 0.0
	maxRaw := 0.0
	for i, recent := range recentMeals {
		sim := s.Similarity(candidate, recent)
		if sim > maxRaw {
			maxRaw = sim
		}

		amplified := sim
		if sim > amplifyThreshold {
			// 近乎重複要罰得比部分重疊更重
			amplified = sim * amplifyFactor
		}

		// λ 取小值，遠期重複仍有懲罰
		weighted := amplified * math.Exp(-s.cfg.DecayLambda*float64(i))
		if weighted > maxWeighted {
			maxWeighted = weighted
		}
	}

	if ctx.limitedCookbook() {
		score := 10.0 - fallbackSlope*maxWeighted
		if maxRaw >= exactThreshold {
			score -= fallbackExactPenalty
		}
		if len(recentMeals) >= fallbackElapsedMeals {
			score += fallbackElapsedBonus
		}
		if score < fallbackFloor {
			score = fallbackFloor
		}
		if score > 10.0 {
			score = 10.0
		}
		return score
	}

	score := 10.0 - scoreSlope*maxWeighted
	if maxRaw >= exactThreshold {
		score -= exactPenalty
	}
	if score < 0 {
		score = 0
	}
	return score
}
