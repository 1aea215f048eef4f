package profile

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"

	"go.uber.org/zap"
)

// 活動權重
const (
	savedBaseWeight  = 1.0
	likedBonusWeight = 0.5
	cookBaseWeight   = 3.0
	cookDecayLambda  = 0.05 // 烹飪訊號衰減較慢
	viewDecayLambda  = 0.1
)

// seasonKeywords 季節關鍵字，統計收藏內容的季節傾向
var seasonKeywords = map[string][]string{
	"spring": {"asparagus", "pea", "artichoke", "radish", "spring"},
	"summer": {"grill", "salad", "corn", "berry", "gazpacho", "bbq", "watermelon"},
	"autumn": {"pumpkin", "apple", "mushroom", "cinnamon", "sweet potato", "butternut"},
	"winter": {"stew", "soup", "braised", "chili", "roast", "squash"},
}

// Builder 由使用者歷史活動計算偏好檔
type Builder struct {
	store store.DocumentStore
	cfg   config.PreferenceConfig
}

// NewBuilder 創建偏好檔計算器
func NewBuilder(st store.DocumentStore, cfg config.PreferenceConfig) *Builder {
	return &Builder{store: st, cfg: cfg}
}

// Build 並行讀取四個活動來源並計算偏好檔
// 單一來源失敗只記錄警告並以空集合代替；完全沒有可用資料時回傳固定預設偏好檔
func (b *Builder) Build(ctx context.Context, userID string) (*PreferenceProfile, error) {
	var (
		wg      sync.WaitGroup
		recipes []meal.SavedRecipe
		cooks   []meal.CookEvent
		views   []meal.ViewEvent
		ratings []meal.RecipeRating
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		recipes = b.fetchSavedRecipes(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		cooks = b.fetchCookLog(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		views = b.fetchViewHistory(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		ratings = b.fetchRatings(ctx, userID)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(recipes) == 0 && len(cooks) == 0 && len(views) == 0 && len(ratings) == 0 {
		common.LogInfo("No activity data, using fallback profile",
			zap.String("user_id", userID))
		return FallbackProfile(userID), nil
	}

	return b.compute(userID, recipes, cooks, views, ratings), nil
}

func (b *Builder) fetchSavedRecipes(ctx context.Context, userID string) []meal.SavedRecipe {
	docs, err := b.store.GetCollection(ctx, meal.CollectionSavedRecipes, store.Query{
		Where:   []store.Where{{Field: "user_id", Op: store.OpEqual, Value: userID}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   b.cfg.CookbookLimit,
	})
	if err != nil {
		common.LogWarn("Failed to fetch saved recipes",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	out := make([]meal.SavedRecipe, 0, len(docs))
	for _, doc := range docs {
		var r meal.SavedRecipe
		if err := doc.Decode(&r); err != nil {
			continue
		}
		if r.ID == "" {
			r.ID = doc.ID
		}
		out = append(out, r)
	}
	return out
}

func (b *Builder) fetchCookLog(ctx context.Context, userID string) []meal.CookEvent {
	since := time.Now().AddDate(0, 0, -b.cfg.CookLookbackDays)
	docs, err := b.store.GetCollection(ctx, meal.CollectionCookLog, store.Query{
		Where: []store.Where{
			{Field: "user_id", Op: store.OpEqual, Value: userID},
			{Field: "cooked_at", Op: store.OpGreaterEqual, Value: since},
		},
		OrderBy: "cooked_at",
		Desc:    true,
		Limit:   b.cfg.CookLogLimit,
	})
	if err != nil {
		common.LogWarn("Failed to fetch cook log",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	out := make([]meal.CookEvent, 0, len(docs))
	for _, doc := range docs {
		var ev meal.CookEvent
		if err := doc.Decode(&ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (b *Builder) fetchViewHistory(ctx context.Context, userID string) []meal.ViewEvent {
	docs, err := b.store.GetCollection(ctx, meal.CollectionViewHistory, store.Query{
		Where:   []store.Where{{Field: "user_id", Op: store.OpEqual, Value: userID}},
		OrderBy: "viewed_at",
		Desc:    true,
		Limit:   b.cfg.ViewLimit,
	})
	if err != nil {
		common.LogWarn("Failed to fetch view history",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	out := make([]meal.ViewEvent, 0, len(docs))
	for _, doc := range docs {
		var ev meal.ViewEvent
		if err := doc.Decode(&ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (b *Builder) fetchRatings(ctx context.Context, userID string) []meal.RecipeRating {
	docs, err := b.store.GetCollection(ctx, meal.CollectionRecipeRatings, store.Query{
		Where:   []store.Where{{Field: "user_id", Op: store.OpEqual, Value: userID}},
		OrderBy: "rated_at",
		Desc:    true,
		Limit:   b.cfg.RatingLimit,
	})
	if err != nil {
		common.LogWarn("Failed to fetch ratings",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	out := make([]meal.RecipeRating, 0, len(docs))
	for _, doc := range docs {
		var r meal.RecipeRating
		if err := doc.Decode(&r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// compute 聚合活動訊號為偏好檔
func (b *Builder) compute(userID string, recipes []meal.SavedRecipe, cooks []meal.CookEvent, views []meal.ViewEvent, ratings []meal.RecipeRating) *PreferenceProfile {
	now := time.Now()

	liked := map[string]bool{}
	for _, r := range ratings {
		if r.Liked {
			liked[r.RecipeID] = true
		}
	}

	// 以衰減權重聚合每道食譜的烹飪/瀏覽互動
	cookWeight := map[string]float64{}
	cookCount := map[string]int{}
	for _, ev := range cooks {
		days := now.Sub(ev.CookedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		cookWeight[ev.RecipeID] += cookBaseWeight * math.Exp(-cookDecayLambda*days)
		cookCount[ev.RecipeID]++
	}
	viewWeight := map[string]float64{}
	viewCount := map[string]int{}
	for _, ev := range views {
		days := now.Sub(ev.ViewedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		viewWeight[ev.RecipeID] += math.Exp(-viewDecayLambda*days)
		viewCount[ev.RecipeID]++
	}

	ingredientScores := map[string]float64{}
	proteinScores := map[string]float64{}
	cuisineScores := map[string]float64{}

	knownRecipes := map[string]bool{}
	for _, r := range recipes {
		knownRecipes[r.ID] = true

		w := savedBaseWeight
		if liked[r.ID] {
			w += likedBonusWeight
		}
		w += cookWeight[r.ID]
		w += viewWeight[r.ID]

		text := r.Title + " " + strings.Join(r.Ingredients, " ")
		for _, ing := range r.Ingredients {
			name := strings.ToLower(strings.TrimSpace(ing))
			if name == "" {
				continue
			}
			ingredientScores[name] += w
		}
		if p := variety.DetectProtein(text); p != "" {
			proteinScores[p] += w
		}
		cuisine := strings.ToLower(strings.TrimSpace(r.Cuisine))
		if cuisine == "" {
			cuisine = variety.DetectCuisine(r.Title)
		}
		if cuisine != "" {
			cuisineScores[cuisine] += w
		}
	}

	// 烹飪過但不在收藏內的餐點（例如直接生成後料理）仍以標題貢獻訊號
	for _, ev := range cooks {
		if knownRecipes[ev.RecipeID] || ev.Title == "" {
			continue
		}
		days := now.Sub(ev.CookedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		w := cookBaseWeight * math.Exp(-cookDecayLambda*days)
		if p := variety.DetectProtein(ev.Title); p != "" {
			proteinScores[p] += w
		}
		if c := variety.DetectCuisine(ev.Title); c != "" {
			cuisineScores[c] += w
		}
	}

	p := EmptyProfile(userID)
	p.PreferredIngredients = rankTop(ingredientScores, MaxIngredients)
	p.FavoriteProteins = rankTop(proteinScores, MaxProteins)
	p.CuisineAffinities = rankTop(cuisineScores, MaxCuisines)
	p.CookingPatterns = buildCookingPatterns(recipes, cooks)
	p.ComplexityPreference = complexityPreference(recipes)
	p.RecentFavorites = buildRecentFavorites(recipes, cooks, views, cookWeight, viewWeight, cookCount, viewCount)
	p.SeasonalPreferences = seasonalPreferences(recipes)
	p.RatingInsights = buildRatingInsights(ratings)
	p.DataQuality = DataQuality{
		CookbookSize:    len(recipes),
		RecentActivity:  len(cooks),
		ViewHistorySize: len(views),
		RatingsCount:    len(ratings),
		HasGoodData:     len(recipes) >= 3 || len(cooks) >= 5,
	}
	return p
}

// rankTop 依分數遞減排序並截斷，同分以名稱排序確保穩定
func rankTop(scores map[string]float64, limit int) []RankedItem {
	items := make([]RankedItem, 0, len(scores))
	for name, score := range scores {
		items = append(items, RankedItem{Name: name, Score: score})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// buildCookingPatterns 由近期烹飪紀錄推導頻率與型態
func buildCookingPatterns(recipes []meal.SavedRecipe, cooks []meal.CookEvent) CookingPatterns {
	recent := len(cooks)
	total := 0
	for _, r := range recipes {
		total += r.CookCount
	}
	if total < recent {
		total = recent
	}

	cp := CookingPatterns{
		RecentCookCount: recent,
		TotalCookCount:  total,
	}

	switch {
	case recent >= 12:
		cp.Frequency = FrequencyHigh
	case recent >= 4:
		cp.Frequency = FrequencyMedium
	case recent >= 1:
		cp.Frequency = FrequencyLow
	default:
		cp.Frequency = FrequencyUnknown
	}

	if recent < 4 {
		cp.Pattern = PatternInsufficientData
		return cp
	}

	weekend := 0
	for _, ev := range cooks {
		switch ev.CookedAt.Weekday() {
		case time.Saturday, time.Sunday:
			weekend++
		}
	}
	ratio := float64(weekend) / float64(recent)
	switch {
	case ratio >= 0.6:
		cp.Pattern = PatternWeekendWarrior
	case ratio <= 0.2:
		cp.Pattern = PatternWeekdayCook
	default:
		cp.Pattern = PatternBalanced
	}
	return cp
}

// RecipeComplexityScore 以食材數與步驟數估計單道食譜的複雜度（0–4）
func RecipeComplexityScore(r meal.SavedRecipe) float64 {
	score := 0.0
	switch {
	case len(r.Instructions) >= 10:
		score += 2
	case len(r.Instructions) >= 5:
		score += 1
	}
	switch {
	case len(r.Ingredients) >= 10:
		score += 2
	case len(r.Ingredients) >= 6:
		score += 1
	}
	return score
}

// ComplexityBucket 將複雜度分數分級
func ComplexityBucket(score float64) string {
	switch {
	case score < 1.5:
		return ComplexitySimple
	case score < 2.5:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// complexityPreference 取收藏食譜複雜度的平均後分級
func complexityPreference(recipes []meal.SavedRecipe) string {
	scored := 0
	sum := 0.0
	for _, r := range recipes {
		if r.IsStub() {
			continue
		}
		sum += RecipeComplexityScore(r)
		scored++
	}
	if scored == 0 {
		return ComplexityMedium
	}
	return ComplexityBucket(sum / float64(scored))
}

// buildRecentFavorites 取互動權重最高的食譜
func buildRecentFavorites(recipes []meal.SavedRecipe, cooks []meal.CookEvent, views []meal.ViewEvent, cookWeight, viewWeight map[string]float64, cookCount, viewCount map[string]int) []RecentFavorite {
	titles := map[string]string{}
	for _, r := range recipes {
		titles[r.ID] = r.Title
	}
	for _, ev := range cooks {
		if _, ok := titles[ev.RecipeID]; !ok && ev.Title != "" {
			titles[ev.RecipeID] = ev.Title
		}
	}
	for _, ev := range views {
		if _, ok := titles[ev.RecipeID]; !ok && ev.Title != "" {
			titles[ev.RecipeID] = ev.Title
		}
	}

	seen := map[string]bool{}
	favorites := []RecentFavorite{}
	for id := range titles {
		w := cookWeight[id] + viewWeight[id]
		if w <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		favorites = append(favorites, RecentFavorite{
			RecipeID:  id,
			Title:     titles[id],
			Weight:    w,
			ViewCount: viewCount[id],
			CookCount: cookCount[id],
		})
	}
	sort.Slice(favorites, func(i, j int) bool {
		if favorites[i].Weight != favorites[j].Weight {
			return favorites[i].Weight > favorites[j].Weight
		}
		return favorites[i].RecipeID < favorites[j].RecipeID
	})
	if len(favorites) > MaxFavorites {
		favorites = favorites[:MaxFavorites]
	}
	return favorites
}

// seasonalPreferences 統計收藏標題與食材的季節關鍵字命中次數
func seasonalPreferences(recipes []meal.SavedRecipe) map[string]int {
	counts := map[string]int{
		"spring": 0,
		"summer": 0,
		"autumn": 0,
		"winter": 0,
	}
	for _, r := range recipes {
		text := strings.ToLower(r.Title + " " + strings.Join(r.Ingredients, " "))
		for season, keywords := range seasonKeywords {
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					counts[season]++
				}
			}
		}
	}
	return counts
}

// buildRatingInsights 統計喜歡/不喜歡與互動程度
func buildRatingInsights(ratings []meal.RecipeRating) RatingInsights {
	insights := RatingInsights{RecentLikedTitles: []string{}}
	for _, r := range ratings {
		if r.Liked {
			insights.TotalLikes++
			if r.Title != "" && len(insights.RecentLikedTitles) < MaxLikedTitles {
				insights.RecentLikedTitles = append(insights.RecentLikedTitles, r.Title)
			}
		} else {
			insights.TotalDislikes++
		}
	}
	switch {
	case len(ratings) >= 20:
		insights.EngagementLevel = EngagementHigh
	case len(ratings) >= 5:
		insights.EngagementLevel = EngagementMedium
	default:
		insights.EngagementLevel = EngagementLow
	}
	return insights
}
