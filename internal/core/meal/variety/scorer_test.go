package variety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/infrastructure/config"
)

func testVarietyConfig() config.VarietyConfig {
	return config.VarietyConfig{
		ProteinWeight:     0.65,
		CuisineWeight:     0.45,
		IngredientWeight:  0.55,
		MethodWeight:      0.35,
		DecayLambda:       0.05,
		RecentWindowWeeks: 4,
	}
}

func TestSimilarity(t *testing.T) {
	s := NewScorer(testVarietyConfig())

	t.Run("identical titles score 1.0", func(t *testing.T) {
		assert.Equal(t, 1.0, s.Similarity("Chicken Teriyaki", "Chicken Teriyaki"))
	})

	t.Run("normalized match ignores punctuation and case", func(t *testing.T) {
		assert.Equal(t, 1.0, s.Similarity("Stir-Fried Chicken!", "stir fried chicken"))
	})

	t.Run("empty input scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Similarity("", "Chicken Teriyaki"))
		assert.Equal(t, 0.0, s.Similarity("Chicken Teriyaki", ""))
	})

	t.Run("symmetric", func(t *testing.T) {
		a, b := "Grilled Chicken Salad", "Chicken Stir Fry"
		assert.Equal(t, s.Similarity(a, b), s.Similarity(b, a))
	})

	t.Run("shared protein only", func(t *testing.T) {
		sim := s.Similarity("Chicken Parmesan", "Chicken Tikka Masala")
		// 同蛋白質 0.65，菜系不同
		assert.InDelta(t, 0.65, sim, 0.001)
	})

	t.Run("no shared signals score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Similarity("Beef Tacos", "Salmon Teriyaki"))
	})

	t.Run("capped at 1.0", func(t *testing.T) {
		// 蛋白質 + 菜系 + 食材 + 方式 可能超過 1，需封頂
		sim := s.Similarity(
			"Japanese Teriyaki Chicken Rice Grill",
			"Japanese Grilled Chicken with Rice Teriyaki",
		)
		assert.LessOrEqual(t, sim, 1.0)
	})

	t.Run("missing signal is not a match", func(t *testing.T) {
		// 兩邊都偵測不到蛋白質時不得視為相同
		sim := s.Similarity("Vegetable Medley", "Garden Platter")
		assert.Equal(t, 0.0, sim)
	})
}

func TestVarietyScore(t *testing.T) {
	s := NewScorer(testVarietyConfig())

	t.Run("no history returns ceiling", func(t *testing.T) {
		assert.Equal(t, 10.0, s.VarietyScore("Chicken Teriyaki", nil, nil))
		assert.Equal(t, 10.0, s.VarietyScore("Chicken Teriyaki", []string{}, nil))
	})

	t.Run("exact duplicate of recent meal scores below 2", func(t *testing.T) {
		score := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki"}, nil)
		assert.Less(t, score, 2.0)
	})

	t.Run("score floors at zero", func(t *testing.T) {
		score := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki", "chicken teriyaki"}, nil)
		assert.GreaterOrEqual(t, score, 0.0)
	})

	t.Run("older conflicts penalized less", func(t *testing.T) {
		// 部分相似（同蛋白質）才觀察得到衰減；完全重複兩種排序都壓到下限
		recent := []string{"Chicken Curry", "Beef Tacos", "Salmon Salad"}
		older := []string{"Beef Tacos", "Salmon Salad", "Chicken Curry"}
		scoreRecent := s.VarietyScore("Chicken Teriyaki", recent, nil)
		scoreOlder := s.VarietyScore("Chicken Teriyaki", older, nil)
		assert.Greater(t, scoreOlder, scoreRecent)
	})

	t.Run("same inputs produce identical score", func(t *testing.T) {
		recent := []string{"Chicken Curry", "Beef Tacos", "Salmon Salad"}
		first := s.VarietyScore("Chicken Teriyaki", recent, nil)
		second := s.VarietyScore("Chicken Teriyaki", recent, nil)
		assert.Equal(t, first, second)
	})

	t.Run("unrelated candidate keeps high score", func(t *testing.T) {
		score := s.VarietyScore("Lentil Dal", []string{"Chicken Teriyaki", "Beef Tacos"}, nil)
		assert.GreaterOrEqual(t, score, 8.0)
	})

	t.Run("worst conflict dominates", func(t *testing.T) {
		// 加入更多不相關餐點不應提高分數
		base := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki"}, nil)
		padded := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki", "Lentil Dal", "Mushroom Risotto"}, nil)
		assert.InDelta(t, base, padded, 0.001)
	})
}

func TestVarietyScoreLimitedCookbook(t *testing.T) {
	s := NewScorer(testVarietyConfig())

	limited := &ScoreContext{
		SourcePriority:           meal.SourceCookbookOnly,
		AvailableCookbookRecipes: 2,
		MealSlotsNeeded:          5,
	}

	t.Run("fallback keeps exact repeats selectable", func(t *testing.T) {
		score := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki"}, limited)
		require.GreaterOrEqual(t, score, 1.0)
	})

	t.Run("fallback scores above normal scoring", func(t *testing.T) {
		recent := []string{"Chicken Teriyaki", "Beef Tacos"}
		normal := s.VarietyScore("Chicken Teriyaki", recent, nil)
		fallback := s.VarietyScore("Chicken Teriyaki", recent, limited)
		assert.Greater(t, fallback, normal)
	})

	t.Run("elapsed meals bonus applies from three recent meals", func(t *testing.T) {
		// 部分相似（同蛋白質）避免兩者都落在下限
		short := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Curry", "Beef Tacos"}, limited)
		long := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Curry", "Beef Tacos", "Salmon Salad"}, limited)
		assert.Greater(t, long, short)
	})

	t.Run("fallback capped at ceiling", func(t *testing.T) {
		score := s.VarietyScore("Lentil Dal", []string{"Chicken Teriyaki", "Beef Tacos", "Salmon Salad"}, limited)
		assert.LessOrEqual(t, score, 10.0)
	})

	t.Run("sufficient cookbook does not trigger fallback", func(t *testing.T) {
		ample := &ScoreContext{
			SourcePriority:           meal.SourceCookbookOnly,
			AvailableCookbookRecipes: 20,
			MealSlotsNeeded:          5,
		}
		normal := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki"}, nil)
		withCtx := s.VarietyScore("Chicken Teriyaki", []string{"Chicken Teriyaki"}, ample)
		assert.Equal(t, normal, withCtx)
	})
}

func TestDetectors(t *testing.T) {
	t.Run("protein detection", func(t *testing.T) {
		assert.Equal(t, "chicken", DetectProtein("Grilled Chicken Salad"))
		assert.Equal(t, "", DetectProtein("Vegetable Medley"))
	})

	t.Run("cuisine detection", func(t *testing.T) {
		assert.Equal(t, "italian", DetectCuisine("Mushroom Risotto"))
		assert.Equal(t, "thai", DetectCuisine("Pad Thai with Shrimp"))
		assert.Equal(t, "", DetectCuisine("Plain Omelette"))
	})

	t.Run("method detection prefers stir fry over fry", func(t *testing.T) {
		assert.Equal(t, "stir fry", DetectMethod("Stir-Fried Beef"))
		assert.Equal(t, "fry", DetectMethod("Fried Rice... just fried"))
	})

	t.Run("normalize title", func(t *testing.T) {
		assert.Equal(t, "chicken teriyaki bowl", NormalizeTitle("  Chicken-Teriyaki   Bowl! "))
	})
}
