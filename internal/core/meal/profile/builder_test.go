package profile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
)

func testPreferenceConfig() config.PreferenceConfig {
	return config.PreferenceConfig{
		TTL:              24 * time.Hour,
		RefreshAfter:     18 * time.Hour,
		SweepAfter:       48 * time.Hour,
		SweepInterval:    time.Hour,
		CookLookbackDays: 30,
		CookbookLimit:    100,
		CookLogLimit:     50,
		ViewLimit:        50,
		RatingLimit:      100,
		RefreshWorkers:   2,
		RefreshQueueSize: 32,
	}
}

func seedRecipe(t *testing.T, st store.DocumentStore, r meal.SavedRecipe) {
	t.Helper()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, st.Set(context.Background(), meal.CollectionSavedRecipes, r.ID, r, false))
}

func seedCook(t *testing.T, st store.DocumentStore, ev meal.CookEvent) {
	t.Helper()
	_, err := st.Add(context.Background(), meal.CollectionCookLog, ev)
	require.NoError(t, err)
}

func TestBuildFallback(t *testing.T) {
	st := store.NewMemoryStore()
	b := NewBuilder(st, testPreferenceConfig())

	p, err := b.Build(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.DataQuality.HasGoodData)
	require.NotEmpty(t, p.FavoriteProteins)
	assert.Equal(t, "chicken", p.FavoriteProteins[0].Name)
	require.NotEmpty(t, p.CuisineAffinities)
	assert.Equal(t, "italian", p.CuisineAffinities[0].Name)
	assert.Equal(t, ComplexityMedium, p.ComplexityPreference)
}

func TestBuildDataQuality(t *testing.T) {
	t.Run("three saved recipes is good data", func(t *testing.T) {
		st := store.NewMemoryStore()
		for i := 0; i < 3; i++ {
			seedRecipe(t, st, meal.SavedRecipe{
				ID:           fmt.Sprintf("r%d", i),
				UserID:       "user-1",
				Title:        fmt.Sprintf("Chicken Dish %d", i),
				Ingredients:  []string{"chicken", "garlic"},
				Instructions: []string{"cook it"},
			})
		}
		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, p.DataQuality.HasGoodData)
		assert.Equal(t, 3, p.DataQuality.CookbookSize)
	})

	t.Run("five cook events is good data", func(t *testing.T) {
		st := store.NewMemoryStore()
		for i := 0; i < 5; i++ {
			seedCook(t, st, meal.CookEvent{
				UserID:   "user-1",
				RecipeID: fmt.Sprintf("r%d", i),
				Title:    "Chicken Teriyaki",
				CookedAt: time.Now().UTC().Add(-time.Duration(i) * 24 * time.Hour),
			})
		}
		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, p.DataQuality.HasGoodData)
		assert.Equal(t, 5, p.DataQuality.RecentActivity)
	})

	t.Run("sparse data is not good data", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRecipe(t, st, meal.SavedRecipe{
			ID:           "r1",
			UserID:       "user-1",
			Title:        "Chicken Dish",
			Ingredients:  []string{"chicken"},
			Instructions: []string{"cook"},
		})
		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, p.DataQuality.HasGoodData)
	})
}

func TestBuildRankings(t *testing.T) {
	t.Run("cooked recipes outrank saved only", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRecipe(t, st, meal.SavedRecipe{
			ID: "beef", UserID: "user-1", Title: "Beef Stew",
			Ingredients: []string{"beef"}, Instructions: []string{"stew"},
		})
		seedRecipe(t, st, meal.SavedRecipe{
			ID: "salmon", UserID: "user-1", Title: "Salmon Bowl",
			Ingredients: []string{"salmon"}, Instructions: []string{"bake"},
		})
		// 烹飪過的鮭魚應排在只收藏的牛肉前
		seedCook(t, st, meal.CookEvent{
			UserID: "user-1", RecipeID: "salmon", Title: "Salmon Bowl",
			CookedAt: time.Now().UTC().Add(-24 * time.Hour),
		})

		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(p.FavoriteProteins), 2)
		assert.Equal(t, "salmon", p.FavoriteProteins[0].Name)
		assert.Greater(t, p.FavoriteProteins[0].Score, p.FavoriteProteins[1].Score)
	})

	t.Run("ingredient list respects cap", func(t *testing.T) {
		st := store.NewMemoryStore()
		ingredients := make([]string, 0, 20)
		for i := 0; i < 20; i++ {
			ingredients = append(ingredients, fmt.Sprintf("ingredient-%02d", i))
		}
		seedRecipe(t, st, meal.SavedRecipe{
			ID: "big", UserID: "user-1", Title: "Everything Pot",
			Ingredients: ingredients, Instructions: []string{"combine"},
		})

		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(p.PreferredIngredients), MaxIngredients)
	})

	t.Run("other users excluded", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRecipe(t, st, meal.SavedRecipe{
			ID: "mine", UserID: "user-1", Title: "Chicken Dish",
			Ingredients: []string{"chicken"}, Instructions: []string{"cook"},
		})
		seedRecipe(t, st, meal.SavedRecipe{
			ID: "theirs", UserID: "user-2", Title: "Beef Dish",
			Ingredients: []string{"beef"}, Instructions: []string{"cook"},
		})

		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		for _, item := range p.FavoriteProteins {
			assert.NotEqual(t, "beef", item.Name)
		}
	})
}

func TestBuildCookingPatterns(t *testing.T) {
	t.Run("weekday cook pattern", func(t *testing.T) {
		st := store.NewMemoryStore()
		// 找最近的週三往回推，確保全部落在平日
		day := time.Now().UTC()
		for day.Weekday() != time.Wednesday {
			day = day.Add(-24 * time.Hour)
		}
		for i := 0; i < 4; i++ {
			seedCook(t, st, meal.CookEvent{
				UserID:   "user-1",
				RecipeID: fmt.Sprintf("r%d", i),
				Title:    "Chicken Teriyaki",
				CookedAt: day.Add(-time.Duration(i) * 7 * 24 * time.Hour),
			})
		}

		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, FrequencyMedium, p.CookingPatterns.Frequency)
		assert.Equal(t, PatternWeekdayCook, p.CookingPatterns.Pattern)
	})

	t.Run("few cooks is insufficient data", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedCook(t, st, meal.CookEvent{
			UserID: "user-1", RecipeID: "r1", Title: "Chicken Teriyaki",
			CookedAt: time.Now().UTC().Add(-24 * time.Hour),
		})

		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, FrequencyLow, p.CookingPatterns.Frequency)
		assert.Equal(t, PatternInsufficientData, p.CookingPatterns.Pattern)
	})

	t.Run("old cook events outside lookback excluded", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedCook(t, st, meal.CookEvent{
			UserID: "user-1", RecipeID: "r1", Title: "Chicken Teriyaki",
			CookedAt: time.Now().UTC().Add(-40 * 24 * time.Hour),
		})
		seedRecipe(t, st, meal.SavedRecipe{
			ID: "r1", UserID: "user-1", Title: "Chicken Teriyaki",
			Ingredients: []string{"chicken"}, Instructions: []string{"cook"},
		})

		b := NewBuilder(st, testPreferenceConfig())
		p, err := b.Build(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, p.CookingPatterns.RecentCookCount)
	})
}

func TestBuildComplexityPreference(t *testing.T) {
	st := store.NewMemoryStore()
	longList := func(prefix string, n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("%s-%d", prefix, i)
		}
		return out
	}
	seedRecipe(t, st, meal.SavedRecipe{
		ID: "complex", UserID: "user-1", Title: "Elaborate Feast",
		Ingredients:  longList("ingredient", 12),
		Instructions: longList("step", 12),
	})

	b := NewBuilder(st, testPreferenceConfig())
	p, err := b.Build(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, ComplexityHigh, p.ComplexityPreference)
}

func TestBuildRatingInsights(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		rating := meal.RecipeRating{
			UserID:   "user-1",
			RecipeID: fmt.Sprintf("r%d", i),
			Title:    fmt.Sprintf("Dish %d", i),
			Liked:    i%2 == 0,
			RatedAt:  time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		}
		_, err := st.Add(ctx, meal.CollectionRecipeRatings, rating)
		require.NoError(t, err)
	}

	b := NewBuilder(st, testPreferenceConfig())
	p, err := b.Build(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.RatingInsights.TotalLikes)
	assert.Equal(t, 3, p.RatingInsights.TotalDislikes)
	assert.Equal(t, EngagementMedium, p.RatingInsights.EngagementLevel)
	assert.LessOrEqual(t, len(p.RatingInsights.RecentLikedTitles), MaxLikedTitles)
}
