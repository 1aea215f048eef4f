package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/prefcache"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/core/meal/prompt"
	"meal-plan-personalizer/internal/core/meal/selector"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()

	prefCfg := config.PreferenceConfig{
		TTL:              24 * time.Hour,
		RefreshAfter:     18 * time.Hour,
		SweepAfter:       48 * time.Hour,
		SweepInterval:    time.Hour,
		CookLookbackDays: 30,
		CookbookLimit:    100,
		CookLogLimit:     50,
		ViewLimit:        50,
		RatingLimit:      100,
		RefreshWorkers:   1,
		RefreshQueueSize: 8,
	}
	varietyCfg := config.VarietyConfig{
		ProteinWeight:    0.65,
		CuisineWeight:    0.45,
		IngredientWeight: 0.55,
		MethodWeight:     0.35,
		DecayLambda:      0.05,
	}
	scoringCfg := config.ScoringConfig{
		AffinityWeight: 0.4,
		ContextWeight:  0.25,
		RecencyWeight:  0.25,
		QualityWeight:  0.1,
	}
	promptCfg := config.PromptConfig{
		MaxTokens:      120,
		TokensPerWord:  0.75,
		MaxIngredients: 8,
		MaxCuisines:    5,
		MaxProteins:    4,
		MaxRecipes:     6,
	}

	builder := profile.NewBuilder(st, prefCfg)
	cache := prefcache.NewManager(st, builder, prefCfg)
	cache.Start()
	t.Cleanup(cache.Stop)

	svc := NewService(
		cache,
		selector.NewSelector(st, scoringCfg, prefCfg),
		variety.NewScorer(varietyCfg),
		prompt.NewFormatter(promptCfg),
		st,
	)
	return svc, st
}

func seedCookbook(t *testing.T, st *store.MemoryStore, userID string, n int) {
	t.Helper()
	titles := []string{
		"Chicken Teriyaki", "Beef Tacos", "Mushroom Risotto",
		"Pad Thai", "Lentil Dal", "Salmon Bowl", "Pork Dumpling", "Greek Salad",
	}
	for i := 0; i < n; i++ {
		r := meal.SavedRecipe{
			ID:           fmt.Sprintf("r%d", i),
			UserID:       userID,
			Title:        titles[i%len(titles)],
			Ingredients:  []string{"salt", "pepper"},
			Instructions: []string{"cook"},
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, st.Set(context.Background(), meal.CollectionSavedRecipes, r.ID, r, false))
	}
}

func TestPersonalizeValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Personalize(ctx, meal.PlanRequest{TotalSlots: 3})
	require.Error(t, err)
	assert.True(t, common.IsValidationError(err))

	_, err = svc.Personalize(ctx, meal.PlanRequest{UserID: "user-1"})
	require.Error(t, err)
	assert.True(t, common.IsValidationError(err))
}

func TestPersonalizePipeline(t *testing.T) {
	t.Run("cookbook only uses all slots from cookbook", func(t *testing.T) {
		svc, st := newTestService(t)
		seedCookbook(t, st, "user-1", 6)

		result, err := svc.Personalize(context.Background(), meal.PlanRequest{
			UserID:         "user-1",
			TotalSlots:     4,
			SourcePriority: meal.SourceCookbookOnly,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, result.Distribution.CookbookCount)
		assert.Equal(t, 0, result.Distribution.AICount)
		assert.Len(t, result.Recipes, 4)
		assert.NotEmpty(t, result.Prompt)
	})

	t.Run("empty cookbook shifts slots to generation", func(t *testing.T) {
		svc, _ := newTestService(t)

		result, err := svc.Personalize(context.Background(), meal.PlanRequest{
			UserID:         "user-2",
			TotalSlots:     4,
			SourcePriority: meal.SourceBalancedMix,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Distribution.CookbookCount)
		assert.Equal(t, 4, result.Distribution.AICount)
		assert.Empty(t, result.Recipes)
	})

	t.Run("distribution sum preserved", func(t *testing.T) {
		svc, st := newTestService(t)
		seedCookbook(t, st, "user-3", 2)

		result, err := svc.Personalize(context.Background(), meal.PlanRequest{
			UserID:         "user-3",
			TotalSlots:     6,
			SourcePriority: meal.SourceBalancedMix,
		})
		require.NoError(t, err)
		assert.Equal(t, 6, result.Distribution.CookbookCount+result.Distribution.AICount)
	})

	t.Run("recent meals surface as exclusions", func(t *testing.T) {
		svc, st := newTestService(t)
		seedCookbook(t, st, "user-4", 3)

		result, err := svc.Personalize(context.Background(), meal.PlanRequest{
			UserID:      "user-4",
			TotalSlots:  3,
			RecentMeals: []string{"Chicken Teriyaki", "Beef Tacos"},
		})
		require.NoError(t, err)
		assert.Contains(t, result.Guidance.ExplicitExclusions, "Chicken Teriyaki")
		assert.Contains(t, result.Guidance.ExplicitExclusions, "Beef Tacos")
	})

	t.Run("cook log fills variety window when request omits recent meals", func(t *testing.T) {
		svc, st := newTestService(t)
		seedCookbook(t, st, "user-6", 3)
		_, err := st.Add(context.Background(), meal.CollectionCookLog, meal.CookEvent{
			UserID:   "user-6",
			RecipeID: "r0",
			Title:    "Chicken Teriyaki",
			CookedAt: time.Now().UTC().Add(-24 * time.Hour),
		})
		require.NoError(t, err)

		result, err := svc.Personalize(context.Background(), meal.PlanRequest{
			UserID:     "user-6",
			TotalSlots: 3,
		})
		require.NoError(t, err)
		assert.Contains(t, result.Guidance.ExplicitExclusions, "Chicken Teriyaki")
	})

	t.Run("prompt stays within token budget", func(t *testing.T) {
		svc, st := newTestService(t)
		seedCookbook(t, st, "user-5", 8)

		result, err := svc.Personalize(context.Background(), meal.PlanRequest{
			UserID:     "user-5",
			TotalSlots: 5,
			RecentMeals: []string{
				"Chicken Teriyaki", "Beef Tacos", "Pad Thai",
				"Mushroom Risotto", "Lentil Dal",
			},
		})
		require.NoError(t, err)
		f := prompt.NewFormatter(config.PromptConfig{MaxTokens: 120, TokensPerWord: 0.75})
		assert.LessOrEqual(t, f.EstimateTokenCount(result.Prompt), 120)
	})
}

func TestEvaluateCandidate(t *testing.T) {
	svc, _ := newTestService(t)

	req := meal.PlanRequest{
		UserID:      "user-1",
		TotalSlots:  5,
		RecentMeals: []string{"Chicken Teriyaki"},
	}

	dup := svc.EvaluateCandidate("Chicken Teriyaki", req, 10)
	fresh := svc.EvaluateCandidate("Lentil Dal", req, 10)
	assert.Greater(t, fresh, dup)

	// 小食譜庫且只用食譜庫時套用回退計分
	req.SourcePriority = meal.SourceCookbookOnly
	fallback := svc.EvaluateCandidate("Chicken Teriyaki", req, 2)
	assert.GreaterOrEqual(t, fallback, 1.0)
}

func TestInvalidateProfileRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InvalidateProfile(ctx, "user-1", prefcache.EventRecipeCooked))
	assert.Error(t, svc.InvalidateProfile(ctx, "user-1", "not_an_event"))

	prof := svc.GetProfile(ctx, "user-1")
	require.NotNil(t, prof)
	assert.Equal(t, "user-1", prof.UserID)
}
