package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/planner"
	"meal-plan-personalizer/internal/core/meal/prefcache"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/core/meal/prompt"
	"meal-plan-personalizer/internal/core/meal/selector"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	builder := profile.NewBuilder(st, prefCfg)
	cacheManager := prefcache.NewManager(st, builder, prefCfg)
	cacheManager.Start()
	t.Cleanup(cacheManager.Stop)

	plannerSvc := planner.NewService(
		cacheManager,
		selector.NewSelector(st, config.ScoringConfig{
			AffinityWeight: 0.4, ContextWeight: 0.25, RecencyWeight: 0.25, QualityWeight: 0.1,
		}, prefCfg),
		variety.NewScorer(config.VarietyConfig{
			ProteinWeight: 0.65, CuisineWeight: 0.45, IngredientWeight: 0.55, MethodWeight: 0.35, DecayLambda: 0.05,
		}),
		prompt.NewFormatter(config.PromptConfig{
			MaxTokens: 120, TokensPerWord: 0.75, MaxIngredients: 8, MaxCuisines: 5, MaxProteins: 4, MaxRecipes: 6,
		}),
		st,
	)

	// 生成端停用，只測個人化路徑
	handler := NewHandler(plannerSvc, nil, st)

	router := gin.New()
	router.POST("/api/v1/plan/personalize", handler.HandlePersonalize)
	router.POST("/api/v1/plan/generate", handler.HandleGenerate)
	router.POST("/api/v1/activity/event", handler.HandleActivityEvent)
	router.GET("/api/v1/profile/:user_id", handler.HandleGetProfile)
	return router, st
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlePersonalize(t *testing.T) {
	t.Run("returns personalization result", func(t *testing.T) {
		router, st := newTestRouter(t)
		r := meal.SavedRecipe{
			ID: "r1", UserID: "user-1", Title: "Chicken Teriyaki",
			Ingredients: []string{"chicken"}, Instructions: []string{"cook"},
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, st.Set(context.Background(), meal.CollectionSavedRecipes, r.ID, r, false))

		w := doJSON(t, router, http.MethodPost, "/api/v1/plan/personalize", meal.PlanRequest{
			UserID:         "user-1",
			TotalSlots:     2,
			SourcePriority: meal.SourceCookbookOnly,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var result planner.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.NotEmpty(t, result.Prompt)
		assert.Equal(t, 2, result.Distribution.CookbookCount+result.Distribution.AICount)
	})

	t.Run("rejects missing user_id", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doJSON(t, router, http.MethodPost, "/api/v1/plan/personalize", meal.PlanRequest{TotalSlots: 2})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		router, _ := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/plan/personalize", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGenerateWithoutAI(t *testing.T) {
	router, _ := newTestRouter(t)

	// 生成端停用時仍可回傳食譜庫部分
	w := doJSON(t, router, http.MethodPost, "/api/v1/plan/generate", meal.PlanRequest{
		UserID:         "user-1",
		TotalSlots:     3,
		SourcePriority: meal.SourceCookbookOnly,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.GeneratedMeals)
}

func TestHandleActivityEvent(t *testing.T) {
	t.Run("records cook event and invalidates", func(t *testing.T) {
		router, st := newTestRouter(t)
		w := doJSON(t, router, http.MethodPost, "/api/v1/activity/event", ActivityEventRequest{
			UserID:   "user-1",
			Event:    prefcache.EventRecipeCooked,
			RecipeID: "r1",
			Title:    "Chicken Teriyaki",
		})
		require.Equal(t, http.StatusOK, w.Code)

		docs, err := st.GetCollection(context.Background(), meal.CollectionCookLog, store.Query{})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("rejects unknown event", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doJSON(t, router, http.MethodPost, "/api/v1/activity/event", ActivityEventRequest{
			UserID: "user-1",
			Event:  "recipe_sneezed",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doJSON(t, router, http.MethodPost, "/api/v1/activity/event", map[string]string{"user_id": "user-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGetProfile(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/profile/user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var prof profile.PreferenceProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prof))
	assert.Equal(t, "user-1", prof.UserID)
}
