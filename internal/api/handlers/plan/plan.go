package plan

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meal-plan-personalizer/internal/core/ai"
	aiservice "meal-plan-personalizer/internal/core/ai/service"
	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/planner"
	"meal-plan-personalizer/internal/core/meal/prefcache"
	"meal-plan-personalizer/internal/core/meal/variety"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"
)

// 生成餐點的多樣性門檻，低於此分數的候選直接捨棄
const minCandidateVariety = 3.0

// Handler 餐點計畫處理器
type Handler struct {
	planner *planner.Service
	ai      *aiservice.Service
	store   store.DocumentStore
}

// NewHandler 創建處理器
func NewHandler(plannerSvc *planner.Service, aiSvc *aiservice.Service, st store.DocumentStore) *Handler {
	return &Handler{
		planner: plannerSvc,
		ai:      aiSvc,
		store:   st,
	}
}

// GeneratedCandidate 生成餐點與其多樣性分數
type GeneratedCandidate struct {
	Meal         ai.GeneratedMeal `json:"meal"`
	VarietyScore float64          `json:"variety_score"`
}

// GenerateResponse 計畫生成響應
type GenerateResponse struct {
	CookbookMeals  []meal.ScoredRecipe  `json:"cookbook_meals"`
	GeneratedMeals []GeneratedCandidate `json:"generated_meals"`
	Guidance       meal.VarietyGuidance `json:"guidance"`
	Distribution   meal.Distribution    `json:"distribution"`
	Prompt         string               `json:"prompt"`
}

// ActivityEventRequest 活動事件請求
type ActivityEventRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Event    string `json:"event" binding:"required"`
	RecipeID string `json:"recipe_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Liked    *bool  `json:"liked,omitempty"`
}

// HandlePersonalize 執行個人化管線，回傳偏好摘要與挑選結果
func (h *Handler) HandlePersonalize(c *gin.Context) {
	var req meal.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	result, err := h.planner.Personalize(c.Request.Context(), req)
	if err != nil {
		if common.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"code":  common.ErrCodeInvalidRequest,
			})
			return
		}
		common.LogError("Personalization failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Personalization failed",
			"code":  common.ErrCodeInternalError,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleGenerate 產生完整餐點計畫：食譜庫挑選加上模型生成
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req meal.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	result, err := h.planner.Personalize(c.Request.Context(), req)
	if err != nil {
		if common.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"code":  common.ErrCodeInvalidRequest,
			})
			return
		}
		common.LogError("Personalization failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Personalization failed",
			"code":  common.ErrCodeInternalError,
		})
		return
	}

	generated := []GeneratedCandidate{}
	if result.Distribution.AICount > 0 && h.ai != nil && h.ai.Enabled() {
		meals, err := h.ai.GenerateMeals(c.Request.Context(), result.Prompt, req.Meal, result.Distribution.AICount)
		if err != nil {
			common.LogError("Meal generation failed",
				zap.String("user_id", req.UserID),
				zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Meal generation failed",
				"code":  common.ErrCodeServiceUnavailable,
			})
			return
		}
		generated = h.filterCandidates(meals, req, result)
	}

	// 生成新計畫代表偏好可能改變，標記快取待更新
	if err := h.planner.InvalidateProfile(c.Request.Context(), req.UserID, prefcache.EventMealPlanGenerated); err != nil {
		common.LogWarn("Failed to invalidate profile after plan generation",
			zap.String("user_id", req.UserID),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, GenerateResponse{
		CookbookMeals:  result.Recipes,
		GeneratedMeals: generated,
		Guidance:       result.Guidance,
		Distribution:   result.Distribution,
		Prompt:         result.Prompt,
	})
}

// filterCandidates 過濾與近期餐點重複或被排除的生成候選
func (h *Handler) filterCandidates(meals []ai.GeneratedMeal, req meal.PlanRequest, result *planner.Result) []GeneratedCandidate {
	excluded := make(map[string]bool, len(result.Guidance.ExplicitExclusions))
	for _, title := range result.Guidance.ExplicitExclusions {
		excluded[variety.NormalizeTitle(title)] = true
	}

	candidates := make([]GeneratedCandidate, 0, len(meals))
	for _, m := range meals {
		if excluded[variety.NormalizeTitle(m.Title)] {
			common.LogDebug("Dropping excluded candidate",
				zap.String("title", m.Title))
			continue
		}
		score := h.planner.EvaluateCandidate(m.Title, req, len(result.Recipes))
		if score < minCandidateVariety {
			common.LogDebug("Dropping low variety candidate",
				zap.String("title", m.Title),
				zap.Float64("variety_score", score))
			continue
		}
		candidates = append(candidates, GeneratedCandidate{
			Meal:         m,
			VarietyScore: score,
		})
	}
	return candidates
}

// HandleActivityEvent 記錄使用者活動並標記偏好檔快取失效
func (h *Handler) HandleActivityEvent(c *gin.Context) {
	var req ActivityEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()

	// 烹飪、瀏覽與評價事件同時寫入對應的活動集合
	switch req.Event {
	case prefcache.EventRecipeCooked:
		_, err := h.store.Add(ctx, meal.CollectionCookLog, meal.CookEvent{
			UserID:   req.UserID,
			RecipeID: req.RecipeID,
			Title:    req.Title,
			CookedAt: now,
		})
		if err != nil {
			common.LogWarn("Failed to record cook event",
				zap.String("user_id", req.UserID),
				zap.Error(err))
		}
	case prefcache.EventRecipeViewed:
		_, err := h.store.Add(ctx, meal.CollectionViewHistory, meal.ViewEvent{
			UserID:   req.UserID,
			RecipeID: req.RecipeID,
			Title:    req.Title,
			ViewedAt: now,
		})
		if err != nil {
			common.LogWarn("Failed to record view event",
				zap.String("user_id", req.UserID),
				zap.Error(err))
		}
	case prefcache.EventRecipeRated:
		liked := req.Liked != nil && *req.Liked
		_, err := h.store.Add(ctx, meal.CollectionRecipeRatings, meal.RecipeRating{
			UserID:   req.UserID,
			RecipeID: req.RecipeID,
			Title:    req.Title,
			Liked:    liked,
			RatedAt:  now,
		})
		if err != nil {
			common.LogWarn("Failed to record rating event",
				zap.String("user_id", req.UserID),
				zap.Error(err))
		}
	}

	if err := h.planner.InvalidateProfile(ctx, req.UserID, req.Event); err != nil {
		if customErr, ok := err.(*common.CustomError); ok {
			c.JSON(customErr.Status, gin.H{
				"error": customErr.Message,
				"code":  customErr.Code,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process activity event",
			"code":  common.ErrCodeInternalError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "accepted",
		"event":  req.Event,
	})
}

// HandleGetProfile 讀取使用者偏好檔，必要時重算
func (h *Handler) HandleGetProfile(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	prof := h.planner.GetProfile(c.Request.Context(), userID)
	c.JSON(http.StatusOK, prof)
}
