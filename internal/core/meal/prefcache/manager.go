package prefcache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/infrastructure/config"
	"meal-plan-personalizer/internal/infrastructure/store"
	"meal-plan-personalizer/internal/pkg/common"
)

// ProfileVersion 偏好檔計算邏輯版本，演算法調整時遞增使舊快取重算
const ProfileVersion = "2.0"

// 會使快取失效的活動事件
const (
	EventRecipeSaved       = "recipe_saved"
	EventRecipeCooked      = "recipe_cooked"
	EventRecipeViewed      = "recipe_viewed"
	EventRecipeRated       = "recipe_rated"
	EventMealPlanGenerated = "meal_plan_generated"
	EventCookbookUpdated   = "cookbook_updated"
)

var validEvents = map[string]bool{
	EventRecipeSaved:       true,
	EventRecipeCooked:      true,
	EventRecipeViewed:      true,
	EventRecipeRated:       true,
	EventMealPlanGenerated: true,
	EventCookbookUpdated:   true,
}

// CacheEntry 偏好檔快取文件
// 失效標記放在頂層，事件端只需合併寫入兩個欄位，不必讀出整份偏好檔
type CacheEntry struct {
	Profile        *profile.PreferenceProfile `json:"profile"`
	LastUpdated    time.Time                  `json:"last_updated"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	ProfileVersion string                     `json:"profile_version"`
	InvalidatedAt  *time.Time                 `json:"invalidated_at,omitempty"`
	InvalidatedBy  string                     `json:"invalidated_by,omitempty"`
}

// ProfileBuilder 偏好檔計算介面
type ProfileBuilder interface {
	Build(ctx context.Context, userID string) (*profile.PreferenceProfile, error)
}

// Manager 偏好檔快取管理器
// 讀取路徑永不回傳錯誤：任何失敗都退化為重算或空偏好檔
type Manager struct {
	store   store.DocumentStore
	builder ProfileBuilder
	cfg     config.PreferenceConfig
	refresh *refreshPool
	stopCh  chan struct{}
}

// NewManager 創建快取管理器
func NewManager(st store.DocumentStore, builder ProfileBuilder, cfg config.PreferenceConfig) *Manager {
	m := &Manager{
		store:   st,
		builder: builder,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	m.refresh = newRefreshPool(m, cfg.RefreshWorkers, cfg.RefreshQueueSize)
	return m
}

// Start 啟動背景更新工作者與過期清除輪詢
func (m *Manager) Start() {
	m.refresh.start()
	go m.sweepLoop()
}

// Stop 停止背景作業
func (m *Manager) Stop() {
	close(m.stopCh)
	m.refresh.stop()
}

// GetProfile 讀取偏好檔，必要時重算
// 快取命中且未過期直接回傳；過期、被事件標記失效或讀取時發現更新的
// 收藏／烹飪活動時同步重算；超過更新門檻但尚未過期時回傳舊值並排入背景更新
func (m *Manager) GetProfile(ctx context.Context, userID string) *profile.PreferenceProfile {
	doc, err := m.store.Get(ctx, meal.CollectionPreferenceCache, userID)
	if err != nil {
		if err != store.ErrNotFound {
			// 快取讀取失敗不阻擋請求，改走直接計算
			common.LogWarn("Preference cache read failed, building directly",
				zap.String("user_id", userID),
				zap.Error(err))
			return m.buildOnly(ctx, userID)
		}
		common.LogCacheMiss("preference", userID)
		return m.rebuild(ctx, userID)
	}

	var entry CacheEntry
	if err := doc.Decode(&entry); err != nil || entry.Profile == nil {
		return m.rebuild(ctx, userID)
	}

	now := time.Now()
	age := now.Sub(entry.LastUpdated)

	switch {
	case entry.InvalidatedAt != nil:
		common.LogInfo("Preference cache invalidated, rebuilding",
			zap.String("user_id", userID),
			zap.String("event", entry.InvalidatedBy))
		return m.rebuild(ctx, userID)
	case entry.ProfileVersion != ProfileVersion:
		return m.rebuild(ctx, userID)
	case age >= m.cfg.TTL:
		common.LogInfo("Preference cache expired, rebuilding",
			zap.String("user_id", userID),
			zap.Duration("age", age))
		return m.rebuild(ctx, userID)
	}

	// 快取時間之後出現新的收藏或烹飪活動，視同失效，同步重算
	if m.hasNewerActivity(ctx, userID, entry.LastUpdated) {
		common.LogInfo("Newer activity than cached profile, rebuilding",
			zap.String("user_id", userID))
		return m.rebuild(ctx, userID)
	}

	// 未過期但超過更新門檻：回傳舊值並排程背景更新
	if age >= m.cfg.RefreshAfter {
		m.refresh.enqueue(userID)
	}

	common.LogCacheHit("preference", userID)
	return entry.Profile
}

// Invalidate 以活動事件標記快取失效，下次讀取時重算
// 只合併寫入標記欄位，避免覆寫既有偏好檔
func (m *Manager) Invalidate(ctx context.Context, userID, event string) error {
	if !validEvents[event] {
		return common.ErrUnknownEvent
	}
	now := time.Now().UTC()
	marker := map[string]interface{}{
		"invalidated_at": now,
		"invalidated_by": event,
	}
	if err := m.store.Set(ctx, meal.CollectionPreferenceCache, userID, marker, true); err != nil {
		common.LogError("Failed to invalidate preference cache",
			zap.String("user_id", userID),
			zap.String("event", event),
			zap.Error(err))
		return err
	}
	common.LogInfo("Preference cache invalidated",
		zap.String("user_id", userID),
		zap.String("event", event))
	return nil
}

// Sweep 刪除超過清除門檻的快取項目，回傳刪除數
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-m.cfg.SweepAfter)
	docs, err := m.store.GetCollection(ctx, meal.CollectionPreferenceCache, store.Query{
		Where: []store.Where{
			{Field: "last_updated", Op: store.OpLessEqual, Value: cutoff},
		},
	})
	if err != nil {
		common.LogWarn("Preference cache sweep query failed", zap.Error(err))
		return 0
	}

	removed := 0
	for _, doc := range docs {
		if err := m.store.Delete(ctx, meal.CollectionPreferenceCache, doc.ID); err != nil {
			common.LogWarn("Failed to delete expired cache entry",
				zap.String("user_id", doc.ID),
				zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		common.LogInfo("Preference cache sweep completed",
			zap.Int("removed", removed))
	}
	return removed
}

// rebuild 同步重算並寫回快取
func (m *Manager) rebuild(ctx context.Context, userID string) *profile.PreferenceProfile {
	p := m.buildOnly(ctx, userID)

	entry := CacheEntry{
		Profile:        p,
		LastUpdated:    time.Now().UTC(),
		GeneratedAt:    p.GeneratedAt,
		ProfileVersion: ProfileVersion,
	}
	// 整份覆寫，同時清除失效標記
	if err := m.store.Set(ctx, meal.CollectionPreferenceCache, userID, entry, false); err != nil {
		common.LogWarn("Failed to write preference cache",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return p
}

// buildOnly 只計算不寫快取，計算失敗時回傳規範空偏好檔
func (m *Manager) buildOnly(ctx context.Context, userID string) *profile.PreferenceProfile {
	p, err := m.builder.Build(ctx, userID)
	if err != nil || p == nil {
		common.LogError("Profile build failed, returning empty profile",
			zap.String("user_id", userID),
			zap.Error(err))
		return profile.EmptyProfile(userID)
	}
	return p
}

// hasNewerActivity 檢查快取時間之後是否有新的收藏或烹飪活動
func (m *Manager) hasNewerActivity(ctx context.Context, userID string, since time.Time) bool {
	for _, collection := range []string{meal.CollectionSavedRecipes, meal.CollectionCookLog} {
		field := "created_at"
		if collection == meal.CollectionCookLog {
			field = "cooked_at"
		}
		docs, err := m.store.GetCollection(ctx, collection, store.Query{
			Where: []store.Where{
				{Field: "user_id", Op: store.OpEqual, Value: userID},
				{Field: field, Op: store.OpGreater, Value: since},
			},
			Limit: 1,
		})
		if err == nil && len(docs) > 0 {
			return true
		}
	}
	return false
}

// sweepLoop 定期清除過期快取
func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			m.Sweep(ctx)
			cancel()
		case <-m.stopCh:
			return
		}
	}
}
