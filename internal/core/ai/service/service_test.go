package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-personalizer/internal/core/ai"
	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/infrastructure/config"
)

// fakeGenerator 回傳固定內容的假生成器
type fakeGenerator struct {
	content string
	err     error
	calls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*ai.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Response{Content: f.content, Model: "test-model"}, nil
}

func (f *fakeGenerator) GetModel() string { return "test-model" }
func (f *fakeGenerator) Close() error     { return nil }

func enabledConfig() *config.OpenRouterConfig {
	return &config.OpenRouterConfig{Enabled: true, Model: "test-model", MaxTokens: 1024}
}

func TestGenerateMeals(t *testing.T) {
	t.Run("parses json array", func(t *testing.T) {
		gen := &fakeGenerator{content: `[
			{"title": "Chicken Teriyaki", "cuisine": "japanese", "calories": 500},
			{"title": "Lentil Dal", "cuisine": "indian", "calories": 400}
		]`}
		svc := NewService(gen, nil, enabledConfig())

		meals, err := svc.GenerateMeals(context.Background(), "PREF|cuisines:japanese", meal.MealContext{}, 2)
		require.NoError(t, err)
		require.Len(t, meals, 2)
		assert.Equal(t, "Chicken Teriyaki", meals[0].Title)
		assert.Equal(t, "indian", meals[1].Cuisine)
	})

	t.Run("strips markdown code fences", func(t *testing.T) {
		gen := &fakeGenerator{content: "```json\n[{\"title\": \"Pad Thai\"}]\n```"}
		svc := NewService(gen, nil, enabledConfig())

		meals, err := svc.GenerateMeals(context.Background(), "", meal.MealContext{}, 1)
		require.NoError(t, err)
		require.Len(t, meals, 1)
		assert.Equal(t, "Pad Thai", meals[0].Title)
	})

	t.Run("accepts wrapped object", func(t *testing.T) {
		gen := &fakeGenerator{content: `{"meals": [{"title": "Greek Salad"}]}`}
		svc := NewService(gen, nil, enabledConfig())

		meals, err := svc.GenerateMeals(context.Background(), "", meal.MealContext{}, 1)
		require.NoError(t, err)
		require.Len(t, meals, 1)
		assert.Equal(t, "Greek Salad", meals[0].Title)
	})

	t.Run("truncates to requested count", func(t *testing.T) {
		gen := &fakeGenerator{content: `[{"title": "A"}, {"title": "B"}, {"title": "C"}]`}
		svc := NewService(gen, nil, enabledConfig())

		meals, err := svc.GenerateMeals(context.Background(), "", meal.MealContext{}, 2)
		require.NoError(t, err)
		assert.Len(t, meals, 2)
	})

	t.Run("zero count skips model call", func(t *testing.T) {
		gen := &fakeGenerator{content: `[]`}
		svc := NewService(gen, nil, enabledConfig())

		meals, err := svc.GenerateMeals(context.Background(), "", meal.MealContext{}, 0)
		require.NoError(t, err)
		assert.Empty(t, meals)
		assert.Equal(t, 0, gen.calls)
	})

	t.Run("invalid payload returns error", func(t *testing.T) {
		gen := &fakeGenerator{content: "not json at all"}
		svc := NewService(gen, nil, enabledConfig())

		_, err := svc.GenerateMeals(context.Background(), "", meal.MealContext{}, 1)
		require.Error(t, err)
	})

	t.Run("generator failure propagates", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("upstream down")}
		svc := NewService(gen, nil, enabledConfig())

		_, err := svc.GenerateMeals(context.Background(), "", meal.MealContext{}, 1)
		require.Error(t, err)
	})
}

func TestGenerateDisabled(t *testing.T) {
	svc := NewService(nil, nil, &config.OpenRouterConfig{Enabled: false})
	assert.False(t, svc.Enabled())

	_, err := svc.Generate(context.Background(), "prompt")
	require.Error(t, err)
}

func TestBuildMealPrompt(t *testing.T) {
	p := buildMealPrompt("PREF|cuisines:thai", meal.MealContext{
		MealType:           "dinner",
		TargetCalories:     600,
		MaxCookTimeMinutes: 45,
		Season:             "winter",
	}, 3)

	assert.Contains(t, p, "Generate 3 meal ideas")
	assert.Contains(t, p, "dinner")
	assert.Contains(t, p, "600")
	assert.Contains(t, p, "45 minutes")
	assert.Contains(t, p, "winter")
	assert.Contains(t, p, "PREF|cuisines:thai")
}
