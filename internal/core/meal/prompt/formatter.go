package prompt

import (
	"fmt"
	"math"
	"strings"

	"meal-plan-personalizer/internal/core/meal"
	"meal-plan-personalizer/internal/core/meal/profile"
	"meal-plan-personalizer/internal/infrastructure/config"
)

// fallbackSummary 任何輸入都無法產生摘要時的固定提示詞
const fallbackSummary = "PREF|complexity:medium|note:general home cooking, varied cuisines"

// 每道挑選食譜最多附帶的關鍵食材數
const maxRecipeIngredients = 3

// Formatter 將偏好檔壓縮為注入生成提示詞的緊湊摘要
// 對 nil 與空輸入都安全，永不 panic
type Formatter struct {
	cfg config.PromptConfig
}

// NewFormatter 創建提示詞格式化器
func NewFormatter(cfg config.PromptConfig) *Formatter {
	return &Formatter{cfg: cfg}
}

// Format 產生分隔符格式的緊湊摘要
// 欄位缺漏時整段省略，確保摘要維持在 token 預算內
func (f *Formatter) Format(prof *profile.PreferenceProfile, recipes []meal.ScoredRecipe, guidance meal.VarietyGuidance) string {
	if prof == nil {
		return fallbackSummary
	}

	sections := []string{"PREF"}

	if names := topNames(prof.CuisineAffinities, f.cfg.MaxCuisines); len(names) > 0 {
		sections = append(sections, "cuisines:"+strings.Join(names, ","))
	}
	if names := topNames(prof.FavoriteProteins, f.cfg.MaxProteins); len(names) > 0 {
		sections = append(sections, "proteins:"+strings.Join(names, ","))
	}
	if names := topNames(prof.PreferredIngredients, f.cfg.MaxIngredients); len(names) > 0 {
		sections = append(sections, "ingredients:"+strings.Join(names, ","))
	}
	if prof.ComplexityPreference != "" {
		sections = append(sections, "complexity:"+prof.ComplexityPreference)
	}
	if prof.CookingPatterns.Frequency != "" && prof.CookingPatterns.Frequency != profile.FrequencyUnknown {
		sections = append(sections, "cook_freq:"+prof.CookingPatterns.Frequency)
	}

	if picks := recipePicks(recipes, f.cfg.MaxRecipes); len(picks) > 0 {
		sections = append(sections, "cookbook_picks:"+strings.Join(picks, ";"))
	}

	if len(guidance.RecommendedCuisines) > 0 {
		sections = append(sections, "try_cuisines:"+strings.Join(guidance.RecommendedCuisines, ","))
	}
	if len(guidance.RecommendedProteins) > 0 {
		sections = append(sections, "try_proteins:"+strings.Join(guidance.RecommendedProteins, ","))
	}
	if len(guidance.ExplicitExclusions) > 0 {
		exclusions := guidance.ExplicitExclusions
		if len(exclusions) > f.cfg.MaxRecipes {
			exclusions = exclusions[:f.cfg.MaxRecipes]
		}
		sections = append(sections, "avoid:"+strings.Join(exclusions, ";"))
	}

	if len(sections) == 1 {
		return fallbackSummary
	}
	return strings.Join(sections, "|")
}

// FormatNaturalLanguage 產生自然語言版摘要，供緊湊格式超出預算時替代
func (f *Formatter) FormatNaturalLanguage(prof *profile.PreferenceProfile, recipes []meal.ScoredRecipe, guidance meal.VarietyGuidance) string {
	if prof == nil {
		return "The user enjoys general home cooking with medium complexity recipes."
	}

	var sentences []string

	if names := topNames(prof.CuisineAffinities, f.cfg.MaxCuisines); len(names) > 0 {
		sentences = append(sentences, fmt.Sprintf("The user enjoys %s cuisine.", joinNatural(names)))
	}
	if names := topNames(prof.FavoriteProteins, f.cfg.MaxProteins); len(names) > 0 {
		sentences = append(sentences, fmt.Sprintf("Favorite proteins include %s.", joinNatural(names)))
	}
	if titles := recipeTitles(recipes, f.cfg.MaxRecipes); len(titles) > 0 {
		sentences = append(sentences, fmt.Sprintf("Favorites from their cookbook: %s.", joinNatural(titles)))
	}
	if prof.ComplexityPreference != "" {
		sentences = append(sentences, fmt.Sprintf("They prefer %s complexity recipes.", prof.ComplexityPreference))
	}
	if len(guidance.RecommendedCuisines) > 0 {
		sentences = append(sentences, fmt.Sprintf("For variety, suggest trying %s dishes.", joinNatural(guidance.RecommendedCuisines)))
	}
	if len(guidance.ExplicitExclusions) > 0 {
		exclusions := guidance.ExplicitExclusions
		if len(exclusions) > f.cfg.MaxRecipes {
			exclusions = exclusions[:f.cfg.MaxRecipes]
		}
		sentences = append(sentences, fmt.Sprintf("Do not repeat these recent meals: %s.", strings.Join(exclusions, ", ")))
	}

	if len(sentences) == 0 {
		return "The user enjoys general home cooking with medium complexity recipes."
	}
	return strings.Join(sentences, " ")
}

// EstimateTokenCount 以字數估算 token 數
func (f *Formatter) EstimateTokenCount(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * f.cfg.TokensPerWord))
}

// IsWithinTokenLimits 檢查摘要是否在 token 預算內
func (f *Formatter) IsWithinTokenLimits(text string) bool {
	return f.EstimateTokenCount(text) <= f.cfg.MaxTokens
}

func topNames(items []profile.RankedItem, limit int) []string {
	names := make([]string, 0, limit)
	for _, item := range items {
		if len(names) >= limit {
			break
		}
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return names
}

// recipePicks 每道挑選附帶菜系與至多三項關鍵食材，如 Pad Thai(thai:rice noodle,egg,peanut)
func recipePicks(recipes []meal.ScoredRecipe, limit int) []string {
	picks := make([]string, 0, limit)
	for _, sr := range recipes {
		if len(picks) >= limit {
			break
		}
		if sr.Recipe.Title == "" {
			continue
		}
		detail := strings.ToLower(strings.TrimSpace(sr.Recipe.Cuisine))
		if ings := keyIngredients(sr.Recipe.Ingredients, maxRecipeIngredients); len(ings) > 0 {
			if detail != "" {
				detail += ":"
			}
			detail += strings.Join(ings, ",")
		}
		pick := sr.Recipe.Title
		if detail != "" {
			pick += "(" + detail + ")"
		}
		picks = append(picks, pick)
	}
	return picks
}

func keyIngredients(ingredients []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, ing := range ingredients {
		if len(out) >= limit {
			break
		}
		name := strings.ToLower(strings.TrimSpace(ing))
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

func recipeTitles(recipes []meal.ScoredRecipe, limit int) []string {
	titles := make([]string, 0, limit)
	for _, sr := range recipes {
		if len(titles) >= limit {
			break
		}
		if sr.Recipe.Title == "" {
			continue
		}
		titles = append(titles, sr.Recipe.Title)
	}
	return titles
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
