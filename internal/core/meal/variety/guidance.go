package variety

import (
	"meal-plan-personalizer/internal/core/meal"
)

// 指引視窗與上限
const (
	guidanceWindow    = 15 // 參與統計的近期餐點數
	exclusionWindow   = 10 // 列為硬性排除的近期餐點數
	maxRecentCuisines = 4
	maxRecentProteins = 3
	maxRecentMethods  = 3
	maxRecommendCuis  = 3
	maxRecommendProt  = 2
)

// GenerateGuidance 根據近期餐點產生多樣性指引
// recentMeals 索引 0 為最近一餐
func (s *Scorer) GenerateGuidance(recentMeals []string) meal.VarietyGuidance {
	window := recentMeals
	if len(window) > guidanceWindow {
		window = window[:guidanceWindow]
	}

	guidance := meal.VarietyGuidance{
		RecentCuisines:      []string{},
		RecentProteins:      []string{},
		RecentMethods:       []string{},
		RecommendedCuisines: []string{},
		RecommendedProteins: []string{},
		ExplicitExclusions:  []string{},
	}

	if len(window) == 0 {
		guidance.DiversityScore = 10.0
		guidance.RecommendedCuisines = appendLimited(nil, candidateCuisines, maxRecommendCuis)
		guidance.RecommendedProteins = appendLimited(nil, candidateProteins, maxRecommendProt)
		return guidance
	}

	seenProteins := map[string]bool{}
	seenCuisines := map[string]bool{}
	seenMethods := map[string]bool{}
	seenTitles := map[string]bool{}

	for _, m := range window {
		if p := DetectProtein(m); p != "" && !seenProteins[p] {
			seenProteins[p] = true
			if len(guidance.RecentProteins) < maxRecentProteins {
				guidance.RecentProteins = append(guidance.RecentProteins, p)
			}
		}
		if c := DetectCuisine(m); c != "" && !seenCuisines[c] {
			seenCuisines[c] = true
			if len(guidance.RecentCuisines) < maxRecentCuisines {
				guidance.RecentCuisines = append(guidance.RecentCuisines, c)
			}
		}
		if mt := DetectMethod(m); mt != "" && !seenMethods[mt] {
			seenMethods[mt] = true
			if len(guidance.RecentMethods) < maxRecentMethods {
				guidance.RecentMethods = append(guidance.RecentMethods, mt)
			}
		}
		seenTitles[NormalizeTitle(m)] = true
	}

	// 推薦近期未出現的菜系與蛋白質
	for _, c := range candidateCuisines {
		if len(guidance.RecommendedCuisines) >= maxRecommendCuis {
			break
		}
		if !seenCuisines[c] {
			guidance.RecommendedCuisines = append(guidance.RecommendedCuisines, c)
		}
	}
	for _, p := range candidateProteins {
		if len(guidance.RecommendedProteins) >= maxRecommendProt {
			break
		}
		if !seenProteins[p] {
			guidance.RecommendedProteins = append(guidance.RecommendedProteins, p)
		}
	}

	// 多樣性分數：四個「相異數/總餐數」比率各自封頂 1 後取平均，再放大至 0–10
	total := float64(len(window))
	ratios := []float64{
		capRatio(float64(len(seenProteins)) / total),
		capRatio(float64(len(seenCuisines)) / total),
		capRatio(float64(len(seenMethods)) / total),
		capRatio(float64(len(seenTitles)) / total),
	}
	sum := 0.0
	for _, r := range ratios {
		sum += r
	}
	guidance.DiversityScore = sum / float64(len(ratios)) * 10.0

	// 最近 10 餐的確切標題（含正規化版本）列為硬性排除
	exclusions := recentMeals
	if len(exclusions) > exclusionWindow {
		exclusions = exclusions[:exclusionWindow]
	}
	seenExclusions := map[string]bool{}
	for _, title := range exclusions {
		if title == "" {
			continue
		}
		if !seenExclusions[title] {
			seenExclusions[title] = true
			guidance.ExplicitExclusions = append(guidance.ExplicitExclusions, title)
		}
		if norm := NormalizeTitle(title); norm != "" && norm != title && !seenExclusions[norm] {
			seenExclusions[norm] = true
			guidance.ExplicitExclusions = append(guidance.ExplicitExclusions, norm)
		}
	}

	return guidance
}

func appendLimited(dst []string, src []string, limit int) []string {
	for _, s := range src {
		if len(dst) >= limit {
			break
		}
		dst = append(dst, s)
	}
	if dst == nil {
		dst = []string{}
	}
	return dst
}

func capRatio(r float64) float64 {
	if r > 1.0 {
		return 1.0
	}
	return r
}
