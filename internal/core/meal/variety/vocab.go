package variety

import (
	"strings"
	"unicode"
)

// 固定詞彙表
// 以關鍵字比對做輕量分類，偵測不到時視為無訊號（不是 0 相似度）

// proteinKeywords 蛋白質關鍵字，依常見程度排序，先命中者優先
var proteinKeywords = []string{
	"chicken", "beef", "pork", "salmon", "shrimp", "tofu",
	"turkey", "lamb", "tuna", "duck", "crab", "scallop",
	"egg", "fish",
}

// cuisineEntry 菜系與其關鍵字
type cuisineEntry struct {
	Name     string
	Keywords []string
}

var cuisineKeywords = []cuisineEntry{
	{"italian", []string{"italian", "pasta", "risotto", "lasagna", "parmesan", "pesto", "carbonara"}},
	{"mexican", []string{"mexican", "taco", "burrito", "enchilada", "quesadilla", "salsa", "fajita"}},
	{"thai", []string{"thai", "pad thai", "satay", "tom yum", "green curry"}},
	{"japanese", []string{"japanese", "teriyaki", "sushi", "ramen", "miso", "katsu", "udon"}},
	{"chinese", []string{"chinese", "kung pao", "szechuan", "chow mein", "dumpling", "fried rice"}},
	{"indian", []string{"indian", "curry", "masala", "tikka", "tandoori", "biryani", "dal"}},
	{"korean", []string{"korean", "kimchi", "bulgogi", "bibimbap", "gochujang"}},
	{"mediterranean", []string{"mediterranean", "hummus", "falafel", "tabbouleh", "shakshuka"}},
	{"greek", []string{"greek", "gyro", "tzatziki", "souvlaki", "feta"}},
	{"french", []string{"french", "ratatouille", "coq au vin", "provencal", "gratin"}},
	{"american", []string{"american", "burger", "bbq", "meatloaf", "mac and cheese"}},
}

// dominantIngredients 主要非蛋白質食材關鍵字
var dominantIngredients = []string{
	"rice", "pasta", "noodle", "potato", "quinoa", "lentil",
	"bean", "chickpea", "mushroom", "broccoli", "cauliflower",
	"spinach", "zucchini", "eggplant", "avocado", "sweet potato",
	"corn", "tomato", "cabbage", "squash",
}

// methodEntry 烹調方式與其關鍵字（關鍵字為正規化後字串）
type methodEntry struct {
	Name     string
	Keywords []string
}

var methodKeywords = []methodEntry{
	{"stir fry", []string{"stir fried", "stir fry", "wok"}},
	{"grill", []string{"grilled", "grill", "barbecue", "bbq"}},
	{"bake", []string{"baked", "bake"}},
	{"roast", []string{"roasted", "roast"}},
	{"fry", []string{"fried", "fry", "air fryer", "crispy"}},
	{"steam", []string{"steamed", "steam"}},
	{"braise", []string{"braised", "braise"}},
	{"slow cook", []string{"slow cooker", "slow cooked", "crockpot"}},
	{"poach", []string{"poached"}},
	{"sear", []string{"seared", "pan seared"}},
	{"smoke", []string{"smoked"}},
	{"stew", []string{"stewed", "stew"}},
}

// candidateCuisines 推薦候選菜系
var candidateCuisines = []string{
	"italian", "mexican", "thai", "japanese", "indian",
	"mediterranean", "chinese", "korean", "french", "greek",
}

// candidateProteins 推薦候選蛋白質
var candidateProteins = []string{
	"chicken", "beef", "salmon", "shrimp", "tofu", "pork", "turkey", "lamb",
}

// NormalizeTitle 標題正規化：轉小寫、去除標點、壓縮空白
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	var sb strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			sb.WriteRune(' ')
		default:
			// 忽略其他符號
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// DetectProtein 偵測蛋白質關鍵字，無命中回傳空字串
func DetectProtein(text string) string {
	norm := NormalizeTitle(text)
	for _, p := range proteinKeywords {
		if strings.Contains(norm, p) {
			return p
		}
	}
	return ""
}

// DetectCuisine 偵測菜系，無命中回傳空字串
func DetectCuisine(text string) string {
	norm := NormalizeTitle(text)
	for _, entry := range cuisineKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(norm, kw) {
				return entry.Name
			}
		}
	}
	return ""
}

// DetectDominantIngredient 偵測主要非蛋白質食材，無命中回傳空字串
func DetectDominantIngredient(text string) string {
	norm := NormalizeTitle(text)
	for _, ing := range dominantIngredients {
		if strings.Contains(norm, ing) {
			return ing
		}
	}
	return ""
}

// DetectMethod 偵測烹調方式，無命中回傳空字串
func DetectMethod(text string) string {
	norm := NormalizeTitle(text)
	for _, entry := range methodKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(norm, kw) {
				return entry.Name
			}
		}
	}
	return ""
}
