package ai

// UsageInfo 模型用量資訊
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response AI 生成結果
type Response struct {
	Content  string    `json:"content"`
	Model    string    `json:"model,omitempty"`
	Usage    UsageInfo `json:"usage"`
	CacheHit bool      `json:"cache_hit,omitempty"`
}

// GeneratedMeal 模型生成的餐點
type GeneratedMeal struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Cuisine          string   `json:"cuisine,omitempty"`
	Calories         int      `json:"calories,omitempty"`
	TotalTimeMinutes int      `json:"total_time_minutes,omitempty"`
	Ingredients      []string `json:"ingredients,omitempty"`
	Instructions     []string `json:"instructions,omitempty"`
}
