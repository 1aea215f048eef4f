package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Store       StoreConfig      `mapstructure:"store"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Preference  PreferenceConfig `mapstructure:"preference"`
	Scoring     ScoringConfig    `mapstructure:"scoring"`
	Variety     VarietyConfig    `mapstructure:"variety"`
	Prompt      PromptConfig     `mapstructure:"prompt"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// StoreConfig 文件儲存配置
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // badger 或 memory
	Path    string `mapstructure:"path"`
}

// RedisConfig 生成結果快取配置
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// PreferenceConfig 偏好檔快取與資料視窗設定
type PreferenceConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`            // 快取有效期
	RefreshAfter     time.Duration `mapstructure:"refresh_after"`  // 背景更新門檻
	SweepAfter       time.Duration `mapstructure:"sweep_after"`    // 清除門檻（2×TTL）
	SweepInterval    time.Duration `mapstructure:"sweep_interval"` // 清除輪詢間隔
	CookLookbackDays int           `mapstructure:"cook_lookback_days"`
	CookbookLimit    int           `mapstructure:"cookbook_limit"`
	CookLogLimit     int           `mapstructure:"cook_log_limit"`
	ViewLimit        int           `mapstructure:"view_limit"`
	RatingLimit      int           `mapstructure:"rating_limit"`
	RefreshWorkers   int           `mapstructure:"refresh_workers"`
	RefreshQueueSize int           `mapstructure:"refresh_queue_size"`
}

// ScoringConfig 食譜挑選權重
// 權重為經驗常數，預設值重現觀察到的行為，可由環境覆寫
type ScoringConfig struct {
	AffinityWeight float64 `mapstructure:"affinity_weight"`
	ContextWeight  float64 `mapstructure:"context_weight"`
	RecencyWeight  float64 `mapstructure:"recency_weight"`
	QualityWeight  float64 `mapstructure:"quality_weight"`
}

// VarietyConfig 相似度與多樣性權重
type VarietyConfig struct {
	ProteinWeight     float64 `mapstructure:"protein_weight"`
	CuisineWeight     float64 `mapstructure:"cuisine_weight"`
	IngredientWeight  float64 `mapstructure:"ingredient_weight"`
	MethodWeight      float64 `mapstructure:"method_weight"`
	DecayLambda       float64 `mapstructure:"decay_lambda"`
	RecentWindowWeeks int     `mapstructure:"recent_window_weeks"`
}

// PromptConfig 提示詞格式化設定
type PromptConfig struct {
	MaxTokens      int     `mapstructure:"max_tokens"`
	TokensPerWord  float64 `mapstructure:"tokens_per_word"`
	MaxIngredients int     `mapstructure:"max_ingredients"`
	MaxCuisines    int     `mapstructure:"max_cuisines"`
	MaxProteins    int     `mapstructure:"max_proteins"`
	MaxRecipes     int     `mapstructure:"max_recipes"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時沿用環境變數）
	_ = godotenv.Load()

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	viper.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	viper.BindEnv("store.backend", "STORE_BACKEND")
	viper.BindEnv("store.path", "STORE_PATH")
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("preference.ttl", "PREFERENCE_TTL")
	viper.BindEnv("preference.refresh_after", "PREFERENCE_REFRESH_AFTER")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "meal-plan-personalizer")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// OpenRouter 設定
	viper.SetDefault("openrouter.enabled", false)
	viper.SetDefault("openrouter.model", "qwen/qwen2.5-vl-72b-instruct:free")
	viper.SetDefault("openrouter.max_tokens", 2048)
	viper.SetDefault("openrouter.timeout", "60s")

	// 儲存設定
	viper.SetDefault("store.backend", "badger")
	viper.SetDefault("store.path", "data/store")

	// 生成結果快取設定
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.ttl", "1h")

	// 偏好檔快取設定
	viper.SetDefault("preference.ttl", "24h")
	viper.SetDefault("preference.refresh_after", "18h")
	viper.SetDefault("preference.sweep_after", "48h")
	viper.SetDefault("preference.sweep_interval", "1h")
	viper.SetDefault("preference.cook_lookback_days", 30)
	viper.SetDefault("preference.cookbook_limit", 100)
	viper.SetDefault("preference.cook_log_limit", 50)
	viper.SetDefault("preference.view_limit", 50)
	viper.SetDefault("preference.rating_limit", 100)
	viper.SetDefault("preference.refresh_workers", 2)
	viper.SetDefault("preference.refresh_queue_size", 32)

	// 挑選權重
	viper.SetDefault("scoring.affinity_weight", 0.4)
	viper.SetDefault("scoring.context_weight", 0.25)
	viper.SetDefault("scoring.recency_weight", 0.25)
	viper.SetDefault("scoring.quality_weight", 0.1)

	// 多樣性權重
	viper.SetDefault("variety.protein_weight", 0.65)
	viper.SetDefault("variety.cuisine_weight", 0.45)
	viper.SetDefault("variety.ingredient_weight", 0.55)
	viper.SetDefault("variety.method_weight", 0.35)
	viper.SetDefault("variety.decay_lambda", 0.05)
	viper.SetDefault("variety.recent_window_weeks", 4)

	// 提示詞設定
	viper.SetDefault("prompt.max_tokens", 120)
	viper.SetDefault("prompt.tokens_per_word", 0.75)
	viper.SetDefault("prompt.max_ingredients", 8)
	viper.SetDefault("prompt.max_cuisines", 5)
	viper.SetDefault("prompt.max_proteins", 4)
	viper.SetDefault("prompt.max_recipes", 6)

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// 去重視窗
	viper.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證儲存設定
	switch config.Store.Backend {
	case "badger":
		if config.Store.Path == "" {
			return fmt.Errorf("store path is required for badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend: %s", config.Store.Backend)
	}

	// 驗證偏好檔快取設定
	if config.Preference.TTL <= 0 {
		return fmt.Errorf("invalid preference ttl")
	}
	if config.Preference.RefreshAfter <= 0 || config.Preference.RefreshAfter >= config.Preference.TTL {
		return fmt.Errorf("preference refresh_after must be positive and below ttl")
	}
	if config.Preference.SweepAfter < config.Preference.TTL {
		return fmt.Errorf("preference sweep_after must be at least ttl")
	}
	if config.Preference.RefreshWorkers <= 0 {
		return fmt.Errorf("invalid refresh workers")
	}
	if config.Preference.RefreshQueueSize <= 0 {
		return fmt.Errorf("invalid refresh queue size")
	}

	// 驗證權重
	if config.Scoring.AffinityWeight < 0 || config.Scoring.ContextWeight < 0 ||
		config.Scoring.RecencyWeight < 0 || config.Scoring.QualityWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if config.Variety.DecayLambda <= 0 {
		return fmt.Errorf("invalid variety decay lambda")
	}

	// 驗證提示詞設定
	if config.Prompt.MaxTokens <= 0 {
		return fmt.Errorf("invalid prompt max tokens")
	}

	return nil
}
