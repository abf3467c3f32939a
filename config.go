package nutriguide

import "time"

type ResolverConfig struct {
	Kind            string        `env:"RESOLVER_KIND,default=local"`
	RemoteBaseURL   string        `env:"REMOTE_BASE_URL,default=http://localhost:8000"`
	NutritionDBPath string        `env:"NUTRITION_DB_PATH,default=artifacts/nutrition.csv"`
	NutritionBucket string        `env:"NUTRITION_DB_S3_BUCKET"`
	NutritionKey    string        `env:"NUTRITION_DB_S3_KEY"`
	SuggestLimit    int           `env:"SUGGEST_LIMIT,default=4"`
	SuggestMinScore int           `env:"SUGGEST_MIN_SCORE,default=75"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	SuggestCacheTTL time.Duration `env:"SUGGEST_CACHE_TTL,default=1h"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	InstrumentCalls bool          `env:"INSTRUMENT_RESOLVER,default=false"`
}

type ModelConfig struct {
	ModelID           string  `env:"MODEL_ID"`
	MaxTokens         int32   `env:"MAX_TOKENS,default=1024"`
	Temperature       float32 `env:"TEMPERATURE,default=0.2"`
	TopP              float32 `env:"TOP_P,default=0.9"`
	MaxToolIterations int     `env:"MAX_TOOL_ITERATIONS,default=6"`
}

type StoreConfig struct {
	MealDBPath string `env:"MEAL_DB_PATH,default=meal-log.db"`
}

type ServerConfig struct {
	Addr           string   `env:"HTTP_ADDR,default=:8080"`
	CORSOrigins    []string `env:"CORS_ORIGINS,default=*"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST,default=10"`
}

type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#meals"`
}
