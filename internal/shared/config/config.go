package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	RedisURL        string
	CORSAllowOrigin []string

	ResearchLLMBaseURL string
	ResearchLLMAPIKey  string
	ResearchLLMModel   string

	StructuringLLMAPIKey string
	StructuringLLMModel  string

	RateLimitMaxRequests   int
	RateLimitWindowSeconds int

	WorkerConcurrency int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		DatabaseURL:     dbURL,
		RedisURL:        getEnv("REDIS_URL", ""),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		ResearchLLMBaseURL: getEnv("RESEARCH_LLM_BASE_URL", "https://api.perplexity.ai"),
		ResearchLLMAPIKey:  getEnv("RESEARCH_LLM_API_KEY", ""),
		ResearchLLMModel:   getEnv("RESEARCH_LLM_MODEL", "sonar-pro"),

		StructuringLLMAPIKey: getEnv("STRUCTURING_LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		StructuringLLMModel:  getEnv("STRUCTURING_LLM_MODEL", "gpt-4o-mini"),

		RateLimitMaxRequests:   getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitWindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q, using default %d", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
