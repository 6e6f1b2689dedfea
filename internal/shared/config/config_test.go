package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.ResearchLLMBaseURL != "https://api.perplexity.ai" {
		t.Errorf("ResearchLLMBaseURL = %q", cfg.ResearchLLMBaseURL)
	}
	if cfg.ResearchLLMModel != "sonar-pro" || cfg.StructuringLLMModel != "gpt-4o-mini" {
		t.Errorf("models = %q / %q", cfg.ResearchLLMModel, cfg.StructuringLLMModel)
	}
	if cfg.RateLimitMaxRequests != 10 || cfg.RateLimitWindowSeconds != 60 {
		t.Errorf("rate limit = %d/%ds", cfg.RateLimitMaxRequests, cfg.RateLimitWindowSeconds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("ENV", "Prod")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "25")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %q, want production", cfg.Env)
	}
	if cfg.RateLimitMaxRequests != 25 {
		t.Errorf("RateLimitMaxRequests = %d", cfg.RateLimitMaxRequests)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(cfg.CORSAllowOrigin, want) {
		t.Errorf("CORSAllowOrigin = %v", cfg.CORSAllowOrigin)
	}
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "sixty")
	cfg := Load()
	if cfg.RateLimitWindowSeconds != 60 {
		t.Errorf("RateLimitWindowSeconds = %d, want default 60", cfg.RateLimitWindowSeconds)
	}
}
