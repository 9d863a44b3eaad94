package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("ANALYSIS_MAX_DOC_CHARS", "")
	t.Setenv("OLLAMA_TIMEOUT_SECONDS", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("expected default store driver postgres, got %q", cfg.StoreDriver)
	}
	if cfg.AnalysisMaxDocChars != 24000 {
		t.Fatalf("expected default max doc chars 24000, got %d", cfg.AnalysisMaxDocChars)
	}
	if cfg.OllamaTimeout() != 300*time.Second {
		t.Fatalf("expected default ollama timeout 300s, got %s", cfg.OllamaTimeout())
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rate limit 20, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("API_BACKPRESSURE_WAIT_MS", "40")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("expected store driver override, got %q", cfg.StoreDriver)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.BackpressureWait() != 40*time.Millisecond {
		t.Fatalf("expected 40ms backpressure wait, got %s", cfg.BackpressureWait())
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("API_MAX_IN_FLIGHT", "lots")
	t.Setenv("RESILIENCE_BREAKER_FAILURE_RATIO", "half")

	cfg := Load()
	if cfg.APIMaxInFlight != 32 {
		t.Fatalf("expected fallback max in flight 32, got %d", cfg.APIMaxInFlight)
	}
	if cfg.ResilienceBreakerFailureRatio != 0.5 {
		t.Fatalf("expected fallback failure ratio 0.5, got %v", cfg.ResilienceBreakerFailureRatio)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OLLAMA_MODEL=from-dotenv\nNATS_SUBJECT=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("NATS_SUBJECT", "from-env")
	t.Setenv("OLLAMA_MODEL", "")
	os.Unsetenv("OLLAMA_MODEL")

	cfg := Load()
	if cfg.OllamaModel != "from-dotenv" {
		t.Fatalf("expected model from .env, got %q", cfg.OllamaModel)
	}
	if cfg.NATSSubject != "from-env" {
		t.Fatalf("expected environment to win over .env, got %q", cfg.NATSSubject)
	}
}
