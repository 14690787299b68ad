package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Auth.MinPasswordLength != 6 {
		t.Errorf("Expected minimum password length 6, got %d", cfg.Auth.MinPasswordLength)
	}
	if cfg.Session.IdleTTL != 2*time.Hour {
		t.Errorf("Expected idle TTL 2h, got %s", cfg.Session.IdleTTL)
	}
	if cfg.Quiz.Location == nil {
		t.Error("Expected a quiz location")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QUIZ_TIME_ZONE", "UTC")
	t.Setenv("AUTH_MAX_FAILED_ATTEMPTS", "3")
	t.Setenv("SESSION_IDLE_TTL", "45m")
	t.Setenv("ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CONSUL_ENABLED", "true")

	cfg := Load()

	if cfg.Quiz.Location.String() != "UTC" {
		t.Errorf("Expected UTC, got %s", cfg.Quiz.Location)
	}
	if cfg.Auth.MaxFailedAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", cfg.Auth.MaxFailedAttempts)
	}
	if cfg.Session.IdleTTL != 45*time.Minute {
		t.Errorf("Expected 45m, got %s", cfg.Session.IdleTTL)
	}
	if len(cfg.Server.AllowOrigins) != 2 || cfg.Server.AllowOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.Server.AllowOrigins)
	}
	if !cfg.Consul.Enabled {
		t.Error("Expected consul to be enabled")
	}
}

func TestGetEnvHelpers_FallBackOnBadValues(t *testing.T) {
	t.Setenv("BAD_INT", "abc")
	t.Setenv("BAD_DURATION", "soon")
	t.Setenv("BAD_BOOL", "maybe")

	if got := getEnvAsInt("BAD_INT", 7); got != 7 {
		t.Errorf("Expected fallback 7, got %d", got)
	}
	if got := getEnvAsDuration("BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("Expected fallback 1s, got %s", got)
	}
	if got := getEnvAsBool("BAD_BOOL", true); !got {
		t.Error("Expected fallback true")
	}
}

func TestLoad_EmptyJWTSecretIsReplaced(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	first := Load()
	second := Load()

	if first.JWT.Secret == "" {
		t.Fatal("Expected a generated secret")
	}
	if first.JWT.Secret == second.JWT.Secret {
		t.Error("Expected a fresh secret per load")
	}
}
