package common

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/joseph-ayodele/idverify/constants"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "PORT", "GRPC_ADDR", "WORKER_COUNT", "QUEUE_CAPACITY", "OCR_PROFILES", "RESULT_RETENTION", "JWT_SECRET", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	if cfg.Server.HTTPAddr != ":10000" || cfg.Server.GRPCAddr != ":9090" {
		t.Fatalf("unexpected listen addresses %q %q", cfg.Server.HTTPAddr, cfg.Server.GRPCAddr)
	}
	if cfg.Queue.Workers != 2 || cfg.Queue.Capacity != 0 || cfg.Queue.TaskTimeout != 3*time.Minute {
		t.Fatalf("unexpected queue config %+v", cfg.Queue)
	}
	if cfg.Store.Retention != 24*time.Hour || cfg.Store.SweepInterval != time.Hour {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if !reflect.DeepEqual(cfg.OCR.Profiles, constants.DefaultProfiles) {
		t.Fatalf("unexpected profiles %v", cfg.OCR.Profiles)
	}
	if cfg.Auth.JWTSecret != "" || cfg.Server.CORSAllowedOrigins != nil {
		t.Fatalf("auth and cors should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PORT", "8080")
	t.Setenv("WORKER_COUNT", "6")
	t.Setenv("QUEUE_CAPACITY", "512")
	t.Setenv("TASK_TIMEOUT", "90s")
	t.Setenv("OCR_PROFILES", "sparse, 6, bogus")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("JWT_SECRET", "  s3cret ")

	cfg := LoadConfig()
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("PORT fallback not applied: %q", cfg.Server.HTTPAddr)
	}
	if cfg.Queue.Workers != 6 || cfg.Queue.Capacity != 512 || cfg.Queue.TaskTimeout != 90*time.Second {
		t.Fatalf("unexpected queue config %+v", cfg.Queue)
	}
	if want := []constants.Profile{constants.ProfileSparse, constants.ProfileBlock}; !reflect.DeepEqual(cfg.OCR.Profiles, want) {
		t.Fatalf("profiles = %v, want %v", cfg.OCR.Profiles, want)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.Server.CORSAllowedOrigins, want) {
		t.Fatalf("origins = %v, want %v", cfg.Server.CORSAllowedOrigins, want)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("secret not trimmed: %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadConfigIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("SWEEP_INTERVAL", "hourly")

	cfg := LoadConfig()
	if cfg.Queue.Workers != 2 || cfg.Store.SweepInterval != time.Hour {
		t.Fatalf("malformed values should fall back to defaults: %+v %+v", cfg.Queue, cfg.Store)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no workers", func(c *Config) { c.Queue.Workers = 0 }},
		{"negative capacity", func(c *Config) { c.Queue.Capacity = -1 }},
		{"zero retention", func(c *Config) { c.Store.Retention = 0 }},
		{"tiny working width", func(c *Config) { c.OCR.WorkingWidth = 10 }},
		{"no profiles", func(c *Config) { c.OCR.Profiles = nil }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if ErrorCode(err, "") != "CONFIG_ERROR" {
				t.Fatalf("unexpected code in %v", err)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("IDVERIFY_TEST_LANG=deu\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IDVERIFY_TEST_LANG", "")
	os.Unsetenv("IDVERIFY_TEST_LANG")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("IDVERIFY_TEST_LANG"); got != "deu" {
		t.Fatalf("env not loaded, got %q", got)
	}
}
