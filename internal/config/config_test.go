package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsUsable(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Lambda.TimeoutSeconds != 60 {
		t.Errorf("default timeout: expected 60, got %d", cfg.Lambda.TimeoutSeconds)
	}
	if cfg.Lambda.MemoryMB != 512 {
		t.Errorf("default memory: expected 512, got %d", cfg.Lambda.MemoryMB)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("default poll interval: expected 5s, got %v", cfg.Poll.Interval)
	}
	if !cfg.Cleanup {
		t.Error("cleanup should default to enabled")
	}
	if cfg.TaskTimeout() != 60*time.Second {
		t.Errorf("TaskTimeout: expected 60s, got %v", cfg.TaskTimeout())
	}

	// Defaults validate once the deployment-specific fields are filled in.
	cfg.Lambda.FunctionName = "fn"
	cfg.Store.Bucket = "bucket"
	if err := cfg.Validate(); err != nil {
		t.Errorf("completed defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Lambda.FunctionName = "fn"
		cfg.Store.Bucket = "bucket"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Lambda.TimeoutSeconds = 0 }},
		{"timeout over ceiling", func(c *Config) { c.Lambda.TimeoutSeconds = MaxTimeoutSeconds + 1 }},
		{"memory below floor", func(c *Config) { c.Lambda.MemoryMB = MinMemoryMB - 1 }},
		{"memory above ceiling", func(c *Config) { c.Lambda.MemoryMB = MaxMemoryMB + 1 }},
		{"zero poll interval", func(c *Config) { c.Poll.Interval = 0 }},
		{"negative grace", func(c *Config) { c.Poll.Grace = -time.Second }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }},
		{"missing function name", func(c *Config) { c.Lambda.FunctionName = "" }},
		{"unknown invoker", func(c *Config) { c.Invoker = "smoke-signal" }},
		{"s3 without bucket", func(c *Config) { c.Store.Bucket = "" }},
		{"redis without address", func(c *Config) { c.Store.Type = "redis"; c.Store.RedisAddr = "" }},
		{"unknown store", func(c *Config) { c.Store.Type = "tape" }},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 1.5 }},
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}

	// Boundary values are accepted.
	cfg := base()
	cfg.Lambda.TimeoutSeconds = MaxTimeoutSeconds
	cfg.Lambda.MemoryMB = MaxMemoryMB
	if err := cfg.Validate(); err != nil {
		t.Errorf("ceiling values should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"aws": {"region": "eu-west-1"},
		"store": {"type": "s3", "bucket": "quasar-payloads"},
		"lambda": {"function_name": "quasar-remote", "timeout_seconds": 120},
		"poll": {"interval": 2000000000},
		"cleanup": false
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Errorf("region not loaded: %q", cfg.AWS.Region)
	}
	if cfg.Store.Bucket != "quasar-payloads" {
		t.Errorf("bucket not loaded: %q", cfg.Store.Bucket)
	}
	if cfg.Lambda.TimeoutSeconds != 120 {
		t.Errorf("timeout not loaded: %d", cfg.Lambda.TimeoutSeconds)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("poll interval not loaded: %v", cfg.Poll.Interval)
	}
	if cfg.Cleanup {
		t.Error("cleanup override not applied")
	}
	// Untouched fields keep their defaults.
	if cfg.Lambda.MemoryMB != 512 {
		t.Errorf("memory default lost: %d", cfg.Lambda.MemoryMB)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUASAR_S3_BUCKET", "env-bucket")
	t.Setenv("QUASAR_FUNCTION_NAME", "env-fn")
	t.Setenv("QUASAR_POLL_INTERVAL", "250ms")
	t.Setenv("QUASAR_TIMEOUT_SECONDS", "30")
	t.Setenv("QUASAR_CLEANUP", "false")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Store.Bucket != "env-bucket" {
		t.Errorf("bucket: %q", cfg.Store.Bucket)
	}
	if cfg.Lambda.FunctionName != "env-fn" {
		t.Errorf("function name: %q", cfg.Lambda.FunctionName)
	}
	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Errorf("poll interval: %v", cfg.Poll.Interval)
	}
	if cfg.Lambda.TimeoutSeconds != 30 {
		t.Errorf("timeout: %d", cfg.Lambda.TimeoutSeconds)
	}
	if cfg.Cleanup {
		t.Error("cleanup override not applied")
	}
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("QUASAR_POLL_INTERVAL", "soon")
	t.Setenv("QUASAR_TIMEOUT_SECONDS", "forever")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("unparsable interval should keep default, got %v", cfg.Poll.Interval)
	}
	if cfg.Lambda.TimeoutSeconds != 60 {
		t.Errorf("unparsable timeout should keep default, got %d", cfg.Lambda.TimeoutSeconds)
	}
}
