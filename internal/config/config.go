// Package config carries the executor configuration surface. Everything is
// validated at construction time; nothing in the dispatch path re-reads
// ambient state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/pkg/objstore"
)

// Backend-imposed ceilings (AWS Lambda).
const (
	MaxTimeoutSeconds = 900
	MinMemoryMB       = 128
	MaxMemoryMB       = 10240
)

// AWSConfig holds session settings for the S3 and Lambda clients.
type AWSConfig struct {
	Region          string `json:"region"`
	Profile         string `json:"profile"`
	CredentialsFile string `json:"credentials_file"`

	// Static credentials override the shared-config chain when both are set.
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// LambdaConfig identifies the deployed remote function and its resource spec.
type LambdaConfig struct {
	FunctionName   string `json:"function_name"`
	MemoryMB       int    `json:"memory_mb"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// PollConfig drives the result poll loop.
type PollConfig struct {
	Interval time.Duration `json:"interval"`
	// Grace extends the overall deadline past the task timeout to absorb
	// store propagation delay after remote completion.
	Grace time.Duration `json:"grace"`
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	AWS       AWSConfig            `json:"aws"`
	Store     objstore.Config      `json:"store"`
	Lambda    LambdaConfig         `json:"lambda"`
	Poll      PollConfig           `json:"poll"`
	Telemetry observability.Config `json:"telemetry"`

	// Invoker selects the dispatch backend: "lambda" or "loopback".
	Invoker string `json:"invoker"`

	// Cleanup deletes all invocation keys once a terminal state is reached.
	Cleanup bool `json:"cleanup"`

	// MaxConcurrent bounds simultaneously in-flight dispatches.
	MaxConcurrent int `json:"max_concurrent"`

	LogLevel string `json:"log_level"`
}

// TaskTimeout returns the task execution ceiling as a duration.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Lambda.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: objstore.Config{
			Type:      "s3",
			RedisAddr: "localhost:6379",
		},
		Lambda: LambdaConfig{
			MemoryMB:       512,
			TimeoutSeconds: 60,
		},
		Poll: PollConfig{
			Interval: 5 * time.Second,
			Grace:    10 * time.Second,
		},
		Invoker:       "lambda",
		Cleanup:       true,
		MaxConcurrent: 32,
		LogLevel:      "info",
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("QUASAR_S3_BUCKET"); v != "" {
		cfg.Store.Bucket = v
	}
	if v := os.Getenv("QUASAR_STORE_TYPE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("QUASAR_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("QUASAR_FUNCTION_NAME"); v != "" {
		cfg.Lambda.FunctionName = v
	}
	if v := os.Getenv("QUASAR_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("QUASAR_AWS_PROFILE"); v != "" {
		cfg.AWS.Profile = v
	}
	if v := os.Getenv("QUASAR_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poll.Interval = d
		}
	}
	if v := os.Getenv("QUASAR_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Lambda.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("QUASAR_CLEANUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cleanup = b
		}
	}
	if v := os.Getenv("QUASAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate rejects configurations the backend would refuse at run time.
// Invalid values fail here, at construction, never mid-dispatch.
func (c *Config) Validate() error {
	if c.Lambda.TimeoutSeconds <= 0 || c.Lambda.TimeoutSeconds > MaxTimeoutSeconds {
		return fmt.Errorf("timeout %ds outside 1..%d", c.Lambda.TimeoutSeconds, MaxTimeoutSeconds)
	}
	if c.Lambda.MemoryMB < MinMemoryMB || c.Lambda.MemoryMB > MaxMemoryMB {
		return fmt.Errorf("memory %dMB outside %d..%d", c.Lambda.MemoryMB, MinMemoryMB, MaxMemoryMB)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Poll.Interval)
	}
	if c.Poll.Grace < 0 {
		return fmt.Errorf("poll grace must not be negative, got %v", c.Poll.Grace)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}

	switch c.Invoker {
	case "lambda":
		if c.Lambda.FunctionName == "" {
			return fmt.Errorf("lambda invoker requires function_name")
		}
	case "loopback":
	default:
		return fmt.Errorf("unknown invoker type: %s", c.Invoker)
	}

	switch c.Store.Type {
	case "s3":
		if c.Store.Bucket == "" {
			return fmt.Errorf("s3 store requires a bucket")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis store requires an address")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate %f outside 0..1", c.Telemetry.SampleRate)
	}
	return nil
}
