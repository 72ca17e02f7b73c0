// Package objstore is the transport surface between the dispatching process
// and the remote handler. Both sides address the store by exact key only;
// keys are namespaced per invocation so concurrent dispatches never contend.
package objstore

import (
	"context"
	"fmt"
)

// Store is the minimal object-store capability the executor needs.
//
// TryGet is non-blocking per call and reports a missing key as found=false
// rather than an error; the caller drives the poll cadence. A non-nil error
// from TryGet means the existence check itself failed (network, throttling)
// and may be retried on the next poll cycle.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	TryGet(ctx context.Context, key string) (data []byte, found bool, err error)
	Delete(ctx context.Context, key string) error
}

// Keys holds the three per-invocation object keys. All three are derived
// deterministically from the invocation id, so a retried dispatch of the same
// invocation lands on the same keys.
type Keys struct {
	Input     string
	Result    string
	Exception string
}

// KeysFor derives the key set for one invocation id.
func KeysFor(invocationID string) Keys {
	return Keys{
		Input:     "func-" + invocationID + ".payload",
		Result:    "result-" + invocationID + ".payload",
		Exception: "exception-" + invocationID + ".json",
	}
}

// Config selects and parameterizes a store backend.
type Config struct {
	// Type is one of "s3", "redis", "memory".
	Type string `json:"type"`

	// Bucket is the S3 bucket name (s3 type only).
	Bucket string `json:"bucket"`

	// Redis connection settings (redis type only).
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
}

// New builds a store backend from config.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Store(ctx, cfg.Bucket)
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
