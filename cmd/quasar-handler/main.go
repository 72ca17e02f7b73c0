// The Lambda entrypoint for the remote side of the dispatch protocol.
// Deployments bake their own task package into this binary; the examples
// package stands in for it here.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/pkg/handler"
	"github.com/oriys/quasar/pkg/objstore"

	_ "github.com/oriys/quasar/examples/tasks"
)

func main() {
	// CloudWatch ingests one JSON object per line.
	logging.SetLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.Level(),
	})))

	lambda.Start(func(ctx context.Context, event handler.Event) error {
		store, err := storeFor(ctx, &event)
		if err != nil {
			return err
		}
		return handler.New(store).Handle(ctx, &event)
	})
}

// storeFor resolves the object store for one event. The event's bucket wins;
// QUASAR_* variables cover redis-backed local stacks.
func storeFor(ctx context.Context, event *handler.Event) (objstore.Store, error) {
	cfg := objstore.Config{Type: "s3", Bucket: event.Bucket}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv("QUASAR_S3_BUCKET")
	}
	if t := os.Getenv("QUASAR_STORE_TYPE"); t != "" && event.Bucket == "" {
		cfg.Type = t
		cfg.RedisAddr = os.Getenv("QUASAR_REDIS_ADDR")
	}
	return objstore.New(ctx, cfg)
}
