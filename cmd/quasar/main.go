package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/taskspec"
	"github.com/oriys/quasar/pkg/executor"

	_ "github.com/oriys/quasar/examples/tasks"
)

var version = "dev"

var (
	configPath  string
	localMode   bool
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quasar",
		Short: "Quasar - dispatch workflow tasks to AWS Lambda",
		Long:  "Dispatches registered tasks to a serverless backend over an object store and polls for their outcome",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVar(&localMode, "local", false, "Run against an in-process store and handler")

	rootCmd.AddCommand(
		invokeCmd(),
		validateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if localMode {
		cfg.Store.Type = "memory"
		cfg.Invoker = "loopback"
	}
	return cfg, nil
}

func invokeCmd() *cobra.Command {
	var (
		specFile   string
		argsJSON   string
		kwargsJSON string
		dispatchID string
		taskID     string
	)

	cmd := &cobra.Command{
		Use:   "invoke [task]",
		Short: "Dispatch a registered task and wait for its outcome",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			task := ""
			var args []any
			var kwargs map[string]any

			if specFile != "" {
				spec, err := taskspec.Load(specFile)
				if err != nil {
					return err
				}
				task = spec.Task
				args = spec.Args
				kwargs = spec.Kwargs
				if spec.DispatchID != "" {
					dispatchID = spec.DispatchID
				}
				if spec.TaskID != "" {
					taskID = spec.TaskID
				}
			}
			if len(cmdArgs) == 1 {
				task = cmdArgs[0]
			}
			if task == "" {
				return fmt.Errorf("a task name or --spec file is required")
			}
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
					return fmt.Errorf("parse --args: %w", err)
				}
			}
			if kwargsJSON != "" {
				if err := json.Unmarshal([]byte(kwargsJSON), &kwargs); err != nil {
					return fmt.Errorf("parse --kwargs: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				go serveMetrics(metricsAddr)
			}

			exec, err := executor.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer exec.Close(context.Background())

			var opts []executor.DispatchOption
			if dispatchID != "" {
				opts = append(opts, executor.WithDispatchID(dispatchID))
			}
			if taskID != "" {
				opts = append(opts, executor.WithTaskID(taskID))
			}

			value, err := exec.Execute(ctx, task, args, kwargs, opts...)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return fmt.Errorf("render result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&specFile, "spec", "f", "", "YAML task spec file")
	cmd.Flags().StringVar(&argsJSON, "args", "", "Positional arguments as a JSON array")
	cmd.Flags().StringVar(&kwargsJSON, "kwargs", "", "Keyword arguments as a JSON object")
	cmd.Flags().StringVar(&dispatchID, "dispatch-id", "", "Workflow dispatch id (generated when empty)")
	cmd.Flags().StringVar(&taskID, "task-id", "", "Task id within the dispatch")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address while running")
	return cmd
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Op().Error("metrics listener failed", "addr", addr, "error", err)
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and report the effective values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("quasar", version)
		},
	}
}
