package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/platewise-ai/governor"
	"github.com/platewise-ai/governor/internal/calllog"
	"github.com/platewise-ai/governor/internal/logging"
	"github.com/platewise-ai/governor/internal/version"
	"github.com/platewise-ai/governor/recipes"
	"github.com/platewise-ai/governor/upstream/openai"
)

const cacheCleanupInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the governed recipe HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

			cfg := governor.Config{}
			if configPath != "" {
				loaded, err := governor.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = *loaded
			}
			if err := governor.ValidateConfig(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cfg.Server.Addr == "" {
				cfg.Server.Addr = ":8080"
			}

			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				return errors.New("OPENAI_API_KEY is required")
			}

			writer, err := newCallLogWriter(cfg.CallLog)
			if err != nil {
				return fmt.Errorf("call log: %w", err)
			}
			if closer, ok := writer.(*calllog.SQLWriter); ok {
				defer func() { _ = closer.Close() }()
			}

			reg := governor.NewRegistry(cfg)
			reg.AddHook(callLogHook(writer))

			ai := openai.New(apiKey, os.Getenv("OPENAI_BASE_URL"))
			if m := os.Getenv("RECIPE_TEXT_MODEL"); m != "" {
				ai.TextModel = m
			}
			if m := os.Getenv("RECIPE_IMAGE_MODEL"); m != "" {
				ai.ImageModel = m
			}
			if m := os.Getenv("RECIPE_VISION_MODEL"); m != "" {
				ai.VisionModel = m
			}

			svc, err := recipes.NewService(reg, ai)
			if err != nil {
				return fmt.Errorf("build service: %w", err)
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      newRouter(svc, reg, cfg.Server),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go sweepCaches(ctx, svc)

			go func() {
				<-ctx.Done()
				slog.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			slog.Info("recipegovd listening",
				"version", version.Short(),
				"addr", cfg.Server.Addr,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: %w", err)
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (.yaml, .yml, or .json)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func newCallLogWriter(cfg governor.CallLogConfig) (calllog.Writer, error) {
	switch cfg.Driver {
	case "", "none":
		return calllog.NoopWriter{}, nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "recipegovd.db"
		}
		return calllog.NewSQLiteWriter(dsn)
	case "postgres":
		return calllog.NewPostgresWriter(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

// callLogHook persists one audit entry per governed call. Writes run on
// the hook goroutine after the request resolves, so the request context
// is detached from cancellation.
func callLogHook(writer calllog.Writer) governor.HookFunc {
	return func(ctx context.Context, ev governor.Event) {
		entry := calllog.Entry{
			TraceID:      ev.TraceID,
			Upstream:     ev.Upstream,
			Operation:    ev.Operation,
			Outcome:      string(ev.Outcome),
			CacheHit:     ev.Outcome == governor.OutcomeHit,
			FallbackUsed: ev.Outcome == governor.OutcomeFallback,
			Attempts:     ev.Attempts,
			LatencyMs:    ev.Latency.Milliseconds(),
			CreatedAt:    time.Now().UTC(),
		}
		if ev.Outcome == governor.OutcomeFallback {
			entry.FailureKind = ev.FailureKind.String()
		}
		if err := writer.Write(context.WithoutCancel(ctx), entry); err != nil {
			logging.FromContext(ctx).Error("call log write failed", "error", err)
		}
	}
}

// sweepCaches evicts expired cache entries on a fixed interval until ctx
// is cancelled.
func sweepCaches(ctx context.Context, svc *recipes.Service) {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := svc.CleanupCaches(); removed > 0 {
				slog.Debug("cache sweep", "removed", removed)
			}
		}
	}
}
