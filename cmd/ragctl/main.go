package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/app"
	"github.com/kailas-cloud/pdfrag/internal/config"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/events"
	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
	"github.com/kailas-cloud/pdfrag/internal/transport/cli"
	"github.com/kailas-cloud/pdfrag/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	// CLI output goes to stdout; logs stay at warn unless overridden.
	level := cfg.Logging.Level
	if level == "" {
		level = "warn"
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	var a *app.App
	resolve := func(ctx context.Context) (*app.App, error) {
		if a != nil {
			return a, nil
		}
		built, err := app.New(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a = built
		return a, nil
	}
	defer func() {
		if a != nil {
			_ = a.Close()
		}
	}()

	svc := cli.Services{
		Ingester: func(ctx context.Context) (cli.Ingester, error) {
			built, err := resolve(ctx)
			if err != nil {
				return nil, err
			}
			return built.Ingest, nil
		},
		Asker: func(ctx context.Context) (cli.Asker, error) {
			built, err := resolve(ctx)
			if err != nil {
				return nil, err
			}
			return built.Chat, nil
		},
		Usage: func(ctx context.Context) (cli.UsageReporter, error) {
			built, err := resolve(ctx)
			if err != nil {
				return nil, err
			}
			return built.Usage, nil
		},
		DataDir: cfg.Ingest.DataDir,
		Owner:   cfg.Ingest.DefaultOwner,
		Version: version.String(),
	}
	if cfg.Events.NATSURL != "" {
		svc.Watch = func(ctx context.Context, handler func(context.Context, domain.DocumentEvent)) error {
			return events.Watch(ctx, cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger, handler)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(svc)
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Debug("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
