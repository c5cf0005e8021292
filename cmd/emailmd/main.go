package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/config"
	"github.com/TroyWilliams3687/email-to-markdown/internal/app/forwarder"
	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
	"github.com/TroyWilliams3687/email-to-markdown/internal/app/retriever"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
)

var errUsage = errors.New("usage: emailmd [flags] <input> <output>")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintf(os.Stderr, "emailmd: %s\n", err)
			cancel()
			//nolint:gocritic
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("emailmd", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		configFilepath = fs.String("config", "", "Filepath to configuration file. Defaults are used when empty")
		envFilepath    = fs.String("env-file", "./.env", "Filepath to environment variables file. Default is '.env'")
		recursive      = fs.Bool("recursive", false, "Descend into subdirectories of the input directory")
		fullHeader     = fs.Bool("full-header", false, "Render every header, not only the canonical ones")
		logLevel       = fs.String("log-level", "", "Logging level: debug, info, warn or error")
	)
	fs.BoolVar(recursive, "r", false, "Shorthand for -recursive")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), errUsage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	input, output := fs.Arg(0), fs.Arg(1)

	cfg, err := config.LoadConfig(*configFilepath, *envFilepath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "r", "recursive":
			cfg.Recursive = *recursive
		case "full-header":
			cfg.FullHeader = *fullHeader
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	log := slog.New(logger.NewContextHandler(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       logger.ParseLevel(cfg.LogLevel),
		ReplaceAttr: logger.ReplaceAttr,
	})))

	runner, err := newRunner(cfg, output, log)
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx, input)
	if err != nil {
		return err
	}

	failed := make([]string, 0, summary.Failed)
	summary.Outcomes.Range(func(path string, outcome mailer.Outcome) bool {
		if outcome.Status == mailer.StatusFailed {
			failed = append(failed, path)
		}
		return true
	})
	if len(failed) > 0 {
		log.WarnContext(ctx, "files not converted",
			slog.String("run_id", summary.RunID),
			slog.Any("paths", failed),
		)
	}

	log.DebugContext(ctx, "run finished",
		slog.String("run_id", summary.RunID),
		slog.Int("total", summary.Total()),
	)

	return nil
}

func newRunner(cfg config.Config, output string, log *slog.Logger) (mailer.TaskRunner, error) {
	platform, err := cfg.Platform()
	if err != nil {
		return mailer.TaskRunner{}, err
	}
	htmlMode, err := cfg.HTMLMode()
	if err != nil {
		return mailer.TaskRunner{}, err
	}
	maxSize, err := cfg.MaxAttachmentBytes()
	if err != nil {
		return mailer.TaskRunner{}, err
	}

	renderer := forwarder.NewRenderer()
	if cfg.Template != "" {
		renderer, err = forwarder.NewRendererFromFile(cfg.Template)
		if err != nil {
			return mailer.TaskRunner{}, fmt.Errorf("load template: %w", err)
		}
	}

	registry := retriever.NewDefaultRegistry(retriever.Options{
		Platform:          platform,
		MaxAttachmentSize: maxSize,
		HTMLMode:          htmlMode,
		Sink:              logger.NewSlogSink(log.With(slog.String("module", "retriever"))),
	})

	disk := forwarder.NewDiskForwarder(
		output,
		renderer,
		forwarder.DiskOptions{
			Platform:         platform,
			AbsentValue:      cfg.AbsentValue,
			FullHeader:       cfg.FullHeader,
			UniqueFolders:    cfg.UniqueFolders,
			FolderRetryLimit: cfg.FolderRetryLimit,
			FileRetryLimit:   cfg.FileRetryLimit,
		},
		logger.NewSlogSink(log.With(slog.String("module", "forwarder"))),
	)

	return mailer.NewRunner(
		cfg.Recursive,
		registry,
		disk,
		logger.NewSlogSink(log.With(slog.String("module", "runner"))),
	), nil
}
