// Package cmd implements the roomwatch command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/roomwatch/internal/app"
	"github.com/JakeFAU/roomwatch/internal/config"
	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/logging"
	"github.com/JakeFAU/roomwatch/internal/pipeline"
)

// Exit codes observed by the scheduler that commits the history file.
const (
	ExitUnchanged = 0
	ExitFailure   = 1
	ExitChanged   = 10
	ExitCommitNow = 11
)

// Runner is what the command needs from the application. Tests swap it out
// through newApp.
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
	Close()
}

var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.New(ctx, cfg, logger)
}

type flags struct {
	configPath  string
	csvPath     string
	freshWindow int
	commitNow   bool
}

// newRootCmd builds the root command. The resulting exit code is written to
// exitCode once the command has run.
func newRootCmd(exitCode *int) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "roomwatch",
		Short: "Watch the WOKO Zurich room board and alert on new postings.",
		Long: `roomwatch scrapes the WOKO Zurich room board once, reconciles it with the
CSV history (marking vanished listings INACTIVE), rewrites the history only
when it changed, and sends an alert for every listing posted inside the
freshness window.

Exit codes: 0 no change, 10 history changed, 11 --commit-now, 1 failure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*exitCode = runOnce(cmd, f)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "optional YAML config file")
	cmd.Flags().StringVar(&f.csvPath, "csv", "woko_listings.csv", "history CSV path")
	cmd.Flags().IntVar(&f.freshWindow, "fresh-window", 5,
		"freshness window in minutes (TIME_WINDOW_MINUTES wins when set)")
	cmd.Flags().BoolVar(&f.commitNow, "commit-now", false, "exit with 11 to request an immediate commit")

	return cmd
}

func runOnce(cmd *cobra.Command, f flags) int {
	var opts []config.Option
	if cmd.Flags().Changed("csv") {
		opts = append(opts, config.WithStorePath(f.csvPath))
	}
	if cmd.Flags().Changed("fresh-window") {
		opts = append(opts, config.WithFreshWindow(f.freshWindow))
	}

	cfg, err := config.Load(f.configPath, opts...)
	if err != nil {
		logger, lerr := logging.New("info", false)
		if lerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "roomwatch: %v\n", err)
			return ExitFailure
		}
		defer logger.Sync() //nolint:errcheck // best-effort flush
		logFailure(logger, apperrors.Config("load config", err))
		return ExitFailure
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "roomwatch: %v\n", err)
		return ExitFailure
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	for _, w := range cfg.Warnings {
		logger.Warn("config override ignored", zap.String("detail", w))
	}

	ctx := cmd.Context()
	runner, err := newApp(ctx, cfg, logger)
	if err != nil {
		logFailure(logger, err)
		return ExitFailure
	}
	defer runner.Close()

	res, err := runner.Run(ctx)
	code := ExitCode(res, f.commitNow, err)
	if err != nil {
		logFailure(logger, err)
		return code
	}
	logger.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.Int("scraped", res.Scraped),
		zap.Bool("changed", res.Changed),
		zap.Int("fresh", len(res.Fresh)),
		zap.Int("alerts_sent", res.Dispatch.Sent),
		zap.Int("alerts_failed", res.Dispatch.Failed),
		zap.Int("exit_code", code),
	)
	return code
}

// ExitCode maps a run outcome onto the process exit code. Alert failures do
// not count as a failed run.
func ExitCode(res pipeline.Result, commitNow bool, err error) int {
	switch {
	case err != nil:
		return ExitFailure
	case commitNow:
		return ExitCommitNow
	case res.Changed:
		return ExitChanged
	default:
		return ExitUnchanged
	}
}

func logFailure(logger *zap.Logger, err error) {
	fields := []zap.Field{zap.Error(err)}
	if kind, ok := apperrors.KindOf(err); ok {
		fields = append(fields, zap.String("kind", string(kind)))
	}
	if stack := apperrors.StackOf(err); len(stack) > 0 {
		fields = append(fields, zap.ByteString("stack", stack))
	}
	logger.Error("run failed", fields...)
}

// execute runs the command with args and returns the exit code.
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	code := ExitUnchanged
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "roomwatch: %v\n", err)
		return ExitFailure
	}
	return code
}

// Execute runs the CLI against os.Args and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stderr)
}
