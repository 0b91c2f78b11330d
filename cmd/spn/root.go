package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/samvad-hq/samvad-page-archiver/internal/app"
	"github.com/samvad-hq/samvad-page-archiver/internal/config"
	"github.com/samvad-hq/samvad-page-archiver/internal/logger"
	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	timeout time.Duration
	verbose bool
}

// clientFactory builds the API client; tests swap it for one pointed at a fake server.
type clientFactory func(opts *rootOptions) (apiClient, error)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultClientFactory)
}

func newRootCmdWith(factory clientFactory) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "spn",
		Short: "Save pages to the Wayback Machine and inspect capture jobs",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.CompletionOptions.HiddenDefaultCmd = true

	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-call timeout (defaults to SPN_TIMEOUT_SECONDS)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log request outcomes to stderr")

	root.AddCommand(newUserCmd(opts, factory))
	root.AddCommand(newSystemCmd(opts, factory))
	root.AddCommand(newCaptureCmd(opts, factory))
	root.AddCommand(newStatusCmd(opts, factory))
	return root
}

func defaultClientFactory(opts *rootOptions) (apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	zl := zap.NewNop()
	if opts.verbose {
		// production config writes JSON to stderr, keeping stdout for results
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(logger.ParseLevel("debug"))
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if zl, err = zcfg.Build(); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	client, err := app.NewSPNClient(cfg, zl)
	if err != nil {
		return nil, err
	}
	if opts.timeout > 0 {
		client.SetTimeout(opts.timeout)
	}
	return client, nil
}

// apiClient is the part of *spn.Client the commands call.
type apiClient interface {
	RequestCapture(ctx context.Context, target string, opts spn.CaptureOptions) (spn.CaptureResponse, error)
	CaptureStatus(ctx context.Context, jobID string) (spn.CaptureStatus, error)
	UserStatus(ctx context.Context) (spn.UserStatus, error)
	SystemStatus(ctx context.Context) (spn.SystemStatus, error)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
