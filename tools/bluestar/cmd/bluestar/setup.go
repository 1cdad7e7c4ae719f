package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/domini04/bluestar/pkg/config"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/metrics/prometheus"
	"github.com/domini04/bluestar/runtime/telemetry"
	"github.com/domini04/bluestar/runtime/version"
	"github.com/domini04/bluestar/sdk"
)

const shutdownTimeout = 5 * time.Second

// loadConfig reads the environment file and the manifest named by --config,
// then overlays the flags the user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var envFiles []string
	if f, _ := cmd.Flags().GetString(flagEnvFile); f != "" {
		envFiles = append(envFiles, f)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("load environment file: %w", err)
	}

	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(v); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is the process-level plumbing around an engine.
type session struct {
	cfg      *config.Config
	log      *slog.Logger
	engine   *sdk.Engine
	console  *Console
	cleanups []func(context.Context) error
}

// openSession configures logging, tracing and metrics, then builds the
// engine. When interactive, a Console answers the human checkpoints.
func openSession(ctx context.Context, cmd *cobra.Command, interactive bool) (context.Context, *session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return ctx, nil, err
	}
	s := &session{cfg: cfg}
	s.log = logger.Configure(logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		CommonFields: cfg.Logging.CommonFields,
	})
	s.log.DebugContext(ctx, "starting", version.Get().LogAttrs()...)
	for _, w := range cfg.Warnings() {
		s.log.WarnContext(ctx, w)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return ctx, nil, fmt.Errorf("set up tracing: %w", err)
	}
	s.cleanups = append(s.cleanups, shutdownTracing)
	ctx = telemetry.ContextFromEnv(ctx)

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		exp := prometheus.NewExporter(addr)
		if err := exp.Start(ctx); err != nil {
			s.close()
			return ctx, nil, fmt.Errorf("start metrics endpoint: %w", err)
		}
		s.log.InfoContext(ctx, "serving metrics", "addr", exp.Addr())
		s.cleanups = append(s.cleanups, exp.Shutdown)
	}

	opts := []sdk.Option{sdk.WithConfig(cfg), sdk.WithLogger(s.log)}
	if interactive {
		s.console = NewConsole(os.Stdin, cmd.OutOrStdout(), terminalWidth(os.Stdout))
		opts = append(opts, sdk.WithReviewer(s.console), sdk.WithChooser(s.console))
	}
	eng, err := sdk.New(ctx, opts...)
	if err != nil {
		s.close()
		return ctx, nil, err
	}
	s.engine = eng
	s.cleanups = append(s.cleanups, func(context.Context) error { return eng.Close() })
	return ctx, s, nil
}

// close runs the cleanups in reverse order on a fresh context, so an
// interrupted run still flushes its spans.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, s.cleanups[i](ctx))
	}
	if err := errors.Join(errs...); err != nil && s.log != nil {
		s.log.Warn("shutdown incomplete", "error", err)
	}
	s.cleanups = nil
}

// interactive reports whether prompts can be shown: stdin is a terminal
// and the user did not opt out.
func interactive(cmd *cobra.Command) bool {
	if off, _ := cmd.Flags().GetBool(flagNonInteractive); off {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func terminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return min(w, maxWidth)
}
