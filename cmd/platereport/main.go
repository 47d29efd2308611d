package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"platereport/internal/config"
	"platereport/internal/infrastructure"
)

// app holds what the persistent hooks set up for every subcommand
type app struct {
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *slog.Logger
	closeLog  func() error
	providers *infrastructure.OTelProviders
	metrics   *infrastructure.ReportMetrics
}

// newRootCmd returns the command tree and the app its hooks fill in. Run it
// through execute so telemetry and the log file are released on failure too.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Build xlsx reports from multi-well plate recordings",
		Long: `platereport reads the well files of one plate recording, filters each
well, detects twitches and writes a workbook with the continuous waveforms,
per-twitch metrics, aggregate statistics and charts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: platereport.yaml in the usual locations)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newReportCmd(a),
		newSimulateCmd(a),
		newInspectCmd(a),
		newVersionCmd(),
	)
	return root, a
}

// execute runs root and then shuts down whatever setup started, whether or
// not the command failed. Cobra skips post-run hooks after an error.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	err := root.ExecuteContext(ctx)
	// a cancelled run still flushes traces and writes the metrics textfile
	return errors.Join(err, a.shutdown(context.WithoutCancel(ctx)))
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	a.logger, a.closeLog, err = infrastructure.InitializeLogger(a.cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.providers, err = infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(a.cfg.Telemetry), a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.metrics, err = infrastructure.CreateReportMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create report metrics: %w", err)
	}

	a.logger.DebugContext(cmd.Context(), "command starting",
		slog.String("command", cmd.CommandPath()),
		slog.String("output_dir", a.cfg.Report.OutputDir))
	return nil
}

// shutdown releases telemetry and the log file; later calls do nothing
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if a.providers != nil {
		errs = append(errs, a.providers.Shutdown(ctx))
		a.providers = nil
	}
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
		a.closeLog = nil
	}
	return errors.Join(errs...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	if err := execute(ctx, root, a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
