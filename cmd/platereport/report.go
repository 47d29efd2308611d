package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"platereport/internal/infrastructure"
	"platereport/internal/plate"
	"platereport/pkg/contracts/domain"
)

type reportFlags struct {
	outDir           string
	name             string
	filter           string
	noWaveforms      bool
	noWaveformCharts bool
	noTwitchCharts   bool
	csv              bool
}

func newReportCmd(a *app) *cobra.Command {
	var f reportFlags

	cmd := &cobra.Command{
		Use:   "report <zip|dir|file>...",
		Short: "Write the workbook for one plate recording",
		Long: `Loads a zip archive, a directory or a list of well files and writes
{barcode}-{recording start}.xlsx into the output directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReport(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.outDir, "out", "o", "", "output directory (default from config)")
	flags.StringVar(&f.name, "name", "", "workbook file name; .xlsx is appended when missing")
	flags.StringVar(&f.filter, "filter", "", "noise filter: none, bessel-lowpass-10, bessel-lowpass-30, butterworth-lowpass-30")
	flags.BoolVar(&f.noWaveforms, "no-waveforms", false, "skip the continuous waveform sheet and its charts")
	flags.BoolVar(&f.noWaveformCharts, "no-waveform-charts", false, "skip snapshot and full length waveform charts")
	flags.BoolVar(&f.noTwitchCharts, "no-twitch-charts", false, "skip twitch frequency and force-frequency charts")
	flags.BoolVar(&f.csv, "csv", false, "also write the continuous waveforms as CSV")
	return cmd
}

func (a *app) recordingOptions(cmd *cobra.Command, filter string) ([]plate.Option, error) {
	opts := []plate.Option{
		plate.WithLogger(a.logger),
		plate.WithMetrics(a.metrics),
		plate.WithParallelism(a.cfg.Report.Parallelism),
		plate.WithProgress(func(msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		}),
	}

	if filter == "" {
		filter = a.cfg.Report.NoiseFilter
	}
	if filter != "" {
		nf, err := domain.ParseNoiseFilter(filter)
		if err != nil {
			return nil, err
		}
		opts = append(opts, plate.WithPipelineConfig(domain.PipelineConfig{NoiseFilter: nf}))
	}
	return opts, nil
}

func (a *app) runReport(cmd *cobra.Command, args []string, f reportFlags) error {
	ctx := infrastructure.EnsureRunID(cmd.Context())

	opts, err := a.recordingOptions(cmd, f.filter)
	if err != nil {
		return err
	}
	rec, err := plate.Open(ctx, args, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			a.logger.WarnContext(ctx, "failed to clean up", slog.String("error", cerr.Error()))
		}
	}()

	out := f.outDir
	if out == "" {
		out = a.cfg.Report.OutputDir
	}

	rc := a.cfg.Report
	reportOpts := []plate.ReportOption{
		plate.WithSnapshotSeconds(rc.SnapshotSeconds),
		plate.WithChartsPerRow(rc.ChartsPerRow),
	}
	if f.name != "" {
		reportOpts = append(reportOpts, plate.WithFileName(f.name))
	}
	if f.noWaveforms || !rc.ContinuousWaveforms {
		reportOpts = append(reportOpts, plate.WithoutContinuousWaveforms())
	}
	if f.noWaveformCharts || !rc.WaveformCharts {
		reportOpts = append(reportOpts, plate.WithoutWaveformCharts())
	}
	if f.noTwitchCharts || !rc.TwitchCharts {
		reportOpts = append(reportOpts, plate.WithoutTwitchCharts())
	}

	path, err := rec.WriteReport(ctx, out, reportOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)

	if f.csv {
		csvPath, err := rec.WriteWaveformCSV(ctx, out)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), csvPath)
	}
	return nil
}
