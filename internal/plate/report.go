package plate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "platereport/internal/errors"
	"platereport/internal/exporter"
	"platereport/internal/files"
	"platereport/internal/infrastructure"
	"platereport/internal/report"
	"platereport/pkg/contracts/domain"
)

const (
	tracerName = "platereport/plate"

	reportExt      = ".xlsx"
	fileTimeLayout = "2006-01-02-15-04-05"
)

// ReportOption adjusts a single WriteReport call
type ReportOption func(*reportSettings)

type reportSettings struct {
	fileName string
	opts     report.Options
}

// WithFileName names the workbook; ".xlsx" is appended when missing
func WithFileName(name string) ReportOption {
	return func(s *reportSettings) { s.fileName = name }
}

// WithoutContinuousWaveforms leaves the waveform sheet and its charts empty
func WithoutContinuousWaveforms() ReportOption {
	return func(s *reportSettings) { s.opts.ContinuousWaveforms = false }
}

// WithoutWaveformCharts skips the snapshot and full length charts
func WithoutWaveformCharts() ReportOption {
	return func(s *reportSettings) { s.opts.WaveformCharts = false }
}

// WithoutTwitchCharts skips the frequency and force-frequency charts
func WithoutTwitchCharts() ReportOption {
	return func(s *reportSettings) { s.opts.TwitchCharts = false }
}

// WithSnapshotSeconds sets how much of each waveform the snapshot shows
func WithSnapshotSeconds(n int) ReportOption {
	return func(s *reportSettings) { s.opts.SnapshotSeconds = n }
}

// WithChartsPerRow sets how many tiled charts share one row
func WithChartsPerRow(n int) ReportOption {
	return func(s *reportSettings) { s.opts.ChartsPerRow = n }
}

// DefaultFileName is "{barcode}-{recording start}.xlsx"
func DefaultFileName(barcode string, start time.Time) string {
	return fmt.Sprintf("%s-%s%s", barcode, start.UTC().Format(fileTimeLayout), reportExt)
}

func withExtension(name string) string {
	if strings.EqualFold(filepath.Ext(name), reportExt) {
		return name
	}
	return name + reportExt
}

func (r *Recording) tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// analyse runs every pipeline, at most parallelism at a time, and returns
// the wells in index order. Detection failures stay with their well.
func (r *Recording) analyse(ctx context.Context) ([]report.Well, error) {
	ctx, span := r.tracer().Start(ctx, "plate.analyse")
	defer span.End()

	r.mu.Lock()
	pipelines, err := r.ensurePipelinesLocked()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	wells := make([]report.Well, len(r.indices))
	g, gctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for i, idx := range r.indices {
		i := i
		rec := r.wells[idx]
		p := pipelines[idx]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			filtered, err := p.FilteredWaveform()
			if err != nil {
				return fmt.Errorf("filter well %s: %w", rec.WellName, err)
			}
			m, err := p.TwitchMetrics()
			if apperrors.IsDetectionError(err) {
				err = apperrors.NewDetectionError(err, rec.WellName)
			}
			outcome, err := report.NewOutcome(m, err)
			if err != nil {
				return fmt.Errorf("analyse well %s: %w", rec.WellName, err)
			}
			wells[i] = report.Well{Recording: rec, Filtered: filtered, Outcome: outcome}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, w := range wells {
		switch o := w.Outcome.(type) {
		case report.MetricsReady:
			if r.metrics != nil {
				r.metrics.TwitchesCounted.Add(ctx, int64(o.Metrics.Count()))
			}
		case report.MetricsUnavailable:
			r.logger.WarnContext(infrastructure.WithWell(ctx, w.Name()), "twitch detection failed",
				slog.String("error", o.Err.Error()))
			if r.metrics != nil {
				r.metrics.WellsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("well", w.Name())))
			}
		}
	}
	return wells, nil
}

func (r *Recording) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return apperrors.ErrClosed
	}
	return nil
}

// WriteReport analyses every well and writes the workbook into dir. It
// returns the path of the written file.
func (r *Recording) WriteReport(ctx context.Context, dir string, opts ...ReportOption) (path string, err error) {
	if err := r.checkOpen(); err != nil {
		return "", err
	}
	ctx = infrastructure.EnsureRunID(ctx)
	start := time.Now()
	first := r.wells[r.indices[0]]

	settings := reportSettings{opts: report.DefaultOptions()}
	for _, opt := range opts {
		opt(&settings)
	}
	name := DefaultFileName(first.PlateBarcode, first.RecordingStart)
	if settings.fileName != "" {
		name = withExtension(settings.fileName)
	}
	path = filepath.Join(dir, name)

	ctx, span := r.tracer().Start(ctx, "plate.WriteReport", trace.WithAttributes(
		attribute.String("plate.barcode", first.PlateBarcode),
		attribute.Int("plate.wells", len(r.indices)),
		attribute.String("report.path", path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.metrics.RecordReport(ctx, first.PlateBarcode, time.Since(start), err)
	}()

	if err := files.EnsureDirectory(dir); err != nil {
		return "", apperrors.NewStorageError("create output directory", err).WithContext("path", dir)
	}

	wells, err := r.analyse(ctx)
	if err != nil {
		return "", err
	}

	cfg, err := r.PipelineTemplate()
	if err != nil {
		return "", err
	}
	settings.opts.Logger = r.logger
	settings.opts.Progress = r.progress
	input := report.Input{
		Plate:               r.plate,
		InterpolationPeriod: domain.InterpolationPeriod(cfg.TissueSamplingPeriod),
		Wells:               wells,
	}
	if err := report.Write(ctx, path, input, settings.opts); err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "report written",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return path, nil
}

// waveformTable is the resampled filtered waveform of every loaded well
type waveformTable struct {
	grid    report.Grid
	names   []string
	columns []report.Column
}

func (t waveformTable) Header() []string {
	return append([]string{"Time (seconds)"}, t.names...)
}

func (t waveformTable) Len() int { return t.grid.Len() }

func (t waveformTable) Row(i int) []string {
	row := make([]string, 1+len(t.columns))
	row[0] = exporter.FormatFloat(t.grid.Seconds(i))
	for j, c := range t.columns {
		if c.Has(i) {
			row[1+j] = exporter.FormatFloat(c.At(i))
		}
	}
	return row
}

// WriteWaveformCSV writes the continuous waveforms on the report's time
// grid as CSV into dir and returns the file's path
func (r *Recording) WriteWaveformCSV(ctx context.Context, dir string) (string, error) {
	if err := r.checkOpen(); err != nil {
		return "", err
	}
	ctx = infrastructure.EnsureRunID(ctx)
	ctx, span := r.tracer().Start(ctx, "plate.WriteWaveformCSV")
	defer span.End()

	wells, err := r.analyse(ctx)
	if err != nil {
		return "", err
	}
	cfg, err := r.PipelineTemplate()
	if err != nil {
		return "", err
	}

	waveforms := make([]domain.Waveform, len(wells))
	for i, w := range wells {
		waveforms[i] = w.Filtered
	}
	grid, err := report.GridFor(domain.InterpolationPeriod(cfg.TissueSamplingPeriod), waveforms...)
	if err != nil {
		return "", err
	}

	table := waveformTable{grid: grid}
	for _, w := range wells {
		col, err := grid.Interpolate(w.Name(), w.Filtered)
		if err != nil {
			return "", err
		}
		table.names = append(table.names, w.Name())
		table.columns = append(table.columns, col)
	}

	first := wells[0].Recording
	name := strings.TrimSuffix(DefaultFileName(first.PlateBarcode, first.RecordingStart), reportExt) + "-waveforms.csv"
	path, err := exporter.NewCSVWriter(dir).WithLogger(r.logger).WriteTable(name, table)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return "", err
	}
	return path, nil
}
