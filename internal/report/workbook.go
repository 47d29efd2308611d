package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "platereport/internal/errors"
	"platereport/internal/infrastructure"
	"platereport/pkg/contracts"
	"platereport/pkg/contracts/domain"
)

const tracerName = "platereport/report"

// Well is one analysed well as the workbook sees it
type Well struct {
	Recording *domain.WellRecording
	Filtered  domain.Waveform
	Outcome   Outcome
}

// Index is the well's position index on the plate
func (w Well) Index() int { return w.Recording.WellIndex }

// Name is the well's plate name, e.g. A1
func (w Well) Name() string { return w.Recording.WellName }

// Input is everything written to one workbook. Wells are in ascending index
// order and share one recording.
type Input struct {
	Plate               domain.Labware
	InterpolationPeriod int64
	Wells               []Well
}

// Options selects the optional stages and carries output metadata
type Options struct {
	ContinuousWaveforms bool
	WaveformCharts      bool
	TwitchCharts        bool
	SnapshotSeconds     int
	ChartsPerRow        int

	GeneratorVersion string
	CreatedAt        time.Time
	ReportID         string

	// Progress receives human readable status lines while writing
	Progress func(msg string)
	Logger   *slog.Logger
}

// DefaultOptions enables every stage
func DefaultOptions() Options {
	return Options{
		ContinuousWaveforms: true,
		WaveformCharts:      true,
		TwitchCharts:        true,
		SnapshotSeconds:     10,
		ChartsPerRow:        6,
		GeneratorVersion:    contracts.GetVersionString(),
	}
}

type writer struct {
	f      *excelize.File
	in     Input
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	grid    Grid
	columns map[int]Column
}

// Write lays out in as a workbook at path. The workbook is always closed;
// nothing is saved when any stage fails.
func Write(ctx context.Context, path string, in Input, opts Options) (err error) {
	if len(in.Wells) == 0 {
		return apperrors.ErrNoWells
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = time.Now().UTC()
	}
	if opts.ReportID == "" {
		opts.ReportID = uuid.New().String()
	}
	if opts.GeneratorVersion == "" {
		opts.GeneratorVersion = contracts.GetVersionString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &writer{
		f:       excelize.NewFile(),
		in:      in,
		opts:    opts,
		logger:  infrastructure.WithComponent(logger, "report"),
		tracer:  otel.Tracer(tracerName),
		columns: make(map[int]Column, len(in.Wells)),
	}
	defer func() {
		if cerr := w.f.Close(); cerr != nil && err == nil {
			err = apperrors.NewStorageError("close workbook", cerr)
		}
	}()

	ctx, span := w.tracer.Start(ctx, "report.Write", trace.WithAttributes(
		attribute.String("report.path", path),
		attribute.Int("report.wells", len(in.Wells)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := w.createSheets(); err != nil {
		return err
	}

	stages := []struct {
		name    string
		enabled bool
		run     func(context.Context) error
	}{
		{"metadata", true, w.writeMetadata},
		{"waveforms", opts.ContinuousWaveforms, w.writeWaveforms},
		{"waveform_charts", opts.ContinuousWaveforms && opts.WaveformCharts, w.writeWaveformCharts},
		{"aggregate_metrics", true, w.writeAggregate},
		{"per_twitch_metrics", true, w.writePerTwitch},
		{"twitch_charts", opts.TwitchCharts, w.writeTwitchCharts},
	}
	for _, stage := range stages {
		if !stage.enabled {
			w.logger.DebugContext(ctx, "stage skipped", slog.String("stage", stage.name))
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.runStage(ctx, stage.name, stage.run); err != nil {
			return err
		}
	}

	w.f.SetActiveSheet(0)
	w.progress(ctx, fmt.Sprintf("Saving workbook to %s", path))
	if err := w.f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("save workbook", err).WithContext("path", path)
	}
	return nil
}

func (w *writer) runStage(ctx context.Context, name string, run func(context.Context) error) error {
	ctx, span := w.tracer.Start(ctx, "report."+name)
	defer span.End()

	start := time.Now()
	if err := run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.logger.DebugContext(ctx, "stage complete",
		slog.String("stage", name),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (w *writer) createSheets() error {
	names := SheetNames()
	if err := w.f.SetSheetName(w.f.GetSheetName(0), names[0]); err != nil {
		return apperrors.NewStorageError("rename first sheet", err)
	}
	for _, name := range names[1:] {
		if _, err := w.f.NewSheet(name); err != nil {
			return apperrors.NewStorageError("create sheet "+name, err)
		}
	}
	return nil
}

func (w *writer) progress(ctx context.Context, msg string) {
	w.logger.InfoContext(ctx, msg)
	if w.opts.Progress != nil {
		w.opts.Progress(msg)
	}
}

func (w *writer) set(sheet string, row, col int, v interface{}) error {
	if err := w.f.SetCellValue(sheet, cellName(row, col), v); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s!%s", sheet, cellName(row, col)), err)
	}
	return nil
}

// setRow writes values rightwards from (row, col)
func (w *writer) setRow(sheet string, row, col int, values []interface{}) error {
	if err := w.f.SetSheetRow(sheet, cellName(row, col), &values); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s row %d", sheet, row+1), err)
	}
	return nil
}

func (w *writer) first() *domain.WellRecording {
	return w.in.Wells[0].Recording
}

func (w *writer) writeMetadata(_ context.Context) error {
	rec := w.first()

	formatVersion, err := rec.Lookup(domain.MetaFileFormatVersion)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeMetadata, "recording information", err)
	}

	type entry struct {
		label string
		value interface{}
	}
	device := []entry{
		{"File Format Version", formatVersion},
		{"Instrument Serial Number", rec.LookupOr(domain.MetaInstrumentSerial, apperrors.NotAvailable)},
		{"Software Release Version", rec.LookupOr(domain.MetaSoftwareRelease, apperrors.NotAvailable)},
		{"Software Build Number", rec.LookupOr(domain.MetaSoftwareBuild, apperrors.NotAvailable)},
	}
	if fw, err := rec.Lookup(domain.MetaFirmwareVersion); err == nil {
		device = append(device, entry{"Firmware Version (Main Controller)", fw})
	}

	blocks := []struct {
		row     int
		title   string
		entries []entry
	}{
		{metadataRecordingRow, "Recording Information:", []entry{
			{"Plate Barcode", rec.PlateBarcode},
			{"UTC Timestamp of Beginning of Recording", rec.RecordingStart.UTC().Format("2006-01-02 15:04:05")},
		}},
		{metadataDeviceRow, "Device Information:", device},
		{metadataOutputRow, "Output Format:", []entry{
			{"Generator Version", w.opts.GeneratorVersion},
			{"Workbook Format Version", contracts.WorkbookFormatVersion},
			{"File Creation Timestamp", w.opts.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
			{"Report ID", w.opts.ReportID},
		}},
	}

	for _, b := range blocks {
		if err := w.set(SheetMetadata, b.row, 0, b.title); err != nil {
			return err
		}
		for i, e := range b.entries {
			if err := w.setRow(SheetMetadata, b.row+1+i, metadataLabelCol, []interface{}{e.label, e.value}); err != nil {
				return err
			}
		}
	}

	for i, width := range metadataColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := w.f.SetColWidth(SheetMetadata, col, col, width); err != nil {
			return apperrors.NewStorageError("set metadata column width", err)
		}
	}
	return nil
}
