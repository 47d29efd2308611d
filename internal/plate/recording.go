// Package plate assembles the wells of one plate recording and writes its
// report.
package plate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "platereport/internal/errors"
	"platereport/internal/files"
	"platereport/internal/infrastructure"
	"platereport/internal/waveform"
	"platereport/internal/wellfile"
	"platereport/pkg/contracts/domain"
)

const loadingStep = "Loading tissue and reference data..."

// Recording is the set of wells recorded from one plate. It owns the well
// data, the analysis pipelines and any scratch directory holding extracted
// archive contents.
type Recording struct {
	plate       domain.Labware
	wells       map[int]*domain.WellRecording
	indices     []int
	template    *domain.PipelineConfig
	factory     waveform.Factory
	parallelism int
	logger      *slog.Logger
	progress    ProgressFunc
	metrics     *infrastructure.ReportMetrics
	files       *files.Manager

	mu        sync.Mutex
	pipelines map[int]waveform.Pipeline
	closed    bool
}

// Option configures a Recording
type Option func(*Recording)

// WithPipelineConfig replaces the configuration inferred from the first well
func WithPipelineConfig(cfg domain.PipelineConfig) Option {
	return func(r *Recording) {
		r.template = &cfg
	}
}

// WithPipelineFactory swaps the analysis pipeline used for every well
func WithPipelineFactory(f waveform.Factory) Option {
	return func(r *Recording) {
		r.factory = f
	}
}

// WithParallelism bounds how many wells are analysed at once. Zero or less
// analyses all wells concurrently.
func WithParallelism(n int) Option {
	return func(r *Recording) {
		r.parallelism = n
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Recording) {
		r.logger = l
	}
}

// WithProgress receives loading and writing status lines
func WithProgress(fn ProgressFunc) Option {
	return func(r *Recording) {
		r.progress = fn
	}
}

// WithMetrics records counters on the given instruments
func WithMetrics(m *infrastructure.ReportMetrics) Option {
	return func(r *Recording) {
		r.metrics = m
	}
}

// WithScratchDir sets where archives are extracted
func WithScratchDir(dir string) Option {
	return func(r *Recording) {
		r.files = files.NewManager(dir)
	}
}

func newRecording(opts []Option) *Recording {
	r := &Recording{
		plate:   domain.TwentyFourWellPlate(),
		wells:   make(map[int]*domain.WellRecording),
		factory: waveform.NewPipeline,
		files:   files.NewManager(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = infrastructure.WithComponent(r.logger, "plate")
	return r
}

// New loads the given well files
func New(ctx context.Context, paths []string, opts ...Option) (*Recording, error) {
	r := newRecording(opts)
	if err := r.load(ctx, paths); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// FromDirectory loads every well file below dir, including nested folders
func FromDirectory(ctx context.Context, dir string, opts ...Option) (*Recording, error) {
	found, err := files.NewDiscovery("").FindWellFiles(dir)
	if err != nil {
		return nil, apperrors.NewStorageError("scan directory", err).WithContext("path", dir)
	}
	return New(ctx, files.Paths(found), opts...)
}

// FromArchive extracts a zip archive to a scratch directory and loads the
// well files inside it. The directory is removed by Close.
func FromArchive(ctx context.Context, archive string, opts ...Option) (*Recording, error) {
	r := newRecording(opts)
	dir, err := r.files.ScratchDir("platereport-*")
	if err != nil {
		return nil, apperrors.NewStorageError("create scratch directory", err)
	}
	found, err := files.ExtractWellFiles(archive, dir)
	if err != nil {
		_ = r.Close()
		return nil, apperrors.NewStorageError("extract archive", err).WithContext("path", archive)
	}
	if err := r.load(ctx, files.Paths(found)); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Open loads a zip archive, a directory or a list of well files
func Open(ctx context.Context, paths []string, opts ...Option) (*Recording, error) {
	if len(paths) == 1 {
		switch {
		case files.IsArchive(paths[0]):
			return FromArchive(ctx, paths[0], opts...)
		case files.IsDirectory(paths[0]):
			return FromDirectory(ctx, paths[0], opts...)
		}
	}
	return New(ctx, paths, opts...)
}

func (r *Recording) load(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return apperrors.ErrNoWells
	}

	tracker := NewProgressTracker(loadingStep, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := wellfile.Open(path)
		if err != nil {
			return err
		}
		rec, err := src.Read()
		if errors.Is(err, apperrors.ErrNotWellFile) {
			r.logger.WarnContext(ctx, "skipping workbook without well metadata", slog.String("path", path))
			tracker.Skip()
			continue
		}
		if err != nil {
			return err
		}
		if _, err := r.plate.WellName(rec.WellIndex); err != nil {
			return apperrors.NewAppValidationError(err.Error()).WithContext("path", path)
		}
		if prev, ok := r.wells[rec.WellIndex]; ok {
			return apperrors.NewAppError(apperrors.ErrTypeValidation,
				fmt.Sprintf("well %s appears twice", rec.WellName), apperrors.ErrDuplicateWell).
				WithContext("path", path).
				WithContext("previous_barcode", prev.PlateBarcode)
		}
		if len(r.wells) > 0 {
			if first := r.wells[r.indices[0]]; first.PlateBarcode != rec.PlateBarcode {
				r.logger.WarnContext(ctx, "well files from different plates",
					slog.String("expected", first.PlateBarcode),
					slog.String("barcode", rec.PlateBarcode),
					slog.String("path", path))
			}
		}

		r.wells[rec.WellIndex] = rec
		r.indices = append(r.indices, rec.WellIndex)
		r.emit(ctx, tracker.Increment(rec.WellName))

		if r.metrics != nil {
			r.metrics.WellsLoaded.Add(ctx, 1, metric.WithAttributes(
				attribute.String("well.format", string(src.Kind()))))
		}
	}
	loaded, total, _, _ := tracker.GetProgress()
	r.logger.InfoContext(ctx, "wells loaded",
		slog.Int("wells", loaded),
		slog.Int("skipped", len(paths)-total),
		slog.Bool("complete", tracker.IsComplete()),
		slog.Duration("elapsed", tracker.GetElapsedTime()))
	if len(r.indices) == 0 {
		return apperrors.ErrNoWells
	}
	sort.Ints(r.indices)
	return nil
}

func (r *Recording) emit(ctx context.Context, msg string) {
	r.logger.InfoContext(ctx, msg)
	if r.progress != nil {
		r.progress(msg)
	}
}

// WellIndices returns the plate positions of the loaded wells, ascending
func (r *Recording) WellIndices() []int {
	return append([]int(nil), r.indices...)
}

// Well returns the recording of one well
func (r *Recording) Well(index int) (*domain.WellRecording, error) {
	rec, ok := r.wells[index]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("well %d", index))
	}
	return rec, nil
}

// ReferenceWaveform returns a copy of the raw reference readings of a well
func (r *Recording) ReferenceWaveform(index int) (domain.Waveform, error) {
	rec, err := r.Well(index)
	if err != nil {
		return domain.Waveform{}, err
	}
	return rec.Reference.Clone(), nil
}

// Barcode is the plate barcode of the first well
func (r *Recording) Barcode() string {
	return r.wells[r.indices[0]].PlateBarcode
}

// PipelineTemplate returns the configuration every well is analysed with:
// the explicit one, or the default for the first well's sampling period.
// An explicit configuration without a sampling period takes the first
// well's.
func (r *Recording) PipelineTemplate() (domain.PipelineConfig, error) {
	period := r.wells[r.indices[0]].TissueSamplingPeriod
	if r.template != nil {
		cfg := *r.template
		if cfg.TissueSamplingPeriod == 0 {
			cfg.TissueSamplingPeriod = period
		}
		return cfg, nil
	}
	cfg, ok := domain.DefaultPipelineConfig(period)
	if !ok {
		return domain.PipelineConfig{}, apperrors.NewConfigError(
			fmt.Sprintf("no default pipeline for sampling period %d µs", period), nil)
	}
	return cfg, nil
}

// Pipelines builds one loaded pipeline per well on first use and returns
// the same map on every later call
func (r *Recording) Pipelines() (map[int]waveform.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensurePipelinesLocked()
}

func (r *Recording) ensurePipelinesLocked() (map[int]waveform.Pipeline, error) {
	if r.closed {
		return nil, apperrors.ErrClosed
	}
	if r.pipelines != nil {
		return r.pipelines, nil
	}

	cfg, err := r.PipelineTemplate()
	if err != nil {
		return nil, err
	}
	pipelines := make(map[int]waveform.Pipeline, len(r.indices))
	for _, idx := range r.indices {
		rec := r.wells[idx]
		p := r.factory(cfg)
		if err := p.LoadRawData(rec.OrientedTissue(), rec.OrientedReference()); err != nil {
			return nil, fmt.Errorf("load well %s: %w", rec.WellName, err)
		}
		pipelines[idx] = p
	}
	r.pipelines = pipelines
	return pipelines, nil
}

// Close releases extracted files. Later report calls fail with ErrClosed.
func (r *Recording) Close() error {
	r.mu.Lock()
	r.closed = true
	r.pipelines = nil
	r.mu.Unlock()

	if err := r.files.Cleanup(); err != nil {
		return apperrors.NewStorageError("remove scratch directory", err)
	}
	return nil
}
