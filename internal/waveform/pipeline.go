// Package waveform turns raw well readings into a filtered trace and
// per-twitch measurements.
package waveform

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/interp"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

// Pipeline analyses one well. Results are computed on first request and
// cached for the life of the pipeline.
type Pipeline interface {
	Config() domain.PipelineConfig
	LoadRawData(tissue, reference domain.Waveform) error
	FilteredWaveform() (domain.Waveform, error)
	TwitchMetrics() (domain.TwitchMetrics, error)
}

// Factory builds a pipeline from a configuration
type Factory func(cfg domain.PipelineConfig) Pipeline

// NewPipeline returns the standard filter and peak detection pipeline
func NewPipeline(cfg domain.PipelineConfig) Pipeline {
	return &pipeline{cfg: cfg}
}

type pipeline struct {
	cfg domain.PipelineConfig

	mu        sync.Mutex
	tissue    domain.Waveform
	reference domain.Waveform
	loaded    bool

	filtered    *domain.Waveform
	metrics     *domain.TwitchMetrics
	metricsErr  error
	filteredErr error
}

func (p *pipeline) Config() domain.PipelineConfig {
	return p.cfg
}

// LoadRawData stores copies of the readings and discards cached results
func (p *pipeline) LoadRawData(tissue, reference domain.Waveform) error {
	if len(tissue.Times) != len(tissue.Values) {
		return fmt.Errorf("tissue has %d times and %d values", len(tissue.Times), len(tissue.Values))
	}
	if len(reference.Times) != len(reference.Values) {
		return fmt.Errorf("reference has %d times and %d values", len(reference.Times), len(reference.Values))
	}
	if !increasing(tissue.Times) {
		return apperrors.NewParsingError("tissue times not strictly increasing", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tissue = tissue.Clone()
	p.reference = reference.Clone()
	p.loaded = true
	p.filtered, p.filteredErr = nil, nil
	p.metrics, p.metricsErr = nil, nil
	return nil
}

func (p *pipeline) FilteredWaveform() (domain.Waveform, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filteredLocked()
}

func (p *pipeline) filteredLocked() (domain.Waveform, error) {
	if !p.loaded {
		return domain.Waveform{}, fmt.Errorf("raw data not loaded")
	}
	if p.filtered != nil || p.filteredErr != nil {
		if p.filteredErr != nil {
			return domain.Waveform{}, p.filteredErr
		}
		return *p.filtered, nil
	}

	w, err := p.filter()
	if err != nil {
		p.filteredErr = err
		return domain.Waveform{}, err
	}
	p.filtered = &w
	return w, nil
}

func (p *pipeline) filter() (domain.Waveform, error) {
	values := append([]float64(nil), p.tissue.Values...)

	// Fit panics on fewer than two points or unordered times
	if p.reference.Len() >= 2 && increasing(p.reference.Times) {
		var ref interp.PiecewiseLinear
		if err := ref.Fit(floatTimes(p.reference.Times), p.reference.Values); err == nil {
			for i, t := range p.tissue.Times {
				values[i] -= ref.Predict(float64(t))
			}
		}
	}

	section, ok, err := designFilter(p.cfg.NoiseFilter, p.cfg.TissueSamplingPeriod)
	if err != nil {
		return domain.Waveform{}, apperrors.NewConfigError("design noise filter", err)
	}
	if ok && len(values) >= 3 {
		values = section.zeroPhase(values)
	}

	return domain.Waveform{
		Times:  append([]int64(nil), p.tissue.Times...),
		Values: values,
	}, nil
}

// TwitchMetrics detects contractions and measures each twitch. Detection
// failures are returned as the sentinels of the errors package.
func (p *pipeline) TwitchMetrics() (domain.TwitchMetrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.metrics != nil {
		return *p.metrics, nil
	}
	if p.metricsErr != nil {
		return domain.TwitchMetrics{}, p.metricsErr
	}

	w, err := p.filteredLocked()
	if err != nil {
		return domain.TwitchMetrics{}, err
	}

	peaks, valleys, err := detectPeaksAndValleys(w.Times, w.Values)
	if err != nil {
		p.metricsErr = err
		return domain.TwitchMetrics{}, err
	}

	m := domain.TwitchMetrics{
		Twitches: computeTwitches(w.Times, w.Values, peaks, valleys),
		Peaks:    peaks,
		Valleys:  valleys,
	}
	p.metrics = &m
	return m, nil
}

func floatTimes(t []int64) []float64 {
	out := make([]float64, len(t))
	for i, v := range t {
		out[i] = float64(v)
	}
	return out
}

func increasing(t []int64) bool {
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return false
		}
	}
	return true
}
