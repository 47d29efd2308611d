package domain

import "fmt"

// NoiseFilter selects the low-pass filter applied to tissue data
type NoiseFilter string

const (
	FilterNone                 NoiseFilter = "none"
	FilterBesselLowpass10      NoiseFilter = "bessel-lowpass-10"
	FilterBesselLowpass30      NoiseFilter = "bessel-lowpass-30"
	FilterButterworthLowpass30 NoiseFilter = "butterworth-lowpass-30"
)

// FilterFamily identifies the analog prototype of a noise filter
type FilterFamily string

const (
	FamilyNone        FilterFamily = "none"
	FamilyBessel      FilterFamily = "bessel"
	FamilyButterworth FilterFamily = "butterworth"
)

// NoiseFilters lists every supported filter
func NoiseFilters() []NoiseFilter {
	return []NoiseFilter{FilterNone, FilterBesselLowpass10, FilterBesselLowpass30, FilterButterworthLowpass30}
}

// ParseNoiseFilter validates a filter name
func ParseNoiseFilter(s string) (NoiseFilter, error) {
	for _, f := range NoiseFilters() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown noise filter %q", s)
}

// Design returns the filter family and cutoff frequency in Hz
func (f NoiseFilter) Design() (FilterFamily, float64) {
	switch f {
	case FilterBesselLowpass10:
		return FamilyBessel, 10
	case FilterBesselLowpass30:
		return FamilyBessel, 30
	case FilterButterworthLowpass30:
		return FamilyButterworth, 30
	default:
		return FamilyNone, 0
	}
}

// PipelineConfig parameterises the signal pipeline of every well in a
// recording. It holds no reference fields, so assignment copies it fully.
type PipelineConfig struct {
	NoiseFilter          NoiseFilter `json:"noise_filter" yaml:"noise_filter" validate:"required,oneof=none bessel-lowpass-10 bessel-lowpass-30 butterworth-lowpass-30"`
	TissueSamplingPeriod int64       `json:"tissue_sampling_period" yaml:"tissue_sampling_period" validate:"gt=0"`
}

// Sampling periods, in microseconds, with a known default configuration
const (
	SamplingPeriodMagnetic int64 = 9600
	SamplingPeriodOptical  int64 = 1600
)

// DefaultPipelineConfig returns a fresh default configuration for a tissue
// sampling period. ok is false when no default is known.
func DefaultPipelineConfig(samplingPeriod int64) (cfg PipelineConfig, ok bool) {
	var filter NoiseFilter
	switch samplingPeriod {
	case SamplingPeriodMagnetic:
		filter = FilterBesselLowpass10
	case SamplingPeriodOptical:
		filter = FilterButterworthLowpass30
	default:
		return PipelineConfig{}, false
	}
	return PipelineConfig{NoiseFilter: filter, TissueSamplingPeriod: samplingPeriod}, true
}

// InterpolationPeriod returns the spacing of the shared report time axis for
// a tissue sampling period. Unknown periods interpolate at their own rate.
func InterpolationPeriod(samplingPeriod int64) int64 {
	switch samplingPeriod {
	case SamplingPeriodMagnetic:
		return 10_000
	case SamplingPeriodOptical:
		return 1_600
	default:
		return samplingPeriod
	}
}
