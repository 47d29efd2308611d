package waveform

import (
	"fmt"
	"math"

	"platereport/pkg/contracts/domain"
)

// Second-order section quality factors of the analog prototypes
const (
	butterworthQ = math.Sqrt2 / 2
	besselQ      = 0.5773502691896258 // 1/sqrt(3)

	// besselCutoffScale moves the natural frequency so the -3 dB point of a
	// second-order Bessel section lands on the nominal cutoff
	besselCutoffScale = 1.2720196495140689
)

// biquad is a normalised second-order IIR section
type biquad struct {
	b0, b1, b2, a1, a2 float64
}

// lowpass designs a bilinear-transform low-pass section
func lowpass(sampleRate, f0, q float64) (biquad, error) {
	if f0 <= 0 || f0 >= sampleRate/2 {
		return biquad{}, fmt.Errorf("cutoff %.2f Hz outside (0, %.2f) Hz", f0, sampleRate/2)
	}
	w0 := 2 * math.Pi * f0 / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosw) / 2 / a0,
		b1: (1 - cosw) / a0,
		b2: (1 - cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}, nil
}

// apply runs the section forward. State starts at the steady state of the
// first sample so a constant input passes through unchanged.
func (b biquad) apply(x []float64) []float64 {
	y := make([]float64, len(x))
	if len(x) == 0 {
		return y
	}
	x1, x2 := x[0], x[0]
	y1, y2 := x[0], x[0]
	for i, xi := range x {
		yi := b.b0*xi + b.b1*x1 + b.b2*x2 - b.a1*y1 - b.a2*y2
		x2, x1 = x1, xi
		y2, y1 = y1, yi
		y[i] = yi
	}
	return y
}

// zeroPhase filters forward then backward, cancelling the phase shift
func (b biquad) zeroPhase(x []float64) []float64 {
	y := b.apply(x)
	reverse(y)
	y = b.apply(y)
	reverse(y)
	return y
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

// designFilter returns the section for a noise filter, or ok=false for none
func designFilter(f domain.NoiseFilter, samplingPeriod int64) (biquad, bool, error) {
	family, cutoff := f.Design()
	if family == domain.FamilyNone {
		return biquad{}, false, nil
	}
	if samplingPeriod <= 0 {
		return biquad{}, false, fmt.Errorf("sampling period must be positive, got %d", samplingPeriod)
	}
	sampleRate := domain.MicrosecondsPerSecond / float64(samplingPeriod)

	var (
		section biquad
		err     error
	)
	switch family {
	case domain.FamilyBessel:
		section, err = lowpass(sampleRate, cutoff*besselCutoffScale, besselQ)
	case domain.FamilyButterworth:
		section, err = lowpass(sampleRate, cutoff, butterworthQ)
	}
	if err != nil {
		return biquad{}, false, fmt.Errorf("%s at %.1f Hz sampling: %w", f, sampleRate, err)
	}
	return section, true, nil
}
