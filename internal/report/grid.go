package report

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/interp"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

// Grid is the time axis shared by every well in a report. Point i sits at
// (i+1) × Period microseconds.
type Grid struct {
	Period int64
	Times  []int64
}

// NewGrid spans (0, last] in steps of period
func NewGrid(period, last int64) (Grid, error) {
	if period <= 0 {
		return Grid{}, apperrors.NewAppValidationError(fmt.Sprintf("interpolation period must be positive, got %d", period))
	}
	n := int(last / period)
	if n < 0 {
		n = 0
	}
	// one header row plus every grid point must fit on a sheet
	if n+1 > excelize.TotalRows {
		return Grid{}, apperrors.NewAppValidationError(
			fmt.Sprintf("%d time points exceed the %d rows of a worksheet", n, excelize.TotalRows-1))
	}
	times := make([]int64, n)
	for i := range times {
		times[i] = int64(i+1) * period
	}
	return Grid{Period: period, Times: times}, nil
}

// GridFor builds the grid reaching the longest of the waveforms
func GridFor(period int64, waveforms ...domain.Waveform) (Grid, error) {
	var last int64
	for _, w := range waveforms {
		if n := w.Len(); n > 0 && w.Times[n-1] > last {
			last = w.Times[n-1]
		}
	}
	return NewGrid(period, last)
}

// Len is the number of grid points
func (g Grid) Len() int {
	return len(g.Times)
}

// Seconds returns grid point i in seconds
func (g Grid) Seconds(i int) float64 {
	return float64(g.Times[i]) / domain.MicrosecondsPerSecond
}

// Nearest returns the grid index closest to t, clamped to the grid
func (g Grid) Nearest(t int64) int {
	i := int(math.Round(float64(t)/float64(g.Period))) - 1
	if i < 0 {
		return 0
	}
	if i >= len(g.Times) {
		return len(g.Times) - 1
	}
	return i
}

// Column is one well resampled onto a grid. Values[j] belongs to grid
// point Start+j; every other grid point is blank.
type Column struct {
	Start  int
	Values []float64
}

// End is one past the last filled grid index
func (c Column) End() int {
	return c.Start + len(c.Values)
}

// Has reports whether grid index i holds a value
func (c Column) Has(i int) bool {
	return i >= c.Start && i < c.End()
}

// At returns the value at grid index i, which must satisfy Has
func (c Column) At(i int) float64 {
	return c.Values[i-c.Start]
}

// Interpolate resamples w onto the grid without extrapolating. Points before
// the first sample or after the last are left blank.
func (g Grid) Interpolate(wellName string, w domain.Waveform) (Column, error) {
	n := w.Len()
	if n == 0 || len(w.Values) != n {
		return Column{}, apperrors.NewInterpolationError(wellName, apperrors.ErrNoValidData)
	}
	first, last := w.Times[0], w.Times[n-1]

	// cutoff is the last grid point at or before the final sample
	cutoff := len(g.Times) - 1
	for cutoff >= 0 && g.Times[cutoff] > last {
		cutoff--
	}
	start := 0
	for start <= cutoff && g.Times[start] < first {
		start++
	}
	if start > cutoff {
		return Column{Start: start}, nil
	}

	if n == 1 {
		// only the grid point equal to the lone sample can be filled
		return Column{Start: start, Values: []float64{w.Values[0]}}, nil
	}

	xs := make([]float64, n)
	for i, t := range w.Times {
		if i > 0 && t <= w.Times[i-1] {
			return Column{}, apperrors.NewInterpolationError(wellName,
				fmt.Errorf("timestamps not strictly increasing at sample %d", i))
		}
		xs[i] = float64(t)
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, w.Values); err != nil {
		return Column{}, apperrors.NewInterpolationError(wellName, err)
	}

	values := make([]float64, cutoff-start+1)
	for i := range values {
		values[i] = pl.Predict(float64(g.Times[start+i]))
	}
	return Column{Start: start, Values: values}, nil
}
