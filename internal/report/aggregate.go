package report

import (
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

// Stats summarises one metric of one well
type Stats struct {
	N      int
	Mean   float64
	StdDev float64 // population
	CoV    float64
	SEM    float64
}

// Aggregate computes the summary of values. An empty input yields NaN
// statistics so the workbook shows them as unavailable.
func Aggregate(values []float64) Stats {
	n := len(values)
	if n == 0 {
		nan := math.NaN()
		return Stats{Mean: nan, StdDev: nan, CoV: nan, SEM: nan}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Stats{
		N:      n,
		Mean:   mean,
		StdDev: std,
		CoV:    std / mean,
		SEM:    stat.StdErr(std, float64(n)),
	}
}

// cellValue is v, or the unavailable marker when v is not finite
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.NotAvailable
	}
	return v
}

// Outcome is the analysis result of one well: MetricsReady or
// MetricsUnavailable.
type Outcome interface {
	isOutcome()
}

// MetricsReady carries the twitches of a well
type MetricsReady struct {
	Metrics domain.TwitchMetrics
}

// MetricsUnavailable records a detection failure confined to one well
type MetricsUnavailable struct {
	Err         error
	Description string
}

func (MetricsReady) isOutcome()       {}
func (MetricsUnavailable) isOutcome() {}

// NewOutcome classifies a pipeline result. Detection failures become
// MetricsUnavailable; any other error is returned for the caller to abort on.
func NewOutcome(m domain.TwitchMetrics, err error) (Outcome, error) {
	if err == nil {
		return MetricsReady{Metrics: m}, nil
	}
	if desc, ok := apperrors.DetectionDescription(err); ok {
		return MetricsUnavailable{Err: err, Description: desc}, nil
	}
	return nil, err
}
