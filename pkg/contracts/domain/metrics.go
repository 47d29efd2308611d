package domain

import "fmt"

// MetricKind identifies one per-twitch measurement. The declaration order is
// the row order of the per-twitch sheet.
type MetricKind int

const (
	MetricTimepoint MetricKind = iota
	MetricPeriod
	MetricFrequency
	MetricAmplitude
	MetricWidth10
	MetricWidth25
	MetricWidth50
	MetricWidth75
	MetricWidth90
	MetricAUC

	// NumMetricKinds is the number of per-twitch rows written for every well
	NumMetricKinds = int(MetricAUC) + 1
)

type metricInfo struct {
	key     string
	display string
	percent int
}

var metricInfos = [NumMetricKinds]metricInfo{
	MetricTimepoint: {"timepoint", "Timepoint of Twitch Contraction", 0},
	MetricPeriod:    {"period", "Twitch Period (seconds)", 0},
	MetricFrequency: {"frequency", "Twitch Frequency (Hz)", 0},
	MetricAmplitude: {"amplitude", "Twitch Amplitude", 0},
	MetricWidth10:   {"width_10", "Twitch Width 10 (seconds)", 10},
	MetricWidth25:   {"width_25", "Twitch Width 25 (seconds)", 25},
	MetricWidth50:   {"width_50", "Twitch Width 50 (FWHM) (seconds)", 50},
	MetricWidth75:   {"width_75", "Twitch Width 75 (seconds)", 75},
	MetricWidth90:   {"width_90", "Twitch Width 90 (seconds)", 90},
	MetricAUC:       {"auc", "Twitch Area Under Curve", 0},
}

// PerTwitchMetricKinds returns every metric kind in row order
func PerTwitchMetricKinds() []MetricKind {
	kinds := make([]MetricKind, NumMetricKinds)
	for i := range kinds {
		kinds[i] = MetricKind(i)
	}
	return kinds
}

// AggregateMetricKinds returns the kinds summarised on the aggregate sheet.
// The contraction timepoint is positional and has no meaningful mean.
func AggregateMetricKinds() []MetricKind {
	return PerTwitchMetricKinds()[1:]
}

func (k MetricKind) valid() bool {
	return k >= 0 && int(k) < NumMetricKinds
}

// String returns a stable identifier for logs and CSV headers
func (k MetricKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("metric(%d)", int(k))
	}
	return metricInfos[k].key
}

// DisplayName returns the label written to the workbook
func (k MetricKind) DisplayName() string {
	if !k.valid() {
		return k.String()
	}
	return metricInfos[k].display
}

// WidthPercent returns the percentage parameter of width metrics
func (k MetricKind) WidthPercent() (int, bool) {
	if !k.valid() || metricInfos[k].percent == 0 {
		return 0, false
	}
	return metricInfos[k].percent, true
}

// Twitch holds the measurements of one contraction. Values are indexed by
// MetricKind and expressed in report units (seconds, Hz, sensor units).
type Twitch struct {
	Timepoint   int64                   `json:"timepoint"`
	PeakIndex   int                     `json:"peak_index"`
	ValleyIndex int                     `json:"valley_index"`
	Values      [NumMetricKinds]float64 `json:"values"`
}

// Value returns the measurement of one kind
func (t Twitch) Value(k MetricKind) float64 {
	return t.Values[k]
}

// TwitchMetrics is the analysis result of one well
type TwitchMetrics struct {
	Twitches []Twitch `json:"twitches"`
	Peaks    []int    `json:"peaks"`
	Valleys  []int    `json:"valleys"`
}

// Count returns the number of measured twitches
func (m TwitchMetrics) Count() int {
	return len(m.Twitches)
}

// Series returns one metric across all twitches in contraction order
func (m TwitchMetrics) Series(k MetricKind) []float64 {
	out := make([]float64, len(m.Twitches))
	for i, t := range m.Twitches {
		out[i] = t.Values[k]
	}
	return out
}
