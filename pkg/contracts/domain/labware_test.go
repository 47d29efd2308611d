package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabwareWellNames(t *testing.T) {
	plate := TwentyFourWellPlate()

	tests := []struct {
		index int
		name  string
	}{
		{0, "A1"},
		{1, "B1"},
		{3, "D1"},
		{4, "A2"},
		{9, "B3"},
		{23, "D6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := plate.WellName(tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)

			index, err := plate.WellIndex(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.index, index)
		})
	}
}

func TestLabwareRejectsOutOfRange(t *testing.T) {
	plate := TwentyFourWellPlate()

	_, err := plate.WellName(24)
	assert.Error(t, err)
	_, err = plate.WellName(-1)
	assert.Error(t, err)

	for _, name := range []string{"E1", "A7", "A0", "Z", "", "A-1"} {
		_, err := plate.WellIndex(name)
		assert.Error(t, err, name)
	}
}

func TestLabwareWellNamesOrder(t *testing.T) {
	names := TwentyFourWellPlate().WellNames()
	require.Len(t, names, 24)
	assert.Equal(t, []string{"A1", "B1", "C1", "D1", "A2"}, names[:5])
	assert.Equal(t, "D6", names[23])
}

func TestDefaultPipelineConfig(t *testing.T) {
	tests := []struct {
		name     string
		period   int64
		wantOK   bool
		filter   NoiseFilter
		interval int64
	}{
		{"magnetic", 9600, true, FilterBesselLowpass10, 10000},
		{"optical", 1600, true, FilterButterworthLowpass30, 1600},
		{"unknown", 4000, false, "", 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := DefaultPipelineConfig(tt.period)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.filter, cfg.NoiseFilter)
			assert.Equal(t, tt.interval, InterpolationPeriod(tt.period))
			if ok {
				assert.Equal(t, tt.period, cfg.TissueSamplingPeriod)
			}
		})
	}
}

func TestDefaultPipelineConfigIsFreshValue(t *testing.T) {
	a, _ := DefaultPipelineConfig(9600)
	a.NoiseFilter = FilterNone

	b, _ := DefaultPipelineConfig(9600)
	assert.Equal(t, FilterBesselLowpass10, b.NoiseFilter)
}

func TestParseNoiseFilter(t *testing.T) {
	f, err := ParseNoiseFilter("bessel-lowpass-30")
	require.NoError(t, err)
	family, cutoff := f.Design()
	assert.Equal(t, FamilyBessel, family)
	assert.Equal(t, 30.0, cutoff)

	_, err = ParseNoiseFilter("chebyshev")
	assert.Error(t, err)
}

func TestMetricKinds(t *testing.T) {
	kinds := PerTwitchMetricKinds()
	require.Len(t, kinds, NumMetricKinds)
	assert.Equal(t, "Timepoint of Twitch Contraction", kinds[0].DisplayName())
	assert.Equal(t, "Twitch Width 50 (FWHM) (seconds)", MetricWidth50.DisplayName())

	pct, ok := MetricWidth50.WidthPercent()
	assert.True(t, ok)
	assert.Equal(t, 50, pct)
	_, ok = MetricAmplitude.WidthPercent()
	assert.False(t, ok)

	agg := AggregateMetricKinds()
	assert.Equal(t, MetricPeriod, agg[0])
	assert.Len(t, agg, NumMetricKinds-1)
}

func TestWellRecordingLookup(t *testing.T) {
	rec := &WellRecording{
		WellName:       "A1",
		RecordingStart: time.Date(2020, 8, 17, 14, 58, 10, 0, time.UTC),
		Metadata:       map[MetadataKey]string{MetaSoftwareRelease: "0.3.1"},
	}

	v, err := rec.Lookup(MetaSoftwareRelease)
	require.NoError(t, err)
	assert.Equal(t, "0.3.1", v)

	_, err = rec.Lookup(MetaFirmwareVersion)
	assert.True(t, errors.Is(err, ErrMetadataNotFound))
	assert.Equal(t, "n/a", rec.LookupOr(MetaFirmwareVersion, "n/a"))
}

func TestOrientedTissue(t *testing.T) {
	rec := &WellRecording{
		Tissue: Waveform{Times: []int64{0, 10}, Values: []float64{1, -2}},
	}

	flipped := rec.OrientedTissue()
	assert.Equal(t, []float64{-1, 2}, flipped.Values)
	assert.Equal(t, []float64{1, -2}, rec.Tissue.Values)

	rec.TwitchesPointUp = true
	assert.Equal(t, []float64{1, -2}, rec.OrientedTissue().Values)
}

func TestOrientedReferenceMatchesTissueFlip(t *testing.T) {
	rec := &WellRecording{
		Tissue:    Waveform{Times: []int64{0, 10}, Values: []float64{100, 100}},
		Reference: Waveform{Times: []int64{0, 10}, Values: []float64{40, 40}},
	}

	// the difference keeps its magnitude and only changes sign
	tissue, ref := rec.OrientedTissue(), rec.OrientedReference()
	for i := range tissue.Values {
		assert.Equal(t, -60.0, tissue.Values[i]-ref.Values[i])
	}
	assert.Equal(t, []float64{40, 40}, rec.Reference.Values)

	rec.TwitchesPointUp = true
	assert.Equal(t, []float64{40, 40}, rec.OrientedReference().Values)
}
