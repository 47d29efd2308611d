package wellfile

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"platereport/pkg/contracts"
	"platereport/pkg/contracts/domain"
)

// Synthetic describes a generated recording of one well
type Synthetic struct {
	WellIndex       int
	PlateBarcode    string
	RecordingStart  time.Time
	SamplingPeriod  int64 // µs
	Duration        time.Duration
	StartOffset     int64   // µs before the first sample
	TwitchHz        float64 // zero produces a flat trace
	Amplitude       float64
	Baseline        float64
	Noise           float64
	TwitchesPointUp bool
	Seed            int64
}

// DefaultSynthetic returns a 1 Hz magnetic recording of well A1
func DefaultSynthetic() Synthetic {
	return Synthetic{
		PlateBarcode:    "MA20123456",
		RecordingStart:  time.Date(2020, 8, 17, 14, 58, 10, 0, time.UTC),
		SamplingPeriod:  domain.SamplingPeriodMagnetic,
		Duration:        10 * time.Second,
		TwitchHz:        1,
		Amplitude:       1000,
		Baseline:        50000,
		Noise:           5,
		TwitchesPointUp: true,
		Seed:            1,
	}
}

// Generate builds the recording. Twitches are gaussian pulses, one per
// period, centred a third of the way into each period.
func (s Synthetic) Generate() (*domain.WellRecording, error) {
	plate := domain.TwentyFourWellPlate()
	name, err := plate.WellName(s.WellIndex)
	if err != nil {
		return nil, err
	}
	if s.SamplingPeriod <= 0 {
		return nil, fmt.Errorf("sampling period must be positive")
	}

	n := int(s.Duration.Microseconds() / s.SamplingPeriod)
	rng := rand.New(rand.NewSource(s.Seed + int64(s.WellIndex)))
	tissue := domain.Waveform{Times: make([]int64, n), Values: make([]float64, n)}
	reference := domain.Waveform{Times: make([]int64, n), Values: make([]float64, n)}

	sign := 1.0
	if !s.TwitchesPointUp {
		sign = -1
	}
	for i := 0; i < n; i++ {
		t := s.StartOffset + int64(i)*s.SamplingPeriod
		sec := float64(t) / domain.MicrosecondsPerSecond
		v := s.Baseline
		if s.TwitchHz > 0 {
			period := 1 / s.TwitchHz
			phase := math.Mod(sec, period)/period - 1.0/3
			v += sign * s.Amplitude * math.Exp(-phase*phase/(2*0.06*0.06))
		}
		tissue.Times[i] = t
		tissue.Values[i] = v + s.Noise*rng.NormFloat64()
		reference.Times[i] = t
		reference.Values[i] = s.Noise * rng.NormFloat64()
	}

	return &domain.WellRecording{
		WellIndex:               s.WellIndex,
		WellName:                name,
		PlateBarcode:            s.PlateBarcode,
		RecordingStart:          s.RecordingStart.UTC(),
		TissueSamplingPeriod:    s.SamplingPeriod,
		ReferenceSamplingPeriod: s.SamplingPeriod,
		TwitchesPointUp:         s.TwitchesPointUp,
		Tissue:                  tissue,
		Reference:               reference,
		Metadata: map[domain.MetadataKey]string{
			domain.MetaFileFormatVersion: contracts.WellFileFormatVersion,
			domain.MetaInstrumentSerial:  "M02001900",
			domain.MetaSoftwareRelease:   contracts.Version,
			domain.MetaSoftwareBuild:     "synthetic",
		},
	}, nil
}

// WriteSynthetic generates s and writes it into dir as a binary well file.
// The returned path is named after the barcode and well.
func WriteSynthetic(dir string, s Synthetic) (string, error) {
	rec, err := s.Generate()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s__%s%s", rec.PlateBarcode, rec.WellName, ExtBinary))
	if err := WriteFile(path, rec); err != nil {
		return "", err
	}
	return path, nil
}
