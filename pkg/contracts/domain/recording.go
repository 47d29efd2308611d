package domain

import (
	"errors"
	"fmt"
	"time"
)

// MicrosecondsPerSecond converts recording timestamps to seconds
const MicrosecondsPerSecond = 1_000_000

// ErrMetadataNotFound is returned when a well file lacks a metadata field
var ErrMetadataNotFound = errors.New("metadata not found")

// Waveform is a time series with timestamps in microseconds
type Waveform struct {
	Times  []int64   `json:"times"`
	Values []float64 `json:"values"`
}

// Len returns the number of samples
func (w Waveform) Len() int {
	return len(w.Times)
}

// Seconds returns the timestamps converted to seconds
func (w Waveform) Seconds() []float64 {
	out := make([]float64, len(w.Times))
	for i, t := range w.Times {
		out[i] = float64(t) / MicrosecondsPerSecond
	}
	return out
}

// Clone returns a copy that shares no memory with w
func (w Waveform) Clone() Waveform {
	return Waveform{
		Times:  append([]int64(nil), w.Times...),
		Values: append([]float64(nil), w.Values...),
	}
}

// MetadataKey names an optional well file metadata field
type MetadataKey string

const (
	MetaFileFormatVersion    MetadataKey = "file_format_version"
	MetaInstrumentSerial     MetadataKey = "instrument_serial_number"
	MetaSoftwareRelease      MetadataKey = "software_release_version"
	MetaSoftwareBuild        MetadataKey = "software_build_number"
	MetaFirmwareVersion      MetadataKey = "main_firmware_version"
	MetaComputerName         MetadataKey = "computer_name"
	MetaTreatmentDescription MetadataKey = "treatment_description"
)

// WellRecording is the immutable content of one well file
type WellRecording struct {
	WellIndex               int                    `json:"well_index" validate:"min=0,max=23"`
	WellName                string                 `json:"well_name" validate:"required"`
	PlateBarcode            string                 `json:"plate_barcode" validate:"required"`
	RecordingStart          time.Time              `json:"recording_start" validate:"required"`
	TissueSamplingPeriod    int64                  `json:"tissue_sampling_period" validate:"gt=0"`
	ReferenceSamplingPeriod int64                  `json:"reference_sampling_period" validate:"gte=0"`
	TwitchesPointUp         bool                   `json:"twitches_point_up"`
	Tissue                  Waveform               `json:"tissue"`
	Reference               Waveform               `json:"reference"`
	Metadata                map[MetadataKey]string `json:"metadata,omitempty"`
}

// Lookup returns a metadata value or an error wrapping ErrMetadataNotFound
func (w *WellRecording) Lookup(key MetadataKey) (string, error) {
	if v, ok := w.Metadata[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s in well %s", ErrMetadataNotFound, key, w.WellName)
}

// LookupOr returns a metadata value or fallback when absent
func (w *WellRecording) LookupOr(key MetadataKey, fallback string) string {
	if v, err := w.Lookup(key); err == nil {
		return v
	}
	return fallback
}

// OrientedTissue returns the tissue waveform flipped so twitches point up
func (w *WellRecording) OrientedTissue() Waveform {
	return w.oriented(w.Tissue)
}

// OrientedReference returns the reference waveform with the same flip as
// OrientedTissue, so subtracting it still removes the reference signal
func (w *WellRecording) OrientedReference() Waveform {
	return w.oriented(w.Reference)
}

func (w *WellRecording) oriented(wf Waveform) Waveform {
	if w.TwitchesPointUp {
		return wf
	}
	flipped := wf.Clone()
	for i, v := range flipped.Values {
		flipped.Values[i] = -v
	}
	return flipped
}
