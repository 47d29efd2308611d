package wellfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts"
	"platereport/pkg/contracts/domain"
)

// Binary layout, little endian:
//
//	magic    [4]byte "WREC"
//	version  uint16
//	hdrLen   uint32
//	header   [hdrLen]byte YAML
//	tissue   uint32 count, then count (int64 µs, float64) pairs
//	ref      uint32 count, then count (int64 µs, float64) pairs
const binaryVersion uint16 = 1

const (
	maxHeaderBytes = 1 << 20
	maxSamples     = 1 << 26
)

// binaryHeader is the YAML metadata block of a binary well file
type binaryHeader struct {
	WellIndex               int               `yaml:"well_index"`
	WellName                string            `yaml:"well_name"`
	PlateBarcode            string            `yaml:"plate_barcode"`
	RecordingStart          string            `yaml:"recording_start"`
	TissueSamplingPeriod    int64             `yaml:"tissue_sampling_period_us"`
	ReferenceSamplingPeriod int64             `yaml:"reference_sampling_period_us"`
	TwitchesPointUp         bool              `yaml:"twitches_point_up"`
	Metadata                map[string]string `yaml:"metadata,omitempty"`
}

type binarySource struct {
	path string
}

func (s *binarySource) Kind() Kind   { return KindBinary }
func (s *binarySource) Path() string { return s.path }

func (s *binarySource) Read() (*domain.WellRecording, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, apperrors.NewStorageError("open well file", err).WithContext("path", s.path)
	}
	defer f.Close()

	rec, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	if err := requireMetadata(s.path, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode reads one binary well recording. Metadata presence is not checked.
func Decode(r io.Reader) (*domain.WellRecording, error) {
	magic := make([]byte, len(binaryMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, apperrors.NewParsingError("read magic", err)
	}
	if string(magic) != string(binaryMagic) {
		return nil, apperrors.NewParsingError("bad magic", apperrors.ErrUnknownFormat)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, apperrors.NewParsingError("read version", err)
	}
	if version != binaryVersion {
		return nil, apperrors.NewParsingError(fmt.Sprintf("unsupported binary version %d", version), nil)
	}

	var hdrLen uint32
	if err := binary.Read(r, binary.LittleEndian, &hdrLen); err != nil {
		return nil, apperrors.NewParsingError("read header length", err)
	}
	if hdrLen > maxHeaderBytes {
		return nil, apperrors.NewParsingError(fmt.Sprintf("header too large: %d bytes", hdrLen), nil)
	}
	raw := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, apperrors.NewParsingError("read header", err)
	}

	var hdr binaryHeader
	if err := yaml.Unmarshal(raw, &hdr); err != nil {
		return nil, apperrors.NewParsingError("decode header", err)
	}

	rec := &domain.WellRecording{
		WellIndex:               hdr.WellIndex,
		WellName:                hdr.WellName,
		PlateBarcode:            hdr.PlateBarcode,
		TissueSamplingPeriod:    hdr.TissueSamplingPeriod,
		ReferenceSamplingPeriod: hdr.ReferenceSamplingPeriod,
		TwitchesPointUp:         hdr.TwitchesPointUp,
		Metadata:                make(map[domain.MetadataKey]string, len(hdr.Metadata)),
	}
	for k, v := range hdr.Metadata {
		rec.Metadata[domain.MetadataKey(k)] = v
	}
	if hdr.RecordingStart != "" {
		start, err := time.Parse(time.RFC3339Nano, hdr.RecordingStart)
		if err != nil {
			return nil, apperrors.NewParsingError("parse recording start", err)
		}
		rec.RecordingStart = start.UTC()
	}

	var err error
	if rec.Tissue, err = readSeries(r); err != nil {
		return nil, apperrors.NewParsingError("read tissue data", err)
	}
	if rec.Reference, err = readSeries(r); err != nil {
		return nil, apperrors.NewParsingError("read reference data", err)
	}
	return rec, nil
}

func readSeries(r io.Reader) (domain.Waveform, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return domain.Waveform{}, err
	}
	if n > maxSamples {
		return domain.Waveform{}, fmt.Errorf("sample count %d exceeds limit", n)
	}
	w := domain.Waveform{
		Times:  make([]int64, n),
		Values: make([]float64, n),
	}
	for i := range w.Times {
		if err := binary.Read(r, binary.LittleEndian, &w.Times[i]); err != nil {
			return domain.Waveform{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &w.Values[i]); err != nil {
			return domain.Waveform{}, err
		}
	}
	return w, nil
}

// Encode writes rec in the binary well file format
func Encode(w io.Writer, rec *domain.WellRecording) error {
	hdr := binaryHeader{
		WellIndex:               rec.WellIndex,
		WellName:                rec.WellName,
		PlateBarcode:            rec.PlateBarcode,
		TissueSamplingPeriod:    rec.TissueSamplingPeriod,
		ReferenceSamplingPeriod: rec.ReferenceSamplingPeriod,
		TwitchesPointUp:         rec.TwitchesPointUp,
		Metadata:                make(map[string]string, len(rec.Metadata)+1),
	}
	if !rec.RecordingStart.IsZero() {
		hdr.RecordingStart = rec.RecordingStart.UTC().Format(time.RFC3339Nano)
	}
	for k, v := range rec.Metadata {
		hdr.Metadata[string(k)] = v
	}
	if _, ok := hdr.Metadata[string(domain.MetaFileFormatVersion)]; !ok {
		hdr.Metadata[string(domain.MetaFileFormatVersion)] = contracts.WellFileFormatVersion
	}

	raw, err := yaml.Marshal(&hdr)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	bw := bufio.NewWriter(w)
	bw.Write(binaryMagic)
	binary.Write(bw, binary.LittleEndian, binaryVersion)
	binary.Write(bw, binary.LittleEndian, uint32(len(raw)))
	bw.Write(raw)
	for _, s := range []domain.Waveform{rec.Tissue, rec.Reference} {
		if len(s.Times) != len(s.Values) {
			return fmt.Errorf("mismatched series: %d times, %d values", len(s.Times), len(s.Values))
		}
		binary.Write(bw, binary.LittleEndian, uint32(len(s.Times)))
		for i := range s.Times {
			binary.Write(bw, binary.LittleEndian, s.Times[i])
			binary.Write(bw, binary.LittleEndian, s.Values[i])
		}
	}
	return bw.Flush()
}

// WriteFile encodes rec to path
func WriteFile(path string, rec *domain.WellRecording) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("create well file", err).WithContext("path", path)
	}
	if err := Encode(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
