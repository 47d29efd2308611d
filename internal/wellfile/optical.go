package wellfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

// Cells of the optical workbook metadata block, on the first sheet
const (
	cellBarcode         = "E2"
	cellRecordingStart  = "E3"
	cellWellName        = "E4"
	cellSamplingPeriod  = "E5"
	cellTwitchesPointUp = "E6"
	cellInstrument      = "E7"

	opticalTimeLayout    = "2006-01-02 15:04:05"
	opticalFormatVersion = "0.1.0"
)

type opticalSource struct {
	path string
}

func (s *opticalSource) Kind() Kind   { return KindOptical }
func (s *opticalSource) Path() string { return s.path }

// Read loads a camera-derived recording. Column A holds time in seconds and
// column B the tissue displacement, both starting at row 2.
func (s *opticalSource) Read() (*domain.WellRecording, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, apperrors.NewStorageError("open optical workbook", err).WithContext("path", s.path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError("optical workbook has no sheets", nil).WithContext("path", s.path)
	}
	sheet := sheets[0]

	cell := func(ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	// reports and other workbooks share the extension but carry neither cell
	if cell(cellWellName) == "" && cell(cellBarcode) == "" {
		return nil, apperrors.NewParsingError("read optical workbook", apperrors.ErrNotWellFile).
			WithContext("path", s.path)
	}

	rec := &domain.WellRecording{
		WellName:     strings.ToUpper(cell(cellWellName)),
		PlateBarcode: cell(cellBarcode),
		Metadata: map[domain.MetadataKey]string{
			domain.MetaFileFormatVersion: opticalFormatVersion,
		},
	}
	if serial := cell(cellInstrument); serial != "" {
		rec.Metadata[domain.MetaInstrumentSerial] = serial
	}
	rec.TwitchesPointUp = strings.Contains(strings.ToLower(cell(cellTwitchesPointUp)), "y")

	if v := cell(cellRecordingStart); v != "" {
		start, err := time.Parse(opticalTimeLayout, v)
		if err != nil {
			return nil, apperrors.NewMetadataError(s.path, fmt.Errorf("recording start %q: %w", v, err))
		}
		rec.RecordingStart = start.UTC()
	}
	if v := cell(cellSamplingPeriod); v != "" {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperrors.NewMetadataError(s.path, fmt.Errorf("sampling period %q: %w", v, err))
		}
		rec.TissueSamplingPeriod = secondsToMicros(seconds)
	}
	if rec.WellName != "" {
		idx, err := domain.TwentyFourWellPlate().WellIndex(rec.WellName)
		if err != nil {
			return nil, apperrors.NewMetadataError(s.path, err)
		}
		rec.WellIndex = idx
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError("read optical rows", err).WithContext("path", s.path)
	}
	for i, row := range rows {
		if i == 0 || len(row) < 2 || row[0] == "" {
			continue
		}
		t, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("time in row %d", i+1), err).WithContext("path", s.path)
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("value in row %d", i+1), err).WithContext("path", s.path)
		}
		rec.Tissue.Times = append(rec.Tissue.Times, secondsToMicros(t))
		rec.Tissue.Values = append(rec.Tissue.Values, v)
	}

	if err := requireMetadata(s.path, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// secondsToMicros rounds to the microsecond before scaling, so 0.0016
// becomes 1600 rather than 1599
func secondsToMicros(s float64) int64 {
	return int64(math.Round(s * 1e6))
}

// WriteOptical writes rec as an optical workbook. Used by tests and the
// simulate command.
func WriteOptical(path string, rec *domain.WellRecording) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	yn := "n"
	if rec.TwitchesPointUp {
		yn = "y"
	}
	cells := map[string]interface{}{
		"A1":                "Time (seconds)",
		"B1":                "Displacement",
		"D2":                "Plate Barcode",
		cellBarcode:         rec.PlateBarcode,
		"D3":                "Recording Start (UTC)",
		cellRecordingStart:  rec.RecordingStart.UTC().Format(opticalTimeLayout),
		"D4":                "Well Name",
		cellWellName:        rec.WellName,
		"D5":                "Sampling Period (seconds)",
		cellSamplingPeriod:  float64(rec.TissueSamplingPeriod) / domain.MicrosecondsPerSecond,
		"D6":                "Twitches Point Up (y/n)",
		cellTwitchesPointUp: yn,
		"D7":                "Instrument Serial Number",
		cellInstrument:      rec.LookupOr(domain.MetaInstrumentSerial, ""),
	}
	for ref, v := range cells {
		if err := f.SetCellValue(sheet, ref, v); err != nil {
			return err
		}
	}
	for i := range rec.Tissue.Times {
		ref, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{float64(rec.Tissue.Times[i]) / domain.MicrosecondsPerSecond, rec.Tissue.Values[i]}
		if err := f.SetSheetRow(sheet, ref, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
