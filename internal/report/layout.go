// Package report lays out the analysis of a plate as an xlsx workbook.
//
// Every coordinate used to place data or to reference it from a chart comes
// from the functions in this file, so charts always point at the cells that
// were written. Rows and columns are zero based here and converted to A1
// names only when talking to excelize.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"platereport/pkg/contracts/domain"
)

// Sheet names in workbook order
const (
	SheetMetadata         = "metadata"
	SheetWaveforms        = "continuous-waveforms"
	SheetSnapshot         = "continuous-waveform-snapshot"
	SheetFullPlots        = "full-continuous-waveform-plots"
	SheetAggregate        = "aggregate-metrics"
	SheetPerTwitch        = "per-twitch-metrics"
	SheetFrequencyPlots   = "twitch-frequencies-plots"
	SheetForceFrequencies = "force-frequency-relationship"
)

// SheetNames returns every sheet in the order it appears in the workbook
func SheetNames() []string {
	return []string{
		SheetMetadata,
		SheetWaveforms,
		SheetSnapshot,
		SheetFullPlots,
		SheetAggregate,
		SheetPerTwitch,
		SheetFrequencyPlots,
		SheetForceFrequencies,
	}
}

// metadata sheet
const (
	metadataRecordingRow = 0
	metadataDeviceRow    = 4
	metadataOutputRow    = 10
	metadataLabelCol     = 1
	metadataValueCol     = 2
)

var metadataColumnWidths = []float64{25, 40, 25}

// continuous waveform sheet
const (
	waveformTimeCol      = 0
	waveformHeaderRow    = 0
	contractionMarkerCol = 100
)

func waveformCol(well int) int { return 1 + well }

func waveformRow(gridIndex int) int { return 1 + gridIndex }

func contractionCol(well int) int { return contractionMarkerCol + 2*well }

func relaxationCol(well int) int { return contractionMarkerCol + 2*well + 1 }

// aggregate sheet
const (
	aggregateNameRow      = 0
	aggregateTreatmentRow = 1
	aggregateCountRow     = 2
	aggregateErrorRow     = 3
	aggregateFirstBlock   = 4
	aggregateBlockHeight  = 5
	aggregateLabelCol     = 0
	aggregateSubLabelCol  = 1
)

// rows within an aggregate block
const (
	aggMeanOffset = iota
	aggStdDevOffset
	aggCoVOffset
	aggSEMOffset
)

var aggregateSubLabels = []string{"Mean", "StDev", "CoV", "SEM"}

func aggregateCol(well int) int { return 2 + well }

// aggregateBlockRow is the Mean row of the n-th aggregate metric
func aggregateBlockRow(n int) int { return aggregateFirstBlock + n*aggregateBlockHeight }

// per-twitch sheet
func perTwitchBlockHeight() int { return len(domain.PerTwitchMetricKinds()) + 2 }

func perTwitchBlockRow(position int) int { return position * perTwitchBlockHeight() }

// perTwitchMetricRow is the row holding kind for the well at position
func perTwitchMetricRow(position int, kind domain.MetricKind) int {
	for i, k := range domain.PerTwitchMetricKinds() {
		if k == kind {
			return perTwitchBlockRow(position) + 1 + i
		}
	}
	panic(fmt.Sprintf("metric %s is not written per twitch", kind))
}

func twitchCol(twitch int) int { return 1 + twitch }

// chart tiles
const (
	tileCols   = 9
	tileRows   = 16
	tileWidth  = tileCols * 64
	tileHeight = tileRows * 20
)

// plateTile anchors a chart at the well's position on the plate
func plateTile(plate domain.Labware, well int) (row, col int, err error) {
	r, c, err := plate.Position(well)
	if err != nil {
		return 0, 0, err
	}
	return r * tileRows, c * tileCols, nil
}

// runningTile anchors the n-th chart of a sheet, perRow charts to a row
func runningTile(n, perRow int) (row, col int) {
	if perRow < 1 {
		perRow = 1
	}
	return (n / perRow) * tileRows, (n % perRow) * tileCols
}

// cellName converts zero based coordinates to an A1 reference. Layout
// coordinates stay inside sheet bounds, checked by NewGrid for rows.
func cellName(row, col int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row+1)
	return name
}

func absCellName(row, col int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row+1, true)
	return name
}

// rangeRef is an absolute reference to a rectangle on sheet for charts
func rangeRef(sheet string, row0, col0, row1, col1 int) string {
	return fmt.Sprintf("'%s'!%s:%s", sheet, absCellName(row0, col0), absCellName(row1, col1))
}
