package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

var (
	contractionColor = []string{"#FF8000"}
	relaxationColor  = []string{"#00B050"}
)

func title(text string) []excelize.RichTextRun {
	return []excelize.RichTextRun{{Text: text}}
}

func markerSeries(name, categories, values string, color []string) excelize.ChartSeries {
	return excelize.ChartSeries{
		Name:       name,
		Categories: categories,
		Values:     values,
		Line:       excelize.ChartLine{Type: excelize.ChartLineNone},
		Marker: excelize.ChartMarker{
			Symbol: "circle",
			Size:   6,
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: color},
		},
	}
}

// waveformChart plots grid rows [first, last] of one well with its markers
func (w *writer) waveformChart(well Well, first, last int, heading string) *excelize.Chart {
	idx := well.Index()
	r0, r1 := waveformRow(first), waveformRow(last)
	times := rangeRef(SheetWaveforms, r0, waveformTimeCol, r1, waveformTimeCol)

	series := []excelize.ChartSeries{{
		Name:       "Waveform Data",
		Categories: times,
		Values:     rangeRef(SheetWaveforms, r0, waveformCol(idx), r1, waveformCol(idx)),
		Line:       excelize.ChartLine{Type: excelize.ChartLineSolid, Width: 1},
		Marker:     excelize.ChartMarker{Symbol: "none"},
	}}
	if _, ok := well.Outcome.(MetricsReady); ok {
		series = append(series,
			markerSeries(well.Name()+" Contractions", times,
				rangeRef(SheetWaveforms, r0, contractionCol(idx), r1, contractionCol(idx)), contractionColor),
			markerSeries(well.Name()+" Relaxations", times,
				rangeRef(SheetWaveforms, r0, relaxationCol(idx), r1, relaxationCol(idx)), relaxationColor),
		)
	}

	return &excelize.Chart{
		Type:         excelize.Scatter,
		Series:       series,
		Title:        title(heading),
		Dimension:    excelize.ChartDimension{Width: tileWidth, Height: tileHeight},
		Legend:       excelize.ChartLegend{Position: "none"},
		ShowBlanksAs: "gap",
		XAxis:        excelize.ChartAxis{Title: title("Time (seconds)")},
		YAxis:        excelize.ChartAxis{MajorGridLines: true, Title: title("Magnitude")},
	}
}

// snapshotEnd is the last grid index inside the snapshot window
func (w *writer) snapshotEnd() int {
	limit := int64(w.opts.SnapshotSeconds) * domain.MicrosecondsPerSecond
	end := -1
	for i, t := range w.grid.Times {
		if t > limit {
			break
		}
		end = i
	}
	return end
}

func (w *writer) addChart(sheet string, row, col int, chart *excelize.Chart) error {
	if err := w.f.AddChart(sheet, cellName(row, col), chart); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("add chart to %s", sheet), err)
	}
	return nil
}

// writeWaveformCharts adds a snapshot chart at each well's plate position
// and a full length chart per well tiled in well order
func (w *writer) writeWaveformCharts(ctx context.Context) error {
	snapEnd := w.snapshotEnd()
	full := 0
	for n, well := range w.in.Wells {
		if err := ctx.Err(); err != nil {
			return err
		}
		col := w.columns[well.Index()]
		if len(col.Values) == 0 {
			w.logger.WarnContext(ctx, "no waveform data on the grid, charts skipped", "well", well.Name())
			continue
		}
		w.progress(ctx, fmt.Sprintf("Creating chart of well %s (%d out of %d)", well.Name(), n+1, len(w.in.Wells)))

		if last := min(snapEnd, col.End()-1); last >= col.Start {
			row, c, err := plateTile(w.in.Plate, well.Index())
			if err != nil {
				return err
			}
			chart := w.waveformChart(well, col.Start, last, well.Name())
			if err := w.addChart(SheetSnapshot, row, c, chart); err != nil {
				return err
			}
		}

		row, c := runningTile(full, w.opts.ChartsPerRow)
		chart := w.waveformChart(well, col.Start, col.End()-1, well.Name())
		if err := w.addChart(SheetFullPlots, row, c, chart); err != nil {
			return err
		}
		full++
	}
	return nil
}

// twitchChart plots one per-twitch metric row against another
func twitchChart(well Well, count int, x, y domain.MetricKind, yTitle string) *excelize.Chart {
	pos := well.Index()
	xRow, yRow := perTwitchMetricRow(pos, x), perTwitchMetricRow(pos, y)
	first, last := twitchCol(0), twitchCol(count-1)
	return &excelize.Chart{
		Type: excelize.Scatter,
		Series: []excelize.ChartSeries{{
			Name:       well.Name(),
			Categories: rangeRef(SheetPerTwitch, xRow, first, xRow, last),
			Values:     rangeRef(SheetPerTwitch, yRow, first, yRow, last),
			Line:       excelize.ChartLine{Type: excelize.ChartLineNone},
			Marker:     excelize.ChartMarker{Symbol: "circle", Size: 6},
		}},
		Title:     title(well.Name()),
		Dimension: excelize.ChartDimension{Width: tileWidth, Height: tileHeight},
		Legend:    excelize.ChartLegend{Position: "none"},
		XAxis:     excelize.ChartAxis{Title: title(x.DisplayName())},
		YAxis:     excelize.ChartAxis{MajorGridLines: true, Title: title(yTitle)},
	}
}

// writeTwitchCharts adds frequency over time and force against frequency
// charts for every well with at least one twitch
func (w *writer) writeTwitchCharts(ctx context.Context) error {
	n := 0
	for _, well := range w.in.Wells {
		ready, ok := well.Outcome.(MetricsReady)
		if !ok || ready.Metrics.Count() == 0 {
			continue
		}
		count := ready.Metrics.Count()
		w.progress(ctx, fmt.Sprintf("Creating twitch charts of well %s", well.Name()))

		row, col := runningTile(n, w.opts.ChartsPerRow)
		freq := twitchChart(well, count, domain.MetricTimepoint, domain.MetricFrequency, domain.MetricFrequency.DisplayName())
		if err := w.addChart(SheetFrequencyPlots, row, col, freq); err != nil {
			return err
		}
		force := twitchChart(well, count, domain.MetricFrequency, domain.MetricAmplitude, domain.MetricAmplitude.DisplayName())
		if err := w.addChart(SheetForceFrequencies, row, col, force); err != nil {
			return err
		}
		n++
	}
	return nil
}
