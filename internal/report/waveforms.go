package report

import (
	"context"
	"fmt"

	"platereport/pkg/contracts/domain"
)

// writeWaveforms resamples every well onto the shared grid and writes the
// time column, one column per plate position and the peak marker columns
func (w *writer) writeWaveforms(ctx context.Context) error {
	waveforms := make([]domain.Waveform, len(w.in.Wells))
	for i, well := range w.in.Wells {
		waveforms[i] = well.Filtered
	}
	grid, err := GridFor(w.in.InterpolationPeriod, waveforms...)
	if err != nil {
		return err
	}
	w.grid = grid

	for _, well := range w.in.Wells {
		col, err := grid.Interpolate(well.Name(), well.Filtered)
		if err != nil {
			return err
		}
		w.columns[well.Index()] = col
	}

	header := []interface{}{"Time (seconds)"}
	for _, name := range w.in.Plate.WellNames() {
		header = append(header, name)
	}
	if err := w.setRow(SheetWaveforms, waveformHeaderRow, waveformTimeCol, header); err != nil {
		return err
	}

	width := 1 + w.in.Plate.NumWells()
	for i := 0; i < grid.Len(); i++ {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := make([]interface{}, width)
		row[waveformTimeCol] = grid.Seconds(i)
		for idx, c := range w.columns {
			if c.Has(i) {
				row[waveformCol(idx)] = c.At(i)
			}
		}
		if err := w.setRow(SheetWaveforms, waveformRow(i), waveformTimeCol, row); err != nil {
			return err
		}
	}

	for n, well := range w.in.Wells {
		w.progress(ctx, fmt.Sprintf("Writing waveform data of well %s (%d out of %d)", well.Name(), n+1, len(w.in.Wells)))
		if err := w.writeMarkers(well); err != nil {
			return err
		}
	}
	return nil
}

// writeMarkers places the resampled value on the grid row nearest each
// contraction and relaxation of a well with detected twitches
func (w *writer) writeMarkers(well Well) error {
	ready, ok := well.Outcome.(MetricsReady)
	if !ok || well.Filtered.Len() == 0 {
		return nil
	}
	col := w.columns[well.Index()]
	if len(col.Values) == 0 {
		return nil
	}

	markers := []struct {
		indices []int
		col     int
		header  string
	}{
		{ready.Metrics.Peaks, contractionCol(well.Index()), well.Name() + " Contractions"},
		{ready.Metrics.Valleys, relaxationCol(well.Index()), well.Name() + " Relaxations"},
	}
	for _, m := range markers {
		if err := w.set(SheetWaveforms, waveformHeaderRow, m.col, m.header); err != nil {
			return err
		}
		for _, idx := range m.indices {
			if idx < 0 || idx >= well.Filtered.Len() {
				continue
			}
			i := w.grid.Nearest(well.Filtered.Times[idx])
			if !col.Has(i) {
				continue
			}
			if err := w.set(SheetWaveforms, waveformRow(i), m.col, col.At(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
