package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

const covNumberFormat = "0.00%"

func (w *writer) writeAggregate(ctx context.Context) error {
	const sheet = SheetAggregate

	for idx, name := range w.in.Plate.WellNames() {
		if err := w.set(sheet, aggregateNameRow, aggregateCol(idx), name); err != nil {
			return err
		}
	}
	labels := map[int]string{
		aggregateTreatmentRow: "Treatment Description",
		aggregateCountRow:     "n (twitches)",
	}
	for row, label := range labels {
		if err := w.set(sheet, row, aggregateSubLabelCol, label); err != nil {
			return err
		}
	}

	kinds := domain.AggregateMetricKinds()
	for n, kind := range kinds {
		row := aggregateBlockRow(n)
		if err := w.set(sheet, row+aggMeanOffset, aggregateLabelCol, kind.DisplayName()); err != nil {
			return err
		}
		for i, label := range aggregateSubLabels {
			if err := w.set(sheet, row+i, aggregateSubLabelCol, label); err != nil {
				return err
			}
		}
	}

	for _, well := range w.in.Wells {
		col := aggregateCol(well.Index())
		treatment := well.Recording.LookupOr(domain.MetaTreatmentDescription, "")
		if err := w.set(sheet, aggregateTreatmentRow, col, treatment); err != nil {
			return err
		}

		switch o := well.Outcome.(type) {
		case MetricsReady:
			if err := w.set(sheet, aggregateCountRow, col, o.Metrics.Count()); err != nil {
				return err
			}
			for n, kind := range kinds {
				s := Aggregate(o.Metrics.Series(kind))
				values := []float64{s.Mean, s.StdDev, s.CoV, s.SEM}
				for i, v := range values {
					if err := w.set(sheet, aggregateBlockRow(n)+i, col, cellValue(v)); err != nil {
						return err
					}
				}
			}
		case MetricsUnavailable:
			w.logger.WarnContext(ctx, "well has no twitch metrics",
				"well", well.Name(), "error", o.Err)
			if err := w.set(sheet, aggregateCountRow, col, apperrors.NotAvailable); err != nil {
				return err
			}
			if err := w.set(sheet, aggregateErrorRow, col, o.Description); err != nil {
				return err
			}
			for n := range kinds {
				for i := range aggregateSubLabels {
					if err := w.set(sheet, aggregateBlockRow(n)+i, col, apperrors.NotAvailable); err != nil {
						return err
					}
				}
			}
		}
	}

	format := covNumberFormat
	style, err := w.f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return apperrors.NewStorageError("create CoV style", err)
	}
	firstCol, lastCol := aggregateCol(0), aggregateCol(w.in.Plate.NumWells()-1)
	for n := range kinds {
		row := aggregateBlockRow(n) + aggCoVOffset
		if err := w.f.SetCellStyle(sheet, cellName(row, firstCol), cellName(row, lastCol), style); err != nil {
			return apperrors.NewStorageError("apply CoV style", err)
		}
	}
	return nil
}

func (w *writer) writePerTwitch(ctx context.Context) error {
	const sheet = SheetPerTwitch

	byIndex := make(map[int]Well, len(w.in.Wells))
	for _, well := range w.in.Wells {
		byIndex[well.Index()] = well
	}
	kinds := domain.PerTwitchMetricKinds()

	for pos, name := range w.in.Plate.WellNames() {
		top := perTwitchBlockRow(pos)
		if err := w.set(sheet, top, 0, name); err != nil {
			return err
		}
		well, ok := byIndex[pos]
		if !ok {
			continue
		}
		for _, kind := range kinds {
			if err := w.set(sheet, perTwitchMetricRow(pos, kind), 0, kind.DisplayName()); err != nil {
				return err
			}
		}

		switch o := well.Outcome.(type) {
		case MetricsReady:
			header := make([]interface{}, o.Metrics.Count())
			for k := range header {
				header[k] = fmt.Sprintf("Twitch %d", k+1)
			}
			if len(header) > 0 {
				if err := w.setRow(sheet, top, twitchCol(0), header); err != nil {
					return err
				}
			}
			for _, kind := range kinds {
				series := o.Metrics.Series(kind)
				if len(series) == 0 {
					continue
				}
				values := make([]interface{}, len(series))
				for k, v := range series {
					values[k] = cellValue(v)
				}
				if err := w.setRow(sheet, perTwitchMetricRow(pos, kind), twitchCol(0), values); err != nil {
					return err
				}
			}
		case MetricsUnavailable:
			if err := w.setRow(sheet, top, twitchCol(0), []interface{}{apperrors.NotAvailable, o.Description}); err != nil {
				return err
			}
			for _, kind := range kinds {
				if err := w.set(sheet, perTwitchMetricRow(pos, kind), twitchCol(0), apperrors.NotAvailable); err != nil {
					return err
				}
			}
		}
		w.logger.DebugContext(ctx, "per-twitch block written", "well", name, "row", top)
	}
	return nil
}
