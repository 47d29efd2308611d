package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"platereport/internal/infrastructure"
	"platereport/internal/plate"
	"platereport/pkg/contracts/domain"
)

func newInspectCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "inspect <zip|dir|file>...",
		Short: "List the wells of a recording and the pipeline it would use",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := infrastructure.EnsureRunID(cmd.Context())
			opts, err := a.recordingOptions(cmd, filter)
			if err != nil {
				return err
			}
			rec, err := plate.Open(ctx, args, opts...)
			if err != nil {
				return err
			}
			defer rec.Close()

			cfg, err := rec.PipelineTemplate()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plate barcode:  %s\n", rec.Barcode())
			fmt.Fprintf(out, "Noise filter:   %s\n", cfg.NoiseFilter)
			fmt.Fprintf(out, "Sampling:       %d µs (grid %d µs)\n",
				cfg.TissueSamplingPeriod, domain.InterpolationPeriod(cfg.TissueSamplingPeriod))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WELL\tINDEX\tSAMPLES\tSECONDS\tSERIAL")
			for _, idx := range rec.WellIndices() {
				w, err := rec.Well(idx)
				if err != nil {
					return err
				}
				var seconds float64
				if n := w.Tissue.Len(); n > 0 {
					seconds = float64(w.Tissue.Times[n-1]) / domain.MicrosecondsPerSecond
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%s\n", w.WellName, idx, w.Tissue.Len(), seconds,
					w.LookupOr(domain.MetaInstrumentSerial, "-"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "noise filter to report instead of the default")
	return cmd
}
