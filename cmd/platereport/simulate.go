package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"platereport/internal/files"
	"platereport/internal/wellfile"
	"platereport/pkg/contracts/domain"
)

type simulateFlags struct {
	outDir   string
	wells    int
	seconds  float64
	hz       float64
	optical  bool
	barcode  string
	flatWell int
	seed     int64
}

func newSimulateCmd(a *app) *cobra.Command {
	var f simulateFlags

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write synthetic well files for demos and tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSimulate(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.outDir, "out", "o", "simulated", "directory receiving the well files")
	flags.IntVar(&f.wells, "wells", 24, "number of wells, filled in plate order")
	flags.Float64Var(&f.seconds, "seconds", 10, "recording length in seconds")
	flags.Float64Var(&f.hz, "hz", 1, "pacing frequency in Hz")
	flags.BoolVar(&f.optical, "optical", false, "write tabular optical files instead of binary ones")
	flags.StringVar(&f.barcode, "barcode", "MA20123456", "plate barcode")
	flags.IntVar(&f.flatWell, "flat-well", -1, "index of a well recorded without twitches")
	flags.Int64Var(&f.seed, "seed", 1, "noise seed")
	return cmd
}

func (a *app) runSimulate(cmd *cobra.Command, f simulateFlags) error {
	plateLayout := domain.TwentyFourWellPlate()
	if f.wells < 1 || f.wells > plateLayout.NumWells() {
		return fmt.Errorf("wells must be between 1 and %d", plateLayout.NumWells())
	}
	if err := files.EnsureDirectory(f.outDir); err != nil {
		return err
	}

	for i := 0; i < f.wells; i++ {
		s := wellfile.DefaultSynthetic()
		s.WellIndex = i
		s.PlateBarcode = f.barcode
		s.Duration = time.Duration(f.seconds * float64(time.Second))
		s.TwitchHz = f.hz
		s.Seed = f.seed
		// vary the wells a little so the aggregate sheet is not uniform
		s.Amplitude *= 1 + 0.05*float64(i%4)
		if i == f.flatWell {
			s.TwitchHz, s.Baseline, s.Noise = 0, 0, 0
		}

		var path string
		var err error
		if f.optical {
			s.SamplingPeriod = domain.SamplingPeriodOptical
			s.TwitchesPointUp = false
			var rec *domain.WellRecording
			if rec, err = s.Generate(); err == nil {
				path = filepath.Join(f.outDir, fmt.Sprintf("%s__%s%s", rec.PlateBarcode, rec.WellName, wellfile.ExtOptical))
				err = wellfile.WriteOptical(path, rec)
			}
		} else {
			path, err = wellfile.WriteSynthetic(f.outDir, s)
		}
		if err != nil {
			return fmt.Errorf("write well %d: %w", i, err)
		}
		a.logger.DebugContext(cmd.Context(), "wrote synthetic well", "path", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d well files to %s\n", f.wells, f.outDir)
	return nil
}
