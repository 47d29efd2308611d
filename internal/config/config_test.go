package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "platereport/internal/errors"
)

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, ".", cfg.Report.OutputDir)
				assert.Equal(t, DefaultSnapshotSeconds, cfg.Report.SnapshotSeconds)
				assert.Equal(t, DefaultChartsPerRow, cfg.Report.ChartsPerRow)
				assert.True(t, cfg.Report.ContinuousWaveforms)
				assert.True(t, cfg.Report.WaveformCharts)
				assert.True(t, cfg.Report.TwitchCharts)
				assert.Equal(t, "none", cfg.Telemetry.Tracing)
			},
		},
		{
			name: "file overrides defaults",
			file: `
report:
  output_dir: /data/reports
  twitch_charts: false
  charts_per_row: 4
logging:
  level: debug
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/data/reports", cfg.Report.OutputDir)
				assert.False(t, cfg.Report.TwitchCharts)
				assert.True(t, cfg.Report.WaveformCharts)
				assert.Equal(t, 4, cfg.Report.ChartsPerRow)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "env overrides file",
			env: map[string]string{
				"PLATEREPORT_REPORT_OUTPUT_DIR":   "/env/out",
				"PLATEREPORT_TELEMETRY_TRACING":   "stdout",
				"PLATEREPORT_REPORT_NOISE_FILTER": "bessel-lowpass-30",
			},
			file: "report:\n  output_dir: /file/out\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/env/out", cfg.Report.OutputDir)
				assert.Equal(t, "stdout", cfg.Telemetry.Tracing)
				assert.Equal(t, "bessel-lowpass-30", cfg.Report.NoiseFilter)
			},
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"PLATEREPORT_LOGGING_LEVEL": "verbose"},
			wantErr: true,
		},
		{
			name:    "unknown noise filter",
			file:    "report:\n  noise_filter: chebyshev\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "report: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "platereport.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				require.Error(t, err)
				errType, ok := apperrors.TypeOf(err)
				assert.True(t, ok)
				assert.Equal(t, apperrors.ErrTypeConfig, errType)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateFileOutputNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""

	assert.Error(t, cfg.Validate())

	cfg.Logging.FilePath = "out.log"
	assert.NoError(t, cfg.Validate())
}
