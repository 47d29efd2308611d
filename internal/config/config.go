package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "platereport/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// ReportConfig controls workbook generation
type ReportConfig struct {
	OutputDir           string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	NoiseFilter         string `yaml:"noise_filter" envconfig:"NOISE_FILTER" validate:"omitempty,oneof=none bessel-lowpass-10 bessel-lowpass-30 butterworth-lowpass-30"`
	SnapshotSeconds     int    `yaml:"snapshot_seconds" envconfig:"SNAPSHOT_SECONDS" validate:"min=1,max=600"`
	ChartsPerRow        int    `yaml:"charts_per_row" envconfig:"CHARTS_PER_ROW" validate:"min=1,max=24"`
	Parallelism         int    `yaml:"parallelism" envconfig:"PARALLELISM" validate:"min=0,max=64"`
	ContinuousWaveforms bool   `yaml:"continuous_waveforms" envconfig:"CONTINUOUS_WAVEFORMS"`
	WaveformCharts      bool   `yaml:"waveform_charts" envconfig:"WAVEFORM_CHARTS"`
	TwitchCharts        bool   `yaml:"twitch_charts" envconfig:"TWITCH_CHARTS"`
}

// TelemetryConfig selects trace and metric exporters. Both write to local
// files or stdout only.
type TelemetryConfig struct {
	Tracing     string  `yaml:"tracing" envconfig:"TRACING" validate:"oneof=none stdout"`
	SampleRate  float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE" validate:"min=0,max=1"`
	MetricsFile string  `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Load builds the configuration from defaults, the first config file found
// in the usual locations, and PLATEREPORT_* environment variables.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).WithContext("path", path)
		}
	}

	// Fields without a matching variable are left untouched, so env
	// overrides file and file overrides defaults.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays YAML file content onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field constraints
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewConfigError("config validation failed", err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return apperrors.NewConfigError("config validation failed", err).
			WithContext("fields", strings.Join(fields, ", "))
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"platereport.yaml",
		"configs/platereport.yaml",
		"../configs/platereport.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   "json",
			Output:   "console",
			FilePath: "logs/platereport.log",
		},
		Report: ReportConfig{
			OutputDir:           ".",
			SnapshotSeconds:     DefaultSnapshotSeconds,
			ChartsPerRow:        DefaultChartsPerRow,
			ContinuousWaveforms: true,
			WaveformCharts:      true,
			TwitchCharts:        true,
		},
		Telemetry: TelemetryConfig{
			Tracing:    "none",
			SampleRate: 1,
		},
	}
}
