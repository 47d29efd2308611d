package config

// Application constants
const (
	AppName   = "platereport"
	EnvPrefix = "PLATEREPORT"

	DefaultLogLevel = "info"

	// DefaultSnapshotSeconds is the window shown by per-well snapshot charts
	DefaultSnapshotSeconds = 10

	// DefaultChartsPerRow is the tile count before full-length and twitch
	// charts wrap to the next row
	DefaultChartsPerRow = 6
)
