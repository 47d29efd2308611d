package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of the report generator. It is written
	// into the metadata sheet of every workbook.
	Version = "1.2.0"

	// WorkbookFormatVersion identifies the sheet layout of generated reports
	WorkbookFormatVersion = "3"

	// WellFileFormatVersion is the binary well file version written by the encoder
	WellFileFormatVersion = "1.0.0"
)

var (
	// BuildTime is set during build using ldflags
	BuildTime = "unknown"

	// GitCommit is set during build using ldflags
	GitCommit = "unknown"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version        string `json:"version"`
	WorkbookFormat string `json:"workbook_format"`
	BuildTime      string `json:"build_time"`
	GitCommit      string `json:"git_commit"`
	GoVersion      string `json:"go_version"`
	OS             string `json:"os"`
	Architecture   string `json:"architecture"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:        Version,
		WorkbookFormat: WorkbookFormatVersion,
		BuildTime:      BuildTime,
		GitCommit:      GitCommit,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Architecture:   runtime.GOARCH,
	}
}

// GetVersionString returns a formatted version string
func GetVersionString() string {
	return fmt.Sprintf("platereport v%s", Version)
}

// GetFullVersionString returns a detailed version string
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf(
		"%s (workbook format %s, built: %s, commit: %s, go: %s, os: %s/%s)",
		GetVersionString(),
		info.WorkbookFormat,
		info.BuildTime,
		info.GitCommit,
		info.GoVersion,
		info.OS,
		info.Architecture,
	)
}
