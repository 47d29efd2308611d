// Package config loads platereport configuration.
//
// # Configuration Sources
//
// Configuration is layered in the following order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables follow the pattern PLATEREPORT_<SECTION>_<FIELD>:
//
//	PLATEREPORT_LOGGING_LEVEL=debug
//	PLATEREPORT_REPORT_OUTPUT_DIR=/data/reports
//	PLATEREPORT_REPORT_TWITCH_CHARTS=false
//	PLATEREPORT_TELEMETRY_TRACING=stdout
//
// # Usage
//
//	cfg, err := config.LoadFile(path)
//	if err != nil {
//	    return err
//	}
package config
