// Package exporter writes tables as CSV files for spreadsheet tools.
//
// A Table is anything with a header and indexed rows, such as the resampled
// waveforms of a plate. Output starts with a UTF-8 BOM unless WithoutBOM is
// used, and a file only appears at its final path once fully written.
//
// Example usage:
//
//	w := exporter.NewCSVWriter("/path/to/output")
//	path, err := w.WriteTable("plate-waveforms.csv", table)
package exporter
