package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd, a := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := execute(context.Background(), cmd, a)
	return stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "platereport v"))
}

func TestSimulateReportInspect(t *testing.T) {
	t.Setenv("PLATEREPORT_REPORT_OUTPUT_DIR", t.TempDir())
	wells := filepath.Join(t.TempDir(), "wells")
	out := filepath.Join(t.TempDir(), "out")

	stdout, err := run(t, "simulate", "--out", wells, "--wells", "3", "--seconds", "5", "--flat-well", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 3 well files")

	stdout, err = run(t, "inspect", wells)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Plate barcode:  MA20123456")
	assert.Contains(t, stdout, "bessel-lowpass-10")
	assert.Contains(t, stdout, "C1")

	stdout, err = run(t, "report", wells, "--out", out, "--no-waveform-charts", "--csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, filepath.Join(out, "MA20123456-2020-08-17-14-58-10.xlsx"), lines[0])
	assert.FileExists(t, lines[1])

	f, err := excelize.OpenFile(lines[0])
	require.NoError(t, err)
	defer f.Close()
	desc, err := f.GetCellValue("aggregate-metrics", "E4")
	require.NoError(t, err)
	assert.Equal(t, "Error: Not Enough Twitches Detected", desc)
}

func TestReportRejectsUnknownFilter(t *testing.T) {
	_, err := run(t, "report", t.TempDir(), "--filter", "median")
	assert.Error(t, err)
}

func TestFailedReportStillWritesMetrics(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "platereport.prom")
	t.Setenv("PLATEREPORT_TELEMETRY_METRICS_FILE", metricsFile)
	wells := filepath.Join(t.TempDir(), "wells")

	_, err := run(t, "simulate", "--out", wells, "--wells", "1", "--seconds", "2")
	require.NoError(t, err)

	// the output directory cannot be created below a regular file
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	_, err = run(t, "report", wells, "--out", filepath.Join(blocker, "out"))
	require.Error(t, err)

	content, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "reports_written_total")
	assert.Contains(t, string(content), `status="failure"`)
}
