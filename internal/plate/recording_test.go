package plate

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	apperrors "platereport/internal/errors"
	"platereport/internal/waveform"
	"platereport/internal/wellfile"
	"platereport/pkg/contracts/domain"
)

func synthetic(index int) wellfile.Synthetic {
	s := wellfile.DefaultSynthetic()
	s.WellIndex = index
	return s
}

func writeWells(t *testing.T, dir string, wells ...wellfile.Synthetic) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	paths := make([]string, len(wells))
	for i, s := range wells {
		p, err := wellfile.WriteSynthetic(dir, s)
		require.NoError(t, err)
		paths[i] = p
	}
	return paths
}

type progressLog struct {
	mu       sync.Mutex
	messages []string
}

func (l *progressLog) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func TestDefaultFileName(t *testing.T) {
	start := time.Date(2020, 8, 17, 14, 58, 10, 0, time.UTC)
	assert.Equal(t, "MA20123456-2020-08-17-14-58-10.xlsx", DefaultFileName("MA20123456", start))

	assert.Equal(t, "plate.xlsx", withExtension("plate"))
	assert.Equal(t, "plate.XLSX", withExtension("plate.XLSX"))
	assert.Equal(t, "plate.v2.xlsx", withExtension("plate.v2"))
}

func TestFromDirectory(t *testing.T) {
	root := t.TempDir()
	writeWells(t, filepath.Join(root, "nested", "run"), synthetic(4), synthetic(0))
	writeWells(t, root, synthetic(1))
	// platform junk next to the recordings
	require.NoError(t, os.MkdirAll(filepath.Join(root, "__MACOSX"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "__MACOSX", "._MA20123456__A3.wrec"), []byte("junk"), 0644))

	var log progressLog
	rec, err := Open(context.Background(), []string{root}, WithProgress(log.record))
	require.NoError(t, err)
	defer rec.Close()

	assert.Equal(t, []int{0, 1, 4}, rec.WellIndices())
	assert.Equal(t, "MA20123456", rec.Barcode())
	require.Len(t, log.messages, 3)
	assert.Equal(t, "Loading tissue and reference data... 33% (Well B1, 1 out of 3)", log.messages[0])
	assert.Equal(t, "Loading tissue and reference data... 100% (Well A2, 3 out of 3)", log.messages[2])

	well, err := rec.Well(4)
	require.NoError(t, err)
	assert.Equal(t, "A2", well.WellName)
}

func TestReportInInputDirectoryIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeWells(t, dir, synthetic(0), synthetic(1))

	first, err := Open(context.Background(), []string{dir})
	require.NoError(t, err)
	reportPath, err := first.WriteReport(context.Background(), dir,
		WithoutWaveformCharts(), WithoutTwitchCharts())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	var log progressLog
	again, err := Open(context.Background(), []string{dir}, WithProgress(log.record))
	require.NoError(t, err)
	defer again.Close()

	assert.Equal(t, []int{0, 1}, again.WellIndices())
	require.Len(t, log.messages, 2)
	assert.Equal(t, "Loading tissue and reference data... 50% (Well A1, 1 out of 2)", log.messages[0])
	assert.Equal(t, "Loading tissue and reference data... 100% (Well B1, 2 out of 2)", log.messages[1])

	_, err = New(context.Background(), []string{reportPath})
	assert.ErrorIs(t, err, apperrors.ErrNoWells)
}

func TestNewRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	first := writeWells(t, filepath.Join(dir, "one"), synthetic(2))
	second := writeWells(t, filepath.Join(dir, "two"), synthetic(2))

	_, err := New(context.Background(), append(first, second...))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateWell)

	_, err = New(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNoWells)

	junk := filepath.Join(dir, "junk.wrec")
	require.NoError(t, os.WriteFile(junk, []byte("not a recording"), 0644))
	_, err = New(context.Background(), []string{junk})
	assert.ErrorIs(t, err, apperrors.ErrUnknownFormat)
}

func TestPipelineTemplate(t *testing.T) {
	dir := t.TempDir()
	paths := writeWells(t, dir, synthetic(0))

	rec, err := New(context.Background(), paths)
	require.NoError(t, err)
	defer rec.Close()

	cfg, err := rec.PipelineTemplate()
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineConfig{NoiseFilter: domain.FilterBesselLowpass10, TissueSamplingPeriod: 9600}, cfg)

	// each call hands out an independent value
	cfg.NoiseFilter = domain.FilterNone
	again, err := rec.PipelineTemplate()
	require.NoError(t, err)
	assert.Equal(t, domain.FilterBesselLowpass10, again.NoiseFilter)

	explicit, err := New(context.Background(), paths, WithPipelineConfig(domain.PipelineConfig{NoiseFilter: domain.FilterNone}))
	require.NoError(t, err)
	defer explicit.Close()
	cfg, err = explicit.PipelineTemplate()
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineConfig{NoiseFilter: domain.FilterNone, TissueSamplingPeriod: 9600}, cfg)

	odd := synthetic(1)
	odd.SamplingPeriod = 5000
	oddRec, err := New(context.Background(), writeWells(t, filepath.Join(dir, "odd"), odd))
	require.NoError(t, err)
	defer oddRec.Close()
	_, err = oddRec.PipelineTemplate()
	errType, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeConfig, errType)
}

func TestPipelinesAreBuiltOnce(t *testing.T) {
	paths := writeWells(t, t.TempDir(), synthetic(0), synthetic(1))

	var mu sync.Mutex
	built := 0
	factory := func(cfg domain.PipelineConfig) waveform.Pipeline {
		mu.Lock()
		built++
		mu.Unlock()
		return waveform.NewPipeline(cfg)
	}

	rec, err := New(context.Background(), paths, WithPipelineFactory(factory))
	require.NoError(t, err)
	defer rec.Close()

	first, err := rec.Pipelines()
	require.NoError(t, err)
	second, err := rec.Pipelines()
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer())
	assert.Equal(t, 2, built)
}

func TestPointDownWellSubtractsReference(t *testing.T) {
	s := synthetic(0)
	s.Duration = 100 * time.Millisecond
	s.TwitchesPointUp = false
	rec, err := s.Generate()
	require.NoError(t, err)
	for i := range rec.Tissue.Values {
		rec.Tissue.Values[i] = 100
		rec.Reference.Values[i] = 40
	}
	path := filepath.Join(t.TempDir(), "MA20123456__A1"+wellfile.ExtBinary)
	require.NoError(t, wellfile.WriteFile(path, rec))

	recording, err := New(context.Background(), []string{path},
		WithPipelineConfig(domain.PipelineConfig{NoiseFilter: domain.FilterNone}))
	require.NoError(t, err)
	defer recording.Close()

	pipelines, err := recording.Pipelines()
	require.NoError(t, err)
	filtered, err := pipelines[0].FilteredWaveform()
	require.NoError(t, err)
	require.NotZero(t, filtered.Len())
	for _, v := range filtered.Values {
		assert.InDelta(t, -60, v, 1e-9)
	}
}

func TestReferenceWaveform(t *testing.T) {
	rec, err := New(context.Background(), writeWells(t, t.TempDir(), synthetic(3)))
	require.NoError(t, err)
	defer rec.Close()

	ref, err := rec.ReferenceWaveform(3)
	require.NoError(t, err)
	require.NotZero(t, ref.Len())
	ref.Values[0] = 1e9

	again, err := rec.ReferenceWaveform(3)
	require.NoError(t, err)
	assert.NotEqual(t, 1e9, again.Values[0])

	_, err = rec.ReferenceWaveform(5)
	errType, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeNotFound, errType)
}

func addToZip(t *testing.T, zw *zip.Writer, name, src string) {
	t.Helper()
	w, err := zw.Create(name)
	require.NoError(t, err)
	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()
	_, err = io.Copy(w, f)
	require.NoError(t, err)
}

func TestFromArchive(t *testing.T) {
	src := t.TempDir()
	paths := writeWells(t, src, synthetic(0), synthetic(5))

	archive := filepath.Join(t.TempDir(), "plate.zip")
	out, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	addToZip(t, zw, "Downloads/plate/"+filepath.Base(paths[0]), paths[0])
	addToZip(t, zw, "Downloads/plate/"+filepath.Base(paths[1]), paths[1])
	addToZip(t, zw, "__MACOSX/Downloads/plate/._"+filepath.Base(paths[0]), paths[0])
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	scratch := t.TempDir()
	rec, err := Open(context.Background(), []string{archive}, WithScratchDir(scratch))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, rec.WellIndices())

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, rec.Close())
	entries, err = os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// closing twice is harmless
	assert.NoError(t, rec.Close())
}

func TestWriteReport(t *testing.T) {
	defer goleak.VerifyNone(t)

	paths := writeWells(t, t.TempDir(), synthetic(0), synthetic(1), synthetic(2))
	var log progressLog
	rec, err := New(context.Background(), paths, WithParallelism(2), WithProgress(log.record))
	require.NoError(t, err)
	defer rec.Close()

	out := filepath.Join(t.TempDir(), "reports")
	path, err := rec.WriteReport(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "MA20123456-2020-08-17-14-58-10.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 8)

	count, err := f.GetCellValue("aggregate-metrics", "C3")
	require.NoError(t, err)
	assert.Equal(t, "8", count)
	assert.Contains(t, log.messages, "Creating chart of well C1 (3 out of 3)")

	// a second call writes a fresh workbook under another name
	named, err := rec.WriteReport(context.Background(), out, WithFileName("again"), WithoutContinuousWaveforms())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "again.xlsx"), named)
	g, err := excelize.OpenFile(named)
	require.NoError(t, err)
	defer g.Close()
	rows, err := g.GetRows("continuous-waveforms")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, rec.Close())
	_, err = rec.WriteReport(context.Background(), out)
	assert.ErrorIs(t, err, apperrors.ErrClosed)
	_, err = rec.Pipelines()
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Config() domain.PipelineConfig {
	return m.Called().Get(0).(domain.PipelineConfig)
}

func (m *mockPipeline) LoadRawData(tissue, reference domain.Waveform) error {
	return m.Called(tissue, reference).Error(0)
}

func (m *mockPipeline) FilteredWaveform() (domain.Waveform, error) {
	args := m.Called()
	return args.Get(0).(domain.Waveform), args.Error(1)
}

func (m *mockPipeline) TwitchMetrics() (domain.TwitchMetrics, error) {
	args := m.Called()
	return args.Get(0).(domain.TwitchMetrics), args.Error(1)
}

// mockFactory hands out the pipelines in well index order
func mockFactory(pipelines ...*mockPipeline) waveform.Factory {
	var mu sync.Mutex
	next := 0
	return func(domain.PipelineConfig) waveform.Pipeline {
		mu.Lock()
		defer mu.Unlock()
		p := pipelines[next]
		next++
		return p
	}
}

func mockedWell(t *testing.T, index int, metricsErr error) *mockPipeline {
	t.Helper()
	rec, err := synthetic(index).Generate()
	require.NoError(t, err)

	p := &mockPipeline{}
	p.On("LoadRawData", mock.Anything, mock.Anything).Return(nil).Once()
	p.On("FilteredWaveform").Return(rec.Tissue, nil)
	p.On("TwitchMetrics").Return(domain.TwitchMetrics{}, metricsErr)
	return p
}

func TestMixedSamplingPeriodsShareOneTimeColumn(t *testing.T) {
	dir := t.TempDir()

	magnetic := synthetic(0)
	magnetic.Duration = 4 * time.Second
	writeWells(t, dir, magnetic)

	optical := synthetic(1)
	optical.SamplingPeriod = domain.SamplingPeriodOptical
	optical.Duration = 6 * time.Second
	optical.TwitchesPointUp = false
	rec, err := optical.Generate()
	require.NoError(t, err)
	require.NoError(t, wellfile.WriteOptical(filepath.Join(dir, "MA20123456__B1"+wellfile.ExtOptical), rec))

	recording, err := Open(context.Background(), []string{dir})
	require.NoError(t, err)
	defer recording.Close()

	path, err := recording.WriteReport(context.Background(), t.TempDir(),
		WithoutWaveformCharts(), WithoutTwitchCharts())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("continuous-waveforms")
	require.NoError(t, err)
	// the optical well ends at 5.9984 s
	require.Len(t, rows, 1+599)

	prev := 0.0
	for i, row := range rows[1:] {
		seconds, err := strconv.ParseFloat(row[0], 64)
		require.NoError(t, err)
		assert.InDelta(t, float64(i+1)*0.01, seconds, 1e-9)
		assert.Greater(t, seconds, prev)
		prev = seconds
	}

	value := func(col, excelRow int) string {
		ref, err := excelize.CoordinatesToCellName(col, excelRow)
		require.NoError(t, err)
		v, err := f.GetCellValue("continuous-waveforms", ref)
		require.NoError(t, err)
		return v
	}
	// A1 in column B ends at 3.984 s, so 3.98 s is its last row
	assert.NotEmpty(t, value(2, 399))
	assert.Empty(t, value(2, 400))
	assert.Empty(t, value(2, 600))
	assert.NotEmpty(t, value(3, 600))
}

func TestWriteReportIsolatesDetectionFailures(t *testing.T) {
	paths := writeWells(t, t.TempDir(), synthetic(0), synthetic(1))
	ok := mockedWell(t, 0, nil)
	failing := mockedWell(t, 1, apperrors.ErrTwoPeaksInARow)

	rec, err := New(context.Background(), paths, WithPipelineFactory(mockFactory(ok, failing)))
	require.NoError(t, err)
	defer rec.Close()

	path, err := rec.WriteReport(context.Background(), t.TempDir(), WithoutWaveformCharts())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	cells := map[string]string{
		"C3": "0",
		"C5": apperrors.NotAvailable,
		"D3": apperrors.NotAvailable,
		"D4": "Error: Two Contractions in a Row Detected",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue("aggregate-metrics", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}

	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestWriteReportAbortsOnPipelineError(t *testing.T) {
	paths := writeWells(t, t.TempDir(), synthetic(0), synthetic(1))
	boom := errors.New("boom")

	rec, err := New(context.Background(), paths,
		WithPipelineFactory(mockFactory(mockedWell(t, 0, nil), mockedWell(t, 1, boom))))
	require.NoError(t, err)
	defer rec.Close()

	dir := t.TempDir()
	_, err = rec.WriteReport(context.Background(), dir)
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteWaveformCSV(t *testing.T) {
	short := synthetic(1)
	short.Duration = 2 * time.Second
	paths := writeWells(t, t.TempDir(), synthetic(0), short)

	rec, err := New(context.Background(), paths)
	require.NoError(t, err)
	defer rec.Close()

	path, err := rec.WriteWaveformCSV(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "MA20123456-2020-08-17-14-58-10-waveforms.csv", filepath.Base(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Time (seconds)", "A1", "B1"}, records[0])
	// 10 s of A1 at a 10 ms grid
	assert.Len(t, records, 1+998)
	assert.Equal(t, "0.01", records[1][0])
	assert.NotEmpty(t, records[1][2])
	assert.Empty(t, records[len(records)-1][2])
}
