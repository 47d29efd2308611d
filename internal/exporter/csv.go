package exporter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	apperrors "platereport/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a rectangular data set written row by row
type Table interface {
	Header() []string
	Len() int
	Row(i int) []string
}

// Rows is a Table held in memory
type Rows struct {
	Columns []string
	Records [][]string
}

func (r Rows) Header() []string   { return r.Columns }
func (r Rows) Len() int           { return len(r.Records) }
func (r Rows) Row(i int) []string { return r.Records[i] }

// CSVWriter writes tables below baseDir
type CSVWriter struct {
	baseDir string
	noBOM   bool
	logger  *slog.Logger
}

// NewCSVWriter creates a writer resolving relative paths against baseDir.
// Files start with a UTF-8 BOM so Excel picks the right encoding.
func NewCSVWriter(baseDir string) *CSVWriter {
	return &CSVWriter{baseDir: baseDir, logger: slog.Default()}
}

// WithoutBOM drops the byte order mark
func (w *CSVWriter) WithoutBOM() *CSVWriter {
	c := *w
	c.noBOM = true
	return &c
}

// WithLogger replaces the logger used for write notices
func (w *CSVWriter) WithLogger(logger *slog.Logger) *CSVWriter {
	c := *w
	if logger != nil {
		c.logger = logger
	}
	return &c
}

// WriteTable writes t to filePath and returns the resolved path. Rows go to
// a temporary file in the target directory which replaces filePath only once
// every row is flushed.
func (w *CSVWriter) WriteTable(filePath string, t Table) (path string, err error) {
	path = w.resolvePath(filePath)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewStorageError("create directory", err).WithContext("path", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", apperrors.NewStorageError("create file", err).WithContext("path", path)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if !w.noBOM {
		if _, err := buf.Write(utf8BOM); err != nil {
			return "", apperrors.NewStorageError("write BOM", err)
		}
	}
	cw := csv.NewWriter(buf)
	if header := t.Header(); len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", apperrors.NewStorageError("flush csv", err)
	}
	if err := buf.Flush(); err != nil {
		return "", apperrors.NewStorageError("flush csv", err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperrors.NewStorageError("close csv", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", apperrors.NewStorageError("rename csv", err).WithContext("path", path)
	}

	w.logger.Info("csv written",
		slog.String("path", path),
		slog.Int("rows", t.Len()))
	return path, nil
}

// FormatFloat renders v for a CSV cell, shortest form that round trips
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
