// Package wellfile reads single-well recordings from the supported on-disk
// formats.
package wellfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "platereport/internal/errors"
	"platereport/pkg/contracts/domain"
)

// Kind identifies a well file format
type Kind string

const (
	KindBinary  Kind = "binary"
	KindOptical Kind = "optical"
)

// File extensions recognised by directory and archive scanning
const (
	ExtBinary  = ".wrec"
	ExtOptical = ".xlsx"
)

// Source is one well file. The concrete variant is chosen once by Open.
type Source interface {
	Kind() Kind
	Path() string
	Read() (*domain.WellRecording, error)
}

var (
	binaryMagic = []byte("WREC")
	zipMagic    = []byte("PK\x03\x04")
)

// Open sniffs the file header and returns the matching Source
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("open well file", err).WithContext("path", path)
	}
	defer f.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, apperrors.NewParsingError("read well file header", fmt.Errorf("%w: %v", apperrors.ErrUnknownFormat, err)).
			WithContext("path", path)
	}

	switch {
	case bytes.Equal(head, binaryMagic):
		return &binarySource{path: path}, nil
	case bytes.Equal(head, zipMagic) && strings.EqualFold(filepath.Ext(path), ExtOptical):
		return &opticalSource{path: path}, nil
	default:
		return nil, apperrors.NewParsingError("detect well file format", apperrors.ErrUnknownFormat).
			WithContext("path", path)
	}
}

// IsWellFile reports whether a file name carries a well file extension
func IsWellFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "._") || strings.HasPrefix(base, "~$") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ExtBinary || ext == ExtOptical
}

// requireMetadata rejects recordings missing a field every report needs
func requireMetadata(path string, rec *domain.WellRecording) error {
	var missing string
	switch {
	case rec.PlateBarcode == "":
		missing = "plate barcode"
	case rec.WellName == "":
		missing = "well name"
	case rec.RecordingStart.IsZero():
		missing = "recording start"
	case rec.TissueSamplingPeriod <= 0:
		missing = "tissue sampling period"
	}
	if missing != "" {
		return apperrors.NewMetadataError(path, fmt.Errorf("%w: %s", apperrors.ErrMetadataNotFound, missing))
	}
	if len(rec.Tissue.Times) != len(rec.Tissue.Values) || len(rec.Reference.Times) != len(rec.Reference.Values) {
		return apperrors.NewParsingError("mismatched time and value counts", nil).WithContext("path", path)
	}
	return nil
}
