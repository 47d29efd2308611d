package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Labware describes the geometry of a multi-well plate. Wells are indexed
// column-major: A1 is 0, B1 is 1 and the first well of the second column
// follows the last row of the first.
type Labware struct {
	Rows    int `json:"rows" validate:"min=1,max=26"`
	Columns int `json:"columns" validate:"min=1"`
}

// TwentyFourWellPlate returns the 4x6 plate used by every recording.
func TwentyFourWellPlate() Labware {
	return Labware{Rows: 4, Columns: 6}
}

// NumWells returns the number of plate positions
func (l Labware) NumWells() int {
	return l.Rows * l.Columns
}

// Position returns the zero-based row and column of a well index
func (l Labware) Position(index int) (row, col int, err error) {
	if index < 0 || index >= l.NumWells() {
		return 0, 0, fmt.Errorf("well index %d out of range for %d-well plate", index, l.NumWells())
	}
	return index % l.Rows, index / l.Rows, nil
}

// IndexFromPosition converts a zero-based row and column to a well index
func (l Labware) IndexFromPosition(row, col int) (int, error) {
	if row < 0 || row >= l.Rows || col < 0 || col >= l.Columns {
		return 0, fmt.Errorf("position (%d, %d) outside %dx%d plate", row, col, l.Rows, l.Columns)
	}
	return col*l.Rows + row, nil
}

// WellName returns the display name of a well index, e.g. "A1"
func (l Labware) WellName(index int) (string, error) {
	row, col, err := l.Position(index)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%d", 'A'+row, col+1), nil
}

// WellIndex parses a display name such as "B3" into a well index
func (l Labware) WellIndex(name string) (int, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) < 2 {
		return 0, fmt.Errorf("invalid well name %q", name)
	}
	row := int(name[0] - 'A')
	col, err := strconv.Atoi(name[1:])
	if err != nil {
		return 0, fmt.Errorf("invalid well name %q: %w", name, err)
	}
	return l.IndexFromPosition(row, col-1)
}

// WellNames returns every well name in index order
func (l Labware) WellNames() []string {
	names := make([]string, l.NumWells())
	for i := range names {
		names[i], _ = l.WellName(i)
	}
	return names
}
