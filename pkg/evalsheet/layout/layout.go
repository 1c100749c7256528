// Package layout describes where grading data lives inside a template.
package layout

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidLayout indicates a layout with malformed coordinates.
var ErrInvalidLayout = errors.New("invalid layout")

// Layout maps the grading descriptor onto template coordinates.
type Layout struct {
	// Sheet is the 1-based index of the sheet receiving the data.
	Sheet int `yaml:"sheet,omitempty"`
	// Grupo, Asignatura and Maestro are the metadata cells.
	Grupo      string `yaml:"grupo,omitempty"`
	Asignatura string `yaml:"asignatura,omitempty"`
	Maestro    string `yaml:"maestro,omitempty"`
	// Weights lists the five weight cells in column order
	// (asistencia, actividades, evidencias, productoIntegrador, examen).
	Weights []string `yaml:"weights,omitempty"`
	// Roster locates the student block.
	Roster Roster `yaml:"roster,omitempty"`
	// Editable lists the ranges left unlocked on the data sheet.
	Editable []string `yaml:"editable,omitempty"`
	// Protected lists the 1-based sheet indexes to protect.
	Protected []int `yaml:"protected,omitempty"`
}

// Roster locates the student rows.
type Roster struct {
	// StartRow is the first row written.
	StartRow int `yaml:"startRow,omitempty"`
	// Number, Matricula and Nombre are column letters.
	Number    string `yaml:"number,omitempty"`
	Matricula string `yaml:"matricula,omitempty"`
	Nombre    string `yaml:"nombre,omitempty"`
}

// Default returns the coordinates of the stock evaluation template.
func Default() Layout {
	return Layout{
		Sheet:      1,
		Grupo:      "C5",
		Asignatura: "C6",
		Maestro:    "C7",
		Weights:    []string{"D7", "E7", "F7", "G7", "H7"},
		Roster: Roster{
			StartRow:  10,
			Number:    "A",
			Matricula: "B",
			Nombre:    "C",
		},
		Editable:  []string{"D6:BJ53"},
		Protected: []int{1, 2, 3, 4},
	}
}

// Load reads a YAML layout file. Fields absent from the file keep their
// default values. Empty lists count as absent, so a layout file cannot
// clear the editable ranges or the protected sheets.
func Load(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	return Parse(data)
}

// Parse decodes a YAML layout and fills unset fields from Default. Zero
// values, including empty lists, are unset.
func Parse(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if err := mergo.Merge(&l, Default()); err != nil {
		return Layout{}, err
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks every coordinate in the layout.
func (l Layout) Validate() error {
	if l.Sheet < 1 {
		return fmt.Errorf("%w: sheet index %d", ErrInvalidLayout, l.Sheet)
	}
	for _, c := range []string{l.Grupo, l.Asignatura, l.Maestro} {
		if err := checkCell(c); err != nil {
			return err
		}
	}
	if len(l.Weights) != 5 {
		return fmt.Errorf("%w: expected 5 weight cells, got %d", ErrInvalidLayout, len(l.Weights))
	}
	for _, c := range l.Weights {
		if err := checkCell(c); err != nil {
			return err
		}
	}
	if l.Roster.StartRow < 1 {
		return fmt.Errorf("%w: roster start row %d", ErrInvalidLayout, l.Roster.StartRow)
	}
	for _, col := range []string{l.Roster.Number, l.Roster.Matricula, l.Roster.Nombre} {
		if _, err := excelize.ColumnNameToNumber(col); err != nil {
			return fmt.Errorf("%w: roster column %q", ErrInvalidLayout, col)
		}
	}
	for _, ref := range l.Editable {
		if _, _, err := SplitRange(ref); err != nil {
			return err
		}
	}
	for _, idx := range l.Protected {
		if idx < 1 {
			return fmt.Errorf("%w: protected sheet index %d", ErrInvalidLayout, idx)
		}
	}
	return nil
}

// RosterCells returns the number, matricula and nombre cells for the i-th
// (0-based) student.
func (l Layout) RosterCells(i int) (number, matricula, nombre string) {
	row := l.Roster.StartRow + i
	return fmt.Sprintf("%s%d", l.Roster.Number, row),
		fmt.Sprintf("%s%d", l.Roster.Matricula, row),
		fmt.Sprintf("%s%d", l.Roster.Nombre, row)
}

// SplitRange parses a range like D6:BJ53 into its corners. A single cell
// is treated as a one-cell range.
func SplitRange(ref string) (first, last string, err error) {
	ref = strings.ReplaceAll(ref, "$", "")
	parts := strings.Split(ref, ":")
	switch len(parts) {
	case 1:
		parts = append(parts, parts[0])
	case 2:
	default:
		return "", "", fmt.Errorf("%w: range %q", ErrInvalidLayout, ref)
	}
	for _, p := range parts {
		if err := checkCell(p); err != nil {
			return "", "", err
		}
	}
	return parts[0], parts[1], nil
}

func checkCell(cell string) error {
	if _, _, err := excelize.CellNameToCoordinates(cell); err != nil {
		return fmt.Errorf("%w: cell %q", ErrInvalidLayout, cell)
	}
	return nil
}
