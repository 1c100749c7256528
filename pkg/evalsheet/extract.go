package evalsheet

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/layout"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
	"github.com/xuri/excelize/v2"
)

// Extract reads the grading data back out of a generated workbook. The
// roster ends at the first row with neither registration id nor name.
func Extract(path string, l layout.Layout) (*models.Evaluation, error) {
	if err := checkExists(path, ErrFileNotFound); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if l.Sheet > len(sheets) {
		return nil, fmt.Errorf("%w: %d (workbook has %d)", workbook.ErrSheetIndex, l.Sheet, len(sheets))
	}
	sheetName := sheets[l.Sheet-1]

	ev := &models.Evaluation{}
	for _, c := range []struct {
		cell string
		dst  *string
	}{
		{l.Grupo, &ev.Grupo},
		{l.Asignatura, &ev.Asignatura},
		{l.Maestro, &ev.Maestro},
	} {
		if *c.dst, err = f.GetCellValue(sheetName, c.cell); err != nil {
			return nil, err
		}
	}

	var pct [5]float64
	for i, cell := range l.Weights {
		raw, err := f.GetCellValue(sheetName, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		pct[i] = toPercentage(raw)
	}
	ev.Ponderaciones = models.Weights{
		Asistencia:         pct[0],
		Actividades:        pct[1],
		Evidencias:         pct[2],
		ProductoIntegrador: pct[3],
		Examen:             pct[4],
	}

	students, err := extractRoster(f, sheetName, l.Roster)
	if err != nil {
		return nil, err
	}
	ev.Alumnos = students
	return ev, nil
}

func extractRoster(f *excelize.File, sheetName string, r layout.Roster) ([]models.Student, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	matriculaCol, err := excelize.ColumnNameToNumber(r.Matricula)
	if err != nil {
		return nil, err
	}
	nombreCol, err := excelize.ColumnNameToNumber(r.Nombre)
	if err != nil {
		return nil, err
	}

	var students []models.Student
	for rowIdx := r.StartRow - 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		s := models.Student{
			Matricula: columnValue(row, matriculaCol),
			Nombre:    columnValue(row, nombreCol),
		}
		if s.Matricula == "" && s.Nombre == "" {
			break
		}
		students = append(students, s)
	}
	return students, nil
}

// columnValue returns the value at a 1-based column, or "" past the end of
// the row.
func columnValue(row []string, col int) string {
	if col > len(row) {
		return ""
	}
	return row[col-1]
}

// toPercentage converts a stored fraction back to a percentage, rounded to
// absorb float noise (0.1*100 is not exactly 10). Non-numeric values read
// as 0.
func toPercentage(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return math.Round(v*100*1e6) / 1e6
}
