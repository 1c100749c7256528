package evalsheet

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
	"github.com/xuri/excelize/v2"
)

// Columns of the school roster export (1-based).
const (
	rosterMatriculaColumn = 3
	rosterNombreColumn    = 4
)

// Registration ids are at least eight digits.
var matriculaPattern = regexp.MustCompile(`^\d{8,}$`)

// LoadRoster reads students from the first sheet of a roster export:
// registration id in column C, name in column D. Rows without a valid
// registration id or without a name (headers, totals, blank lines) are
// skipped. A roster with no valid row is ErrNoStudents.
func LoadRoster(path string) ([]models.Student, error) {
	if err := checkExists(path, ErrFileNotFound); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrNoStudents, path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	var students []models.Student
	for _, row := range rows {
		matricula := strings.TrimSpace(columnValue(row, rosterMatriculaColumn))
		nombre := strings.TrimSpace(columnValue(row, rosterNombreColumn))
		if nombre == "" || !matriculaPattern.MatchString(matricula) {
			continue
		}
		students = append(students, models.Student{Matricula: matricula, Nombre: nombre})
	}

	if len(students) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStudents, path)
	}
	return students, nil
}
