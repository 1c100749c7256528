package evalsheet

import (
	"math"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
)

// weightTolerance absorbs float rounding when summing percentages.
const weightTolerance = 1e-6

var (
	msgNegativeWeight = z.Message("La ponderación no puede ser negativa")
	msgWeightOver100  = z.Message("La ponderación no puede exceder 100")
)

var weightsSchema = z.Struct(z.Shape{
	"asistencia":         z.Float64().GTE(0, msgNegativeWeight).LTE(100, msgWeightOver100),
	"actividades":        z.Float64().GTE(0, msgNegativeWeight).LTE(100, msgWeightOver100),
	"evidencias":         z.Float64().GTE(0, msgNegativeWeight).LTE(100, msgWeightOver100),
	"productoIntegrador": z.Float64().GTE(0, msgNegativeWeight).LTE(100, msgWeightOver100),
	"examen":             z.Float64().GTE(0, msgNegativeWeight).LTE(100, msgWeightOver100),
})

var studentSchema = z.Struct(z.Shape{
	"matricula": z.String().Required(z.Message("La matrícula es requerida")),
	"nombre":    z.String().Required(z.Message("El nombre del alumno es requerido")),
})

var evaluationSchema = z.Struct(z.Shape{
	"maestro":       z.String().Required(z.Message("El nombre del maestro es requerido")),
	"grupo":         z.String().Required(z.Message("El grupo es requerido")),
	"asignatura":    z.String().Required(z.Message("La asignatura es requerida")),
	"ponderaciones": weightsSchema,
	"alumnos":       z.Slice(studentSchema),
})

// Validate checks an evaluation before generation: required text fields,
// weights within 0-100 that total 100, and a non-empty roster. With
// requirePeriod, safis must be set as well. It returns a *ValidationError.
func Validate(ev *models.Evaluation, requirePeriod bool) error {
	verr := &ValidationError{}

	for key, issues := range evaluationSchema.Validate(ev) {
		if strings.HasPrefix(key, "$") {
			continue
		}
		for _, issue := range issues {
			verr.add(key, issue.Message)
		}
	}

	if requirePeriod && strings.TrimSpace(ev.Safis) == "" {
		verr.add("safis", "El periodo es requerido")
	}
	if math.Abs(ev.Ponderaciones.Total()-100) > weightTolerance {
		verr.add("ponderaciones", "Las ponderaciones deben sumar 100%")
	}
	if len(ev.Alumnos) == 0 {
		verr.add("alumnos", "Debe haber al menos un alumno")
	}

	if len(verr.Issues) > 0 {
		return verr
	}
	return nil
}
