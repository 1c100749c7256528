// Package macro holds the VBA weighting form injected into evaluation
// workbooks.
package macro

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// FormName is the VBA component name of the weighting form.
const FormName = "frmPonderaciones"

// Control ProgIDs understood by the VBE designer.
const (
	ProgIDLabel         = "Forms.Label.1"
	ProgIDTextBox       = "Forms.TextBox.1"
	ProgIDCommandButton = "Forms.CommandButton.1"
)

//go:embed vba/*.bas
var sources embed.FS

var templates = template.Must(template.ParseFS(sources, "vba/*.bas"))

// Project is the rendered macro payload for one workbook.
type Project struct {
	// ThisWorkbook is appended to the ThisWorkbook code module.
	ThisWorkbook string
	// Form describes the UserForm and its controls.
	Form Form
	// FormCode is added to the UserForm code module.
	FormCode string
}

// Form is a UserForm definition.
type Form struct {
	Name     string
	Caption  string
	Width    float64
	Height   float64
	Controls []Control
}

// Control is a single designer control.
type Control struct {
	ProgID  string
	Name    string
	Caption string
	Left    float64
	Top     float64
	Width   float64
	Height  float64
	Bold    bool
}

// Field is a weighting input row on the form.
type Field struct {
	Label   string
	TextBox string
	Top     float64
	Default int
}

// Fields lists the weighting rows in sheet column order.
var Fields = []Field{
	{"Asistencia:", "txtAsistencia", 20, 10},
	{"Actividades:", "txtActividades", 50, 20},
	{"Evidencias:", "txtEvidencias", 80, 20},
	{"Producto Integrador:", "txtProducto", 110, 20},
	{"Examen:", "txtExamen", 140, 30},
}

type renderData struct {
	FormName string
	Sheet    int
	Weights  []string
	Password string
	Fields   []Field
}

// NewProject renders the macro sources for a data sheet, its five weight
// cells, and the sheet protection password.
func NewProject(sheet int, weightCells []string, password string) (*Project, error) {
	if len(weightCells) != len(Fields) {
		return nil, fmt.Errorf("macro: expected %d weight cells, got %d", len(Fields), len(weightCells))
	}
	data := renderData{
		FormName: FormName,
		Sheet:    sheet,
		Weights:  weightCells,
		Password: strings.ReplaceAll(password, `"`, `""`),
		Fields:   Fields,
	}

	thisWorkbook, err := render("thisworkbook.bas", data)
	if err != nil {
		return nil, err
	}
	formCode, err := render("form.bas", data)
	if err != nil {
		return nil, err
	}

	return &Project{
		ThisWorkbook: thisWorkbook,
		Form:         weightingForm(),
		FormCode:     formCode,
	}, nil
}

func render(name string, data renderData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("macro: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func weightingForm() Form {
	f := Form{
		Name:    FormName,
		Caption: "Configurar Ponderaciones",
		Width:   320,
		Height:  280,
	}
	for _, field := range Fields {
		f.Controls = append(f.Controls,
			Control{ProgID: ProgIDLabel, Caption: field.Label, Left: 20, Top: field.Top, Width: 120, Height: 18},
			Control{ProgID: ProgIDTextBox, Name: field.TextBox, Left: 150, Top: field.Top, Width: 50, Height: 18},
			Control{ProgID: ProgIDLabel, Caption: "%", Left: 205, Top: field.Top, Width: 20, Height: 18},
		)
	}
	f.Controls = append(f.Controls,
		Control{ProgID: ProgIDLabel, Name: "lblTotal", Caption: "Total: 100%", Left: 20, Top: 180, Width: 150, Height: 20, Bold: true},
		Control{ProgID: ProgIDCommandButton, Name: "btnAceptar", Caption: "Aceptar", Left: 80, Top: 210, Width: 70, Height: 25},
		Control{ProgID: ProgIDCommandButton, Name: "btnCancelar", Caption: "Cancelar", Left: 160, Top: 210, Width: 70, Height: 25},
	)
	return f
}
