package evalsheet

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

func sampleEvaluation() *models.Evaluation {
	return &models.Evaluation{
		Grupo:      "3A",
		Asignatura: "Matemáticas I",
		Maestro:    "Ana López",
		Safis:      "2024-1",
		Ponderaciones: models.Weights{
			Asistencia:         10,
			Actividades:        20,
			Evidencias:         20,
			ProductoIntegrador: 20,
			Examen:             30,
		},
		Alumnos: []models.Student{
			{Matricula: "A001", Nombre: "Luis Pérez"},
			{Matricula: "A002", Nombre: "María Gómez"},
			{Matricula: "A003", Nombre: "José Ruiz"},
		},
	}
}

func writeInput(t *testing.T, ev *models.Evaluation) string {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Failed to marshal input: %v", err)
	}
	path := filepath.Join(t.TempDir(), "input.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	return path
}

func TestGenerateMissingInput(t *testing.T) {
	opts, opener, _ := newFakeOptions(&fakeWorkbook{sheets: 4})
	dir := t.TempDir()

	err := Generate(context.Background(), filepath.Join(dir, "missing.json"), writeTemplate(t, 1), filepath.Join(dir, "out.xlsm"), opts)
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("Expected ErrInputNotFound, got %v", err)
	}
	if opener.opens != 0 {
		t.Errorf("Expected no backend to be opened, got %d", opener.opens)
	}
}

func TestGenerateInvalidJSON(t *testing.T) {
	opts, opener, _ := newFakeOptions(&fakeWorkbook{sheets: 4})
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	if err := os.WriteFile(input, []byte(`{"grupo": "3A",`), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Generate(context.Background(), input, writeTemplate(t, 1), filepath.Join(dir, "out.xlsm"), opts)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("Expected ErrInvalidJSON, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("Expected message to mention invalid JSON, got %q", err.Error())
	}
	if opener.opens != 0 {
		t.Errorf("Expected no backend to be opened, got %d", opener.opens)
	}
}

func TestGenerateMissingTemplate(t *testing.T) {
	opts, opener, _ := newFakeOptions(&fakeWorkbook{sheets: 4})
	dir := t.TempDir()

	err := Generate(context.Background(), writeInput(t, sampleEvaluation()), filepath.Join(dir, "Template.xlsx"), filepath.Join(dir, "out.xlsm"), opts)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("Expected ErrTemplateNotFound, got %v", err)
	}
	if opener.opens != 0 {
		t.Errorf("Expected no backend to be opened, got %d", opener.opens)
	}
}

func TestGenerateStrictRejectsInvalidWeights(t *testing.T) {
	opts, opener, _ := newFakeOptions(&fakeWorkbook{sheets: 4})
	opts.Strict = true
	ev := sampleEvaluation()
	ev.Ponderaciones.Examen = 50

	err := Generate(context.Background(), writeInput(t, ev), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if opener.opens != 0 {
		t.Errorf("Expected no backend to be opened, got %d", opener.opens)
	}
}

func TestGenerateLenientAcceptsPartialInput(t *testing.T) {
	wb := &fakeWorkbook{sheets: 4}
	opts, _, _ := newFakeOptions(wb)
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	if err := os.WriteFile(input, []byte(`{"grupo": "3A"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Generate(context.Background(), input, writeTemplate(t, 1), filepath.Join(dir, "out.xlsm"), opts); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	values := wb.values()
	if values["C5"] != "3A" {
		t.Errorf("Expected C5 '3A', got %v", values["C5"])
	}
	if values["C6"] != "" || values["C7"] != "" {
		t.Errorf("Expected missing fields to be written empty, got %v / %v", values["C6"], values["C7"])
	}
	if values["D7"] != 0.0 {
		t.Errorf("Expected zero weight, got %v", values["D7"])
	}
}

func TestBuildWritesMetadataAndWeights(t *testing.T) {
	wb := &fakeWorkbook{sheets: 4}
	opts, _, _ := newFakeOptions(wb)

	if err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	values := wb.values()
	expected := map[string]any{
		"C5": "3A",
		"C6": "Matemáticas I",
		"C7": "Ana López",
		"D7": 0.1,
		"E7": 0.2,
		"F7": 0.2,
		"G7": 0.2,
		"H7": 0.3,
	}
	for cell, want := range expected {
		if values[cell] != want {
			t.Errorf("Cell %s = %v, expected %v", cell, values[cell], want)
		}
	}
	for _, c := range wb.callsOf("SetValue") {
		if c.sheet != 1 {
			t.Errorf("Expected writes on sheet 1, got sheet %d for %s", c.sheet, c.ref)
		}
	}
}

func TestBuildWritesRosterInOrder(t *testing.T) {
	wb := &fakeWorkbook{sheets: 4}
	opts, _, _ := newFakeOptions(wb)
	ev := sampleEvaluation()

	if err := Build(context.Background(), ev, writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	values := wb.values()
	for i, s := range ev.Alumnos {
		row := 10 + i
		number, matricula, nombre := opts.Layout.RosterCells(i)
		if values[number] != i+1 {
			t.Errorf("Row %d number = %v, expected %d", row, values[number], i+1)
		}
		if values[matricula] != s.Matricula {
			t.Errorf("Row %d matricula = %v, expected %s", row, values[matricula], s.Matricula)
		}
		if values[nombre] != s.Nombre {
			t.Errorf("Row %d nombre = %v, expected %s", row, values[nombre], s.Nombre)
		}
	}
	if _, ok := values["A13"]; ok {
		t.Error("Expected no roster row after the last student")
	}

	// 3 metadata + 5 weights + 3 per student
	if got, want := len(wb.callsOf("SetValue")), 3+5+3*len(ev.Alumnos); got != want {
		t.Errorf("Expected %d writes, got %d", want, got)
	}
}

func TestBuildProtection(t *testing.T) {
	wb := &fakeWorkbook{sheets: 2}
	opts, _, hook := newFakeOptions(wb)
	opts.Password = "secret"

	if err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	unlocks := wb.callsOf("UnlockRange")
	if len(unlocks) != 1 || unlocks[0].ref != "D6:BJ53" || unlocks[0].sheet != 1 {
		t.Errorf("Unexpected unlock calls: %+v", unlocks)
	}

	protects := wb.callsOf("Protect")
	if len(protects) != 2 {
		t.Fatalf("Expected 2 protected sheets, got %d", len(protects))
	}
	for i, c := range protects {
		if c.sheet != i+1 {
			t.Errorf("Expected sheet %d protected, got %d", i+1, c.sheet)
		}
		if p := c.value.(workbook.Protection); p != workbook.LockedDown("secret") {
			t.Errorf("Unexpected protection: %+v", p)
		}
	}

	var skipped int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "not found") {
			skipped++
		}
	}
	if skipped != 2 {
		t.Errorf("Expected 2 skipped-sheet warnings, got %d", skipped)
	}

	// Unlock must precede protection, and saving comes last.
	var order []string
	for _, c := range wb.calls {
		if c.op != "SetValue" {
			order = append(order, c.op)
		}
	}
	if len(order) == 0 || order[len(order)-1] != "SaveAs" {
		t.Errorf("Expected SaveAs last, got %v", order)
	}
	if order[0] != "InjectMacros" || order[1] != "UnlockRange" {
		t.Errorf("Unexpected call order: %v", order)
	}
}

func TestBuildForm(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		injectForm bool
		expected   int
	}{
		{"xlsm with form", "out.xlsm", true, 1},
		{"xlsm without form", "out.xlsm", false, 0},
		{"xlsx never carries form", "out.xlsx", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := &fakeWorkbook{sheets: 4}
			opts, _, _ := newFakeOptions(wb)
			opts.InjectForm = tt.injectForm

			if err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), tt.output), opts); err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if got := len(wb.callsOf("InjectMacros")); got != tt.expected {
				t.Errorf("Expected %d InjectMacros calls, got %d", tt.expected, got)
			}
		})
	}
}

func TestBuildFormFailureIsWarning(t *testing.T) {
	wb := &fakeWorkbook{sheets: 4, failOn: "InjectMacros"}
	opts, _, hook := newFakeOptions(wb)

	if err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts); err != nil {
		t.Fatalf("Build should survive a form failure, got %v", err)
	}
	if len(wb.callsOf("SaveAs")) != 1 {
		t.Error("Expected the workbook to be saved")
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data[logrus.ErrorKey] == errInjected {
			warned = true
		}
	}
	if !warned {
		t.Error("Expected a warning carrying the injection error")
	}
}

func TestBuildReleasesOnFailure(t *testing.T) {
	tests := []struct {
		failOn string
		step   string
	}{
		{"SetValue", "metadata"},
		{"UnlockRange", "unlock"},
		{"Protect", "protect"},
		{"SaveAs", "save"},
	}

	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			wb := &fakeWorkbook{sheets: 4, failOn: tt.failOn}
			opts, opener, _ := newFakeOptions(wb)

			err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts)
			if !errors.Is(err, ErrGenerationFailed) {
				t.Fatalf("Expected ErrGenerationFailed, got %v", err)
			}
			if !errors.Is(err, errInjected) {
				t.Errorf("Expected the backend error to be wrapped, got %v", err)
			}
			var gerr *GenerationError
			if !errors.As(err, &gerr) || gerr.Step != tt.step {
				t.Errorf("Expected failure at step %q, got %v", tt.step, err)
			}
			if opener.releases != 1 || wb.closed != 1 {
				t.Errorf("Expected one release and close, got %d / %d", opener.releases, wb.closed)
			}
		})
	}
}

func TestBuildOpenFailure(t *testing.T) {
	opts, opener, _ := newFakeOptions(&fakeWorkbook{})
	opener.err = workbook.ErrBackendUnavailable

	err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts)
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, workbook.ErrBackendUnavailable) {
		t.Fatalf("Expected wrapped ErrBackendUnavailable, got %v", err)
	}
	if opener.releases != 1 {
		t.Errorf("Expected release to be called, got %d", opener.releases)
	}
}

func TestBuildOpenFailureWithoutRelease(t *testing.T) {
	opts, _, _ := newFakeOptions(&fakeWorkbook{})
	opts.Opener = func(string, workbook.OpenOptions) (workbook.Workbook, func(), error) {
		return nil, nil, workbook.ErrBackendUnavailable
	}

	err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts)
	if !errors.Is(err, workbook.ErrBackendUnavailable) {
		t.Fatalf("Expected wrapped ErrBackendUnavailable, got %v", err)
	}
}

func TestBuildReleasesOnSuccess(t *testing.T) {
	wb := &fakeWorkbook{sheets: 4}
	opts, opener, _ := newFakeOptions(wb)

	if err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if opener.releases != 1 {
		t.Errorf("Expected one release, got %d", opener.releases)
	}
}

func TestBuildFormat(t *testing.T) {
	tests := []struct {
		output   string
		explicit workbook.Format
		path     string
		expected workbook.Format
	}{
		{"out.xlsm", "", "out.xlsm", workbook.FormatXLSM},
		{"out.xlsx", "", "out.xlsx", workbook.FormatXLSX},
		{"out", workbook.FormatXLSM, "out.xlsm", workbook.FormatXLSM},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			wb := &fakeWorkbook{sheets: 4}
			opts, _, _ := newFakeOptions(wb)
			opts.Format = tt.explicit
			dir := t.TempDir()

			if err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(dir, tt.output), opts); err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			saves := wb.callsOf("SaveAs")
			if len(saves) != 1 {
				t.Fatalf("Expected one SaveAs, got %d", len(saves))
			}
			if saves[0].ref != filepath.Join(dir, tt.path) || saves[0].value != tt.expected {
				t.Errorf("SaveAs(%s, %v), expected (%s, %s)", saves[0].ref, saves[0].value, tt.path, tt.expected)
			}
		})
	}
}

func TestBuildFormatMismatch(t *testing.T) {
	opts, opener, _ := newFakeOptions(&fakeWorkbook{sheets: 4})
	opts.Format = workbook.FormatXLSM

	err := Build(context.Background(), sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsx"), opts)
	if !errors.Is(err, workbook.ErrFormatMismatch) {
		t.Fatalf("Expected ErrFormatMismatch, got %v", err)
	}
	if opener.opens != 0 {
		t.Error("Expected no backend to be opened")
	}
}

func TestBuildCanceled(t *testing.T) {
	wb := &fakeWorkbook{sheets: 4}
	opts, opener, _ := newFakeOptions(wb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Build(ctx, sampleEvaluation(), writeTemplate(t, 1), filepath.Join(t.TempDir(), "out.xlsm"), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(wb.callsOf("SaveAs")) != 0 {
		t.Error("Expected nothing to be saved")
	}
	if opener.releases != 1 {
		t.Errorf("Expected release after cancellation, got %d", opener.releases)
	}
}
