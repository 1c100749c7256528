package evalsheet

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/layout"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/macro"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

// Generate reads the evaluation at inputPath, fills templatePath with it
// and writes the result to outputPath. Both input files are checked before
// any backend is started. With Options.Roster, the roster workbook
// replaces the input's students.
func Generate(ctx context.Context, inputPath, templatePath, outputPath string, opts Options) error {
	if err := checkExists(inputPath, ErrInputNotFound); err != nil {
		return err
	}
	if err := checkExists(templatePath, ErrTemplateNotFound); err != nil {
		return err
	}
	if opts.Roster != "" {
		if err := checkExists(opts.Roster, ErrFileNotFound); err != nil {
			return err
		}
	}

	ev, err := LoadInput(inputPath)
	if err != nil {
		return err
	}
	if opts.Roster != "" {
		if ev.Alumnos, err = LoadRoster(opts.Roster); err != nil {
			return err
		}
	}
	if opts.Strict {
		if err := Validate(ev, opts.RequirePeriod); err != nil {
			return err
		}
	}
	return Build(ctx, ev, templatePath, outputPath, opts)
}

// OutputPath returns the path Build writes to: outputPath, with the format
// extension appended when it has none.
func OutputPath(outputPath string, format workbook.Format) string {
	if filepath.Ext(outputPath) == "" && format != "" {
		return outputPath + "." + string(format)
	}
	return outputPath
}

// Build fills the template with ev and saves it. The workbook is always
// closed and its backend released, whether or not the build succeeds.
func Build(ctx context.Context, ev *models.Evaluation, templatePath, outputPath string, opts Options) error {
	l := opts.layout()
	if err := l.Validate(); err != nil {
		return err
	}
	format, err := workbook.FormatFromPath(outputPath, opts.Format)
	if err != nil {
		return err
	}
	outputPath = OutputPath(outputPath, format)
	if err := checkExists(templatePath, ErrTemplateNotFound); err != nil {
		return err
	}

	log := opts.logger().WithFields(logrus.Fields{
		"template": templatePath,
		"output":   outputPath,
		"format":   format,
	})

	wb, release, err := opts.open(templatePath)
	if release != nil {
		defer release()
	}
	if err != nil {
		return NewGenerationError("open", err)
	}
	log = log.WithField("backend", wb.Backend())
	log.Debug("template opened")

	b := &builder{wb: wb, layout: l, log: log}
	steps := []struct {
		name string
		run  func() error
	}{
		{"metadata", func() error { return b.writeMetadata(ev) }},
		{"weights", func() error { return b.writeWeights(ev.Ponderaciones) }},
		{"roster", func() error { return b.writeRoster(ev.Alumnos) }},
		{"macros", func() error { return b.injectForm(opts, format) }},
		{"unlock", b.unlockEditable},
		{"protect", func() error { return b.protectSheets(opts.password()) }},
		{"save", func() error { return b.save(outputPath, format) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.run(); err != nil {
			return NewGenerationError(step.name, err)
		}
		log.WithField("step", step.name).Debug("step completed")
	}

	log.WithField("students", len(ev.Alumnos)).Info("workbook generated")
	return nil
}

type builder struct {
	wb     workbook.Workbook
	layout layout.Layout
	log    *logrus.Entry
}

func (b *builder) writeMetadata(ev *models.Evaluation) error {
	cells := []struct {
		cell  string
		value string
	}{
		{b.layout.Grupo, ev.Grupo},
		{b.layout.Asignatura, ev.Asignatura},
		{b.layout.Maestro, ev.Maestro},
	}
	for _, c := range cells {
		if err := b.wb.SetValue(b.layout.Sheet, c.cell, c.value); err != nil {
			return err
		}
	}
	return nil
}

// writeWeights stores each percentage as a fraction so the template's
// percent-formatted cells display it unchanged.
func (b *builder) writeWeights(w models.Weights) error {
	for i, fraction := range w.Fractions() {
		if err := b.wb.SetValue(b.layout.Sheet, b.layout.Weights[i], fraction); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) writeRoster(students []models.Student) error {
	for i, s := range students {
		number, matricula, nombre := b.layout.RosterCells(i)
		if err := b.wb.SetValue(b.layout.Sheet, number, i+1); err != nil {
			return err
		}
		if err := b.wb.SetValue(b.layout.Sheet, matricula, s.Matricula); err != nil {
			return err
		}
		if err := b.wb.SetValue(b.layout.Sheet, nombre, s.Nombre); err != nil {
			return err
		}
	}
	return nil
}

// injectForm never fails the build: a workbook without the form is still
// usable, so problems are only logged.
func (b *builder) injectForm(opts Options, format workbook.Format) error {
	if !opts.InjectForm {
		return nil
	}
	if !format.MacroEnabled() {
		b.log.Warn("weighting form skipped: output format cannot carry macros")
		return nil
	}
	project, err := macro.NewProject(b.layout.Sheet, b.layout.Weights, opts.password())
	if err != nil {
		b.log.WithError(err).Warn("weighting form skipped")
		return nil
	}
	if err := b.wb.InjectMacros(project); err != nil {
		b.log.WithError(err).Warn("weighting form not injected")
	}
	return nil
}

func (b *builder) unlockEditable() error {
	for _, ref := range b.layout.Editable {
		if err := b.wb.UnlockRange(b.layout.Sheet, ref); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) protectSheets(password string) error {
	count, err := b.wb.SheetCount()
	if err != nil {
		return err
	}
	for _, index := range b.layout.Protected {
		if index > count {
			b.log.WithField("sheet", index).Warn("sheet to protect not found in template, skipped")
			continue
		}
		if err := b.wb.Protect(index, workbook.LockedDown(password)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) save(outputPath string, format workbook.Format) error {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return b.wb.SaveAs(outputPath, format)
}
