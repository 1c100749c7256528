// Package evalsheet fills evaluation templates with grading data and saves
// them as protected, macro-enabled workbooks.
package evalsheet

import (
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/layout"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

// DefaultPassword protects the generated sheets when none is configured.
const DefaultPassword = "ppcdsalv"

// Opener opens a template and returns it with its release function. The
// release function may be nil when opening fails.
type Opener func(templatePath string, opts workbook.OpenOptions) (workbook.Workbook, func(), error)

// Options configures generation behavior.
type Options struct {
	// Backend selects the workbook backend (auto, excelize, ole).
	Backend string
	// Format forces the output format. If empty, it comes from the output
	// file extension.
	Format workbook.Format
	// Password protects the listed sheets. If empty, DefaultPassword.
	Password string
	// Layout locates the data in the template. A zero Layout means
	// layout.Default().
	Layout layout.Layout
	// InjectForm adds the weighting form to macro-enabled output.
	InjectForm bool
	// VBAProject is a precompiled vbaProject.bin for the excelize backend.
	VBAProject []byte
	// Strict validates the input before generation.
	Strict bool
	// Roster is a workbook whose student rows replace the input's alumnos
	// (see LoadRoster).
	Roster string
	// RequirePeriod makes safis mandatory during validation.
	RequirePeriod bool
	// Logger receives step logs. If nil, the logrus standard logger.
	Logger *logrus.Entry
	// Opener replaces workbook.Open. Tests use it to inject fakes.
	Opener Opener
}

// DefaultOptions returns default generation options.
func DefaultOptions() Options {
	return Options{
		Backend:    workbook.BackendAuto,
		Password:   DefaultPassword,
		Layout:     layout.Default(),
		InjectForm: true,
	}
}

func (o Options) logger() *logrus.Entry {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (o Options) password() string {
	if o.Password == "" {
		return DefaultPassword
	}
	return o.Password
}

func (o Options) layout() layout.Layout {
	if o.Layout.Sheet == 0 {
		return layout.Default()
	}
	return o.Layout
}

func (o Options) open(templatePath string) (workbook.Workbook, func(), error) {
	opts := workbook.OpenOptions{Backend: o.Backend, VBAProject: o.VBAProject}
	if o.Opener != nil {
		return o.Opener(templatePath, opts)
	}
	return workbook.Open(templatePath, opts)
}
