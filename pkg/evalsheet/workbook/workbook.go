// Package workbook drives the spreadsheet backends that fill and protect
// evaluation templates.
package workbook

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/macro"
)

// ErrBackendUnavailable indicates the backend cannot run on this host.
var ErrBackendUnavailable = errors.New("workbook backend unavailable")

// ErrUnknownBackend indicates an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown workbook backend")

// ErrSheetIndex indicates a sheet index outside the workbook.
var ErrSheetIndex = errors.New("sheet index out of range")

// ErrMacrosUnsupported indicates the backend cannot author VBA for this
// workbook.
var ErrMacrosUnsupported = errors.New("macro injection unsupported")

// ErrFormatMismatch indicates an output format that contradicts the output
// file extension.
var ErrFormatMismatch = errors.New("output format does not match file extension")

// Workbook is an open template document. Sheets are addressed by 1-based
// index.
type Workbook interface {
	// Backend returns the name of the backend driving this workbook.
	Backend() string
	// SheetCount returns the number of worksheets.
	SheetCount() (int, error)
	// SetValue writes a value into a cell.
	SetValue(sheet int, cell string, value any) error
	// UnlockRange clears the locked flag on every cell of the range.
	UnlockRange(sheet int, ref string) error
	// Protect enables worksheet protection.
	Protect(sheet int, p Protection) error
	// InjectMacros adds the weighting form and its event code.
	InjectMacros(p *macro.Project) error
	// SaveAs writes the workbook to path in the given container format.
	SaveAs(path string, format Format) error
	// Close closes the document without saving.
	Close() error
}

// Backend names.
const (
	BackendAuto     = "auto"
	BackendExcelize = "excelize"
	BackendOLE      = "ole"
)

// Format is an output container format.
type Format string

const (
	// FormatXLSX is the macro-free Open XML workbook.
	FormatXLSX Format = "xlsx"
	// FormatXLSM is the macro-enabled Open XML workbook.
	FormatXLSM Format = "xlsm"
)

// MacroEnabled reports whether the format can carry a VBA project.
func (f Format) MacroEnabled() bool {
	return f == FormatXLSM
}

// FileFormat returns the XlFileFormat code used by Excel's SaveAs.
func (f Format) FileFormat() int {
	if f == FormatXLSM {
		return 52
	}
	return 51
}

// ParseFormat parses a format name. An empty name yields "".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(s), ".")); f {
	case "", FormatXLSX, FormatXLSM:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be xlsx or xlsm)", s)
	}
}

// FormatFromPath picks the container format for an output path. When
// explicit is set it must agree with the extension.
func FormatFromPath(path string, explicit Format) (Format, error) {
	ext, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
	}
	switch {
	case ext == "" && explicit == "":
		return "", fmt.Errorf("output path %q has no extension", path)
	case ext == "":
		return explicit, nil
	case explicit != "" && explicit != ext:
		return "", fmt.Errorf("%w: %s vs %s", ErrFormatMismatch, explicit, filepath.Ext(path))
	default:
		return ext, nil
	}
}

// Protection configures worksheet protection. The Allow* flags grant the
// corresponding operation to the end user.
type Protection struct {
	Password              string
	ProtectObjects        bool
	ProtectScenarios      bool
	AllowFormatCells      bool
	AllowFormatColumns    bool
	AllowFormatRows       bool
	AllowInsertColumns    bool
	AllowInsertRows       bool
	AllowInsertHyperlinks bool
	AllowDeleteColumns    bool
	AllowDeleteRows       bool
	AllowSort             bool
	AllowFilter           bool
	AllowPivotTables      bool
}

// LockedDown returns the protection applied to evaluation sheets: objects
// and scenarios protected, no structural or formatting changes allowed.
func LockedDown(password string) Protection {
	return Protection{
		Password:         password,
		ProtectObjects:   true,
		ProtectScenarios: true,
	}
}

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	// Backend is one of BackendAuto, BackendExcelize or BackendOLE.
	Backend string
	// VBAProject is a precompiled vbaProject.bin embedded by the excelize
	// backend when macros are injected.
	VBAProject []byte
}

// Open opens a template with the configured backend. The returned release
// function closes the document and frees the backend; it is safe to call
// on every path.
func Open(templatePath string, opts OpenOptions) (Workbook, func(), error) {
	abs, err := filepath.Abs(templatePath)
	if err != nil {
		return nil, func() {}, err
	}

	switch opts.Backend {
	case BackendExcelize:
		return openExcelize(abs, opts.VBAProject)
	case BackendOLE:
		return openOLE(abs)
	case BackendAuto, "":
		wb, release, err := openOLE(abs)
		if err == nil {
			return wb, release, nil
		}
		return openExcelize(abs, opts.VBAProject)
	default:
		return nil, func() {}, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}
