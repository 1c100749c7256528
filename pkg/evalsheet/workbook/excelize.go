package workbook

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/layout"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/macro"
	"github.com/xuri/excelize/v2"
)

const vbaProjectPart = "xl/vbaProject.bin"

// ExcelizeWorkbook edits the template file directly with excelize. It
// cannot author VBA source; macros come from the template itself or from
// a precompiled vbaProject.bin.
type ExcelizeWorkbook struct {
	f *excelize.File
	// VBAProject, when set, is embedded as the workbook's VBA project.
	VBAProject []byte
	// unlocked maps an original style id to its unlocked clone.
	unlocked map[int]int
	closed   bool
}

func openExcelize(path string, vbaProject []byte) (Workbook, func(), error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, func() {}, err
	}
	wb := &ExcelizeWorkbook{f: f, VBAProject: vbaProject, unlocked: make(map[int]int)}
	return wb, func() { _ = wb.Close() }, nil
}

// Backend implements Workbook.
func (w *ExcelizeWorkbook) Backend() string {
	return BackendExcelize
}

// SheetCount implements Workbook.
func (w *ExcelizeWorkbook) SheetCount() (int, error) {
	return len(w.f.GetSheetList()), nil
}

func (w *ExcelizeWorkbook) sheetName(index int) (string, error) {
	sheets := w.f.GetSheetList()
	if index < 1 || index > len(sheets) {
		return "", fmt.Errorf("%w: %d (workbook has %d)", ErrSheetIndex, index, len(sheets))
	}
	return sheets[index-1], nil
}

// SetValue implements Workbook.
func (w *ExcelizeWorkbook) SetValue(sheet int, cell string, value any) error {
	name, err := w.sheetName(sheet)
	if err != nil {
		return err
	}
	return w.f.SetCellValue(name, cell, value)
}

// UnlockRange implements Workbook. Each cell keeps its template formatting;
// only the protection flag of its style changes.
func (w *ExcelizeWorkbook) UnlockRange(sheet int, ref string) error {
	name, err := w.sheetName(sheet)
	if err != nil {
		return err
	}
	first, last, err := layout.SplitRange(ref)
	if err != nil {
		return err
	}
	c1, r1, _ := excelize.CellNameToCoordinates(first)
	c2, r2, _ := excelize.CellNameToCoordinates(last)
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	if r1 > r2 {
		r1, r2 = r2, r1
	}

	for row := r1; row <= r2; row++ {
		for col := c1; col <= c2; col++ {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			styleID, err := w.f.GetCellStyle(name, cell)
			if err != nil {
				return err
			}
			unlockedID, err := w.unlockedStyle(styleID)
			if err != nil {
				return err
			}
			if err := w.f.SetCellStyle(name, cell, cell, unlockedID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *ExcelizeWorkbook) unlockedStyle(styleID int) (int, error) {
	if id, ok := w.unlocked[styleID]; ok {
		return id, nil
	}
	style, err := w.f.GetStyle(styleID)
	if err != nil {
		return 0, err
	}
	hidden := style.Protection != nil && style.Protection.Hidden
	style.Protection = &excelize.Protection{Locked: false, Hidden: hidden}
	id, err := w.f.NewStyle(style)
	if err != nil {
		return 0, err
	}
	w.unlocked[styleID] = id
	return id, nil
}

// Protect implements Workbook.
func (w *ExcelizeWorkbook) Protect(sheet int, p Protection) error {
	name, err := w.sheetName(sheet)
	if err != nil {
		return err
	}
	return w.f.ProtectSheet(name, &excelize.SheetProtectionOptions{
		Password:            p.Password,
		EditObjects:         !p.ProtectObjects,
		EditScenarios:       !p.ProtectScenarios,
		FormatCells:         p.AllowFormatCells,
		FormatColumns:       p.AllowFormatColumns,
		FormatRows:          p.AllowFormatRows,
		InsertColumns:       p.AllowInsertColumns,
		InsertRows:          p.AllowInsertRows,
		InsertHyperlinks:    p.AllowInsertHyperlinks,
		DeleteColumns:       p.AllowDeleteColumns,
		DeleteRows:          p.AllowDeleteRows,
		Sort:                p.AllowSort,
		AutoFilter:          p.AllowFilter,
		PivotTables:         p.AllowPivotTables,
		SelectLockedCells:   true,
		SelectUnlockedCells: true,
	})
}

// HasVBAProject reports whether the workbook already carries a VBA project.
func (w *ExcelizeWorkbook) HasVBAProject() bool {
	_, ok := w.f.Pkg.Load(vbaProjectPart)
	return ok
}

// InjectMacros implements Workbook. The rendered source in p cannot be
// compiled here, so the precompiled VBAProject is embedded instead; a
// template that already has a VBA project keeps it.
func (w *ExcelizeWorkbook) InjectMacros(p *macro.Project) error {
	if len(w.VBAProject) > 0 {
		return w.f.AddVBAProject(w.VBAProject)
	}
	if w.HasVBAProject() {
		return nil
	}
	return fmt.Errorf("%w: %s needs a template with macros or a vbaProject.bin", ErrMacrosUnsupported, BackendExcelize)
}

// SaveAs implements Workbook. excelize derives the content type from the
// file extension, so the path must agree with format. Macro-free output
// drops any VBA project inherited from the template.
func (w *ExcelizeWorkbook) SaveAs(path string, format Format) error {
	format, err := FormatFromPath(path, format)
	if err != nil {
		return err
	}
	if filepath.Ext(path) == "" {
		path += "." + string(format)
	}
	if format.MacroEnabled() || !w.HasVBAProject() {
		return w.f.SaveAs(path)
	}

	var buf bytes.Buffer
	w.f.Path = path
	if _, err := w.f.WriteTo(&buf); err != nil {
		return err
	}
	return writeMacroFree(path, buf.Bytes())
}

// Close implements Workbook.
func (w *ExcelizeWorkbook) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
