//go:build windows

package workbook

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/macro"
)

// vbext_ct_MSForm
const componentTypeForm = 3

// OLEWorkbook drives an invisible Excel instance through COM automation.
// All calls must happen on the goroutine that opened it.
type OLEWorkbook struct {
	application *ole.IDispatch
	book        *ole.IDispatch
	closed      bool
}

func openOLE(path string) (Workbook, func(), error) {
	runtime.LockOSThread()
	ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)

	unknown, err := oleutil.CreateObject("Excel.Application")
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, func() {}, fmt.Errorf("%w: failed to launch Excel application: %v", ErrBackendUnavailable, err)
	}
	application, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, func() {}, fmt.Errorf("%w: failed to query Excel interface: %v", ErrBackendUnavailable, err)
	}

	wb := &OLEWorkbook{application: application}
	if err := wb.open(path); err != nil {
		_ = wb.Close()
		return nil, func() {}, err
	}
	return wb, func() { _ = wb.Close() }, nil
}

func (w *OLEWorkbook) open(path string) error {
	if _, err := oleutil.PutProperty(w.application, "Visible", false); err != nil {
		return fmt.Errorf("failed to set Visible: %w", err)
	}
	if _, err := oleutil.PutProperty(w.application, "DisplayAlerts", false); err != nil {
		return fmt.Errorf("failed to set DisplayAlerts: %w", err)
	}

	s := &comScope{}
	defer s.Release()
	workbooks, err := s.get(w.application, "Workbooks")
	if err != nil {
		return err
	}
	book, err := oleutil.CallMethod(workbooks, "Open", path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	w.book = book.ToIDispatch()
	return nil
}

// Backend implements Workbook.
func (w *OLEWorkbook) Backend() string {
	return BackendOLE
}

// SheetCount implements Workbook.
func (w *OLEWorkbook) SheetCount() (int, error) {
	s := &comScope{}
	defer s.Release()
	sheets, err := s.get(w.book, "Worksheets")
	if err != nil {
		return 0, err
	}
	count, err := oleutil.GetProperty(sheets, "Count")
	if err != nil {
		return 0, fmt.Errorf("failed to get Worksheets.Count: %w", err)
	}
	return int(count.Val), nil
}

func (w *OLEWorkbook) sheet(s *comScope, index int) (*ole.IDispatch, error) {
	count, err := w.SheetCount()
	if err != nil {
		return nil, err
	}
	if index < 1 || index > count {
		return nil, fmt.Errorf("%w: %d (workbook has %d)", ErrSheetIndex, index, count)
	}
	return s.get(w.book, "Worksheets", index)
}

func (w *OLEWorkbook) rangeOf(s *comScope, sheet int, ref string) (*ole.IDispatch, error) {
	ws, err := w.sheet(s, sheet)
	if err != nil {
		return nil, err
	}
	return s.get(ws, "Range", ref)
}

// SetValue implements Workbook.
func (w *OLEWorkbook) SetValue(sheet int, cell string, value any) error {
	s := &comScope{}
	defer s.Release()
	rng, err := w.rangeOf(s, sheet, cell)
	if err != nil {
		return err
	}
	if _, err := oleutil.PutProperty(rng, "Value", value); err != nil {
		return fmt.Errorf("failed to set %s: %w", cell, err)
	}
	return nil
}

// UnlockRange implements Workbook.
func (w *OLEWorkbook) UnlockRange(sheet int, ref string) error {
	s := &comScope{}
	defer s.Release()
	rng, err := w.rangeOf(s, sheet, ref)
	if err != nil {
		return err
	}
	if _, err := oleutil.PutProperty(rng, "Locked", false); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", ref, err)
	}
	return nil
}

// Protect implements Workbook. Arguments follow Worksheet.Protect's
// positional order.
func (w *OLEWorkbook) Protect(sheet int, p Protection) error {
	s := &comScope{}
	defer s.Release()
	ws, err := w.sheet(s, sheet)
	if err != nil {
		return err
	}
	_, err = oleutil.CallMethod(ws, "Protect",
		p.Password,
		p.ProtectObjects,
		true, // Contents
		p.ProtectScenarios,
		false, // UserInterfaceOnly
		p.AllowFormatCells,
		p.AllowFormatColumns,
		p.AllowFormatRows,
		p.AllowInsertColumns,
		p.AllowInsertRows,
		p.AllowInsertHyperlinks,
		p.AllowDeleteColumns,
		p.AllowDeleteRows,
		p.AllowSort,
		p.AllowFilter,
		p.AllowPivotTables,
	)
	if err != nil {
		return fmt.Errorf("failed to protect sheet %d: %w", sheet, err)
	}
	return nil
}

// InjectMacros implements Workbook. Requires "Trust access to the VBA
// project object model" in the Excel trust center.
func (w *OLEWorkbook) InjectMacros(p *macro.Project) error {
	s := &comScope{}
	defer s.Release()

	project, err := s.get(w.book, "VBProject")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMacrosUnsupported, err)
	}
	components, err := s.get(project, "VBComponents")
	if err != nil {
		return err
	}

	thisWorkbook, err := s.get(components, "Item", "ThisWorkbook")
	if err != nil {
		return err
	}
	if err := addCode(s, thisWorkbook, p.ThisWorkbook); err != nil {
		return err
	}

	form, err := s.call(components, "Add", componentTypeForm)
	if err != nil {
		return err
	}
	if _, err := oleutil.PutProperty(form, "Name", p.Form.Name); err != nil {
		return fmt.Errorf("failed to name form: %w", err)
	}
	for name, value := range map[string]any{
		"Caption": p.Form.Caption,
		"Width":   p.Form.Width,
		"Height":  p.Form.Height,
	} {
		prop, err := s.get(form, "Properties", name)
		if err != nil {
			return err
		}
		if _, err := oleutil.PutProperty(prop, "Value", value); err != nil {
			return fmt.Errorf("failed to set form %s: %w", name, err)
		}
	}

	designer, err := s.get(form, "Designer")
	if err != nil {
		return err
	}
	controls, err := s.get(designer, "Controls")
	if err != nil {
		return err
	}
	for _, c := range p.Form.Controls {
		if err := addControl(s, controls, c); err != nil {
			return err
		}
	}

	return addCode(s, form, p.FormCode)
}

func addControl(s *comScope, controls *ole.IDispatch, c macro.Control) error {
	ctl, err := s.call(controls, "Add", c.ProgID)
	if err != nil {
		return err
	}
	props := []struct {
		name  string
		value any
		skip  bool
	}{
		{"Name", c.Name, c.Name == ""},
		{"Caption", c.Caption, c.Caption == ""},
		{"Left", c.Left, false},
		{"Top", c.Top, false},
		{"Width", c.Width, false},
		{"Height", c.Height, false},
	}
	for _, prop := range props {
		if prop.skip {
			continue
		}
		if _, err := oleutil.PutProperty(ctl, prop.name, prop.value); err != nil {
			return fmt.Errorf("failed to set %s on %s: %w", prop.name, c.ProgID, err)
		}
	}
	if c.Bold {
		font, err := s.get(ctl, "Font")
		if err != nil {
			return err
		}
		if _, err := oleutil.PutProperty(font, "Bold", true); err != nil {
			return fmt.Errorf("failed to set Font.Bold: %w", err)
		}
	}
	return nil
}

func addCode(s *comScope, component *ole.IDispatch, code string) error {
	module, err := s.get(component, "CodeModule")
	if err != nil {
		return err
	}
	if _, err := oleutil.CallMethod(module, "AddFromString", code); err != nil {
		return fmt.Errorf("failed to add VBA code: %w", err)
	}
	return nil
}

// SaveAs implements Workbook.
func (w *OLEWorkbook) SaveAs(path string, format Format) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := oleutil.CallMethod(w.book, "SaveAs", abs, format.FileFormat()); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Close implements Workbook. It closes the document without saving, quits
// Excel and releases COM.
func (w *OLEWorkbook) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	if w.book != nil {
		if _, err := oleutil.CallMethod(w.book, "Close", false); err != nil {
			firstErr = fmt.Errorf("failed to close workbook: %w", err)
		}
		w.book.Release()
		w.book = nil
	}
	if w.application != nil {
		if _, err := oleutil.CallMethod(w.application, "Quit"); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to quit Excel: %w", err)
		}
		w.application.Release()
		w.application = nil
	}
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return firstErr
}

// comScope releases every dispatch obtained through it.
type comScope struct {
	objs []*ole.IDispatch
}

func (s *comScope) get(disp *ole.IDispatch, name string, params ...any) (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(disp, name, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	obj := v.ToIDispatch()
	s.objs = append(s.objs, obj)
	return obj, nil
}

func (s *comScope) call(disp *ole.IDispatch, name string, params ...any) (*ole.IDispatch, error) {
	v, err := oleutil.CallMethod(disp, name, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", name, err)
	}
	obj := v.ToIDispatch()
	s.objs = append(s.objs, obj)
	return obj, nil
}

func (s *comScope) Release() {
	for i := len(s.objs) - 1; i >= 0; i-- {
		if s.objs[i] != nil {
			s.objs[i].Release()
		}
	}
	s.objs = nil
}
