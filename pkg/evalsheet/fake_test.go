package evalsheet

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/macro"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
	"github.com/xuri/excelize/v2"
)

var errInjected = errors.New("injected failure")

type call struct {
	op    string
	sheet int
	ref   string
	value any
}

// fakeWorkbook records every call made by Build.
type fakeWorkbook struct {
	sheets int
	failOn string
	calls  []call
	closed int
}

func (f *fakeWorkbook) record(c call) error {
	f.calls = append(f.calls, c)
	if c.op == f.failOn {
		return errInjected
	}
	return nil
}

func (f *fakeWorkbook) Backend() string { return "fake" }

func (f *fakeWorkbook) SheetCount() (int, error) { return f.sheets, nil }

func (f *fakeWorkbook) SetValue(sheet int, cell string, value any) error {
	return f.record(call{op: "SetValue", sheet: sheet, ref: cell, value: value})
}

func (f *fakeWorkbook) UnlockRange(sheet int, ref string) error {
	return f.record(call{op: "UnlockRange", sheet: sheet, ref: ref})
}

func (f *fakeWorkbook) Protect(sheet int, p workbook.Protection) error {
	return f.record(call{op: "Protect", sheet: sheet, value: p})
}

func (f *fakeWorkbook) InjectMacros(p *macro.Project) error {
	return f.record(call{op: "InjectMacros", value: p})
}

func (f *fakeWorkbook) SaveAs(path string, format workbook.Format) error {
	return f.record(call{op: "SaveAs", ref: path, value: format})
}

func (f *fakeWorkbook) Close() error {
	f.closed++
	return nil
}

func (f *fakeWorkbook) callsOf(op string) []call {
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeWorkbook) values() map[string]any {
	out := make(map[string]any)
	for _, c := range f.callsOf("SetValue") {
		out[c.ref] = c.value
	}
	return out
}

// fakeOpener counts opens and releases around a fakeWorkbook.
type fakeOpener struct {
	wb       *fakeWorkbook
	err      error
	opens    int
	releases int
}

func (o *fakeOpener) open(string, workbook.OpenOptions) (workbook.Workbook, func(), error) {
	o.opens++
	release := func() {
		o.releases++
		_ = o.wb.Close()
	}
	if o.err != nil {
		return nil, release, o.err
	}
	return o.wb, release, nil
}

func newFakeOptions(wb *fakeWorkbook) (Options, *fakeOpener, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opener := &fakeOpener{wb: wb}
	opts := DefaultOptions()
	opts.Backend = "fake"
	opts.Logger = logrus.NewEntry(logger)
	opts.Opener = opener.open
	return opts, opener, hook
}

// writeTemplate saves a blank workbook with the given number of sheets.
func writeTemplate(t *testing.T, sheets int) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i := 2; i <= sheets; i++ {
		if _, err := f.NewSheet("Sheet" + string(rune('0'+i))); err != nil {
			t.Fatalf("Failed to add sheet: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "Template.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save template: %v", err)
	}
	return path
}
