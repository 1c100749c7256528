package workbook

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var (
	// xl/vbaProject.bin, xl/vbaProjectSignature.bin and their rels parts.
	vbaPartName = regexp.MustCompile(`^xl/(_rels/)?vbaProject`)
	// Matches both self-closing and empty-element forms.
	vbaRelationship = regexp.MustCompile(`<Relationship\s[^>]*relationships/vbaProject[A-Za-z]*"[^>]*?(?:/>|>\s*</Relationship>)`)
	vbaContentType  = regexp.MustCompile(`<(?:Default|Override)\s[^>]*application/vnd\.ms-office\.vbaProject[A-Za-z]*"[^>]*?(?:/>|>\s*</(?:Default|Override)>)`)
)

const (
	workbookRelsPart = "xl/_rels/workbook.xml.rels"
	contentTypesPart = "[Content_Types].xml"
)

// writeMacroFree writes the package in data to path without its VBA
// project: the parts, the workbook relationship and the content types.
func writeMacroFree(path string, data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range r.File {
		if vbaPartName.MatchString(f.Name) {
			continue
		}
		var pattern *regexp.Regexp
		switch f.Name {
		case workbookRelsPart:
			pattern = vbaRelationship
		case contentTypesPart:
			pattern = vbaContentType
		default:
			if err := zw.Copy(f); err != nil {
				return err
			}
			continue
		}
		if err := rewritePart(zw, f, pattern); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), buf.Bytes(), 0o644)
}

func rewritePart(zw *zip.Writer, f *zip.File, pattern *regexp.Regexp) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return err
	}

	w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
	if err != nil {
		return err
	}
	_, err = w.Write(pattern.ReplaceAll(raw, nil))
	return err
}
