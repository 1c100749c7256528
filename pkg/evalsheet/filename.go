package evalsheet

import (
	"fmt"
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DownloadName returns the attachment name for a generated workbook,
// e.g. evaluacion_Matematicas_I_2024_1.xlsm.
func DownloadName(asignatura, safis string) string {
	return fmt.Sprintf("evaluacion_%s_%s.xlsm", safeFilePart(asignatura), safeFilePart(safis))
}

// safeFilePart folds accents ("á" becomes "a") and replaces everything
// else outside [a-zA-Z0-9] with "_".
func safeFilePart(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return unsafeFileChars.ReplaceAllString(folded, "_")
}
