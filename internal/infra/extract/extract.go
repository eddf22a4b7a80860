// Package extract converts submission files of the supported formats into
// plain text. Failures are reported, never panicked: callers record the error
// on the Submission and keep going.
package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
)

// Result carries the extracted text. Degraded marks best-effort raw-byte
// output so downstream evaluation can weight confidence accordingly.
type Result struct {
	Text     string
	Degraded bool
}

// Text dispatches on the closed format set.
func Text(path string, format model.Format) (Result, error) {
	switch format {
	case model.FormatDocx:
		text, err := docxText(path)
		return Result{Text: text}, err
	case model.FormatDoc:
		text, err := salvageText(path)
		return Result{Text: text, Degraded: true}, err
	case model.FormatPDF:
		return pdfText(path)
	case model.FormatHTML:
		text, err := htmlText(path)
		return Result{Text: text}, err
	default:
		return Result{}, fmt.Errorf("extract %s: %w", path, domain.ErrUnsupportedFormat)
	}
}

// salvageText reads a file as raw bytes and keeps whatever looks like text.
// Quality is low; it is the last resort for legacy documents and broken PDFs.
func salvageText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return CollapseSpace(b.String()), nil
}

// CollapseSpace normalizes all whitespace runs to single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
