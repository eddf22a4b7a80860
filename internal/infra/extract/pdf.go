package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfText extracts page text in page order with the primary decoder. When the
// decoder fails (encrypted, malformed, exotic encodings) it falls back to
// raw-byte salvage and flags the result as degraded.
func pdfText(path string) (Result, error) {
	text, err := pdfDecode(path)
	if err == nil && text != "" {
		return Result{Text: text}, nil
	}

	salvaged, serr := salvageText(path)
	if serr != nil {
		if err != nil {
			return Result{Degraded: true}, fmt.Errorf("pdf %s: %w", path, err)
		}
		return Result{Degraded: true}, serr
	}
	return Result{Text: salvaged, Degraded: true}, nil
}

func pdfDecode(path string) (text string, err error) {
	// The decoder panics on some malformed files; convert that into an
	// error here.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decoder panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
