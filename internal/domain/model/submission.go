package model

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Format is the closed set of submission formats the checker accepts.
// Anything else is rejected at discovery time.
type Format string

const (
	FormatDocx Format = "docx" // structured document
	FormatDoc  Format = "doc"  // legacy document
	FormatPDF  Format = "pdf"  // portable document
	FormatHTML Format = "html" // inline online-text
)

// onlineTextName is the fixed name Moodle gives inline submissions.
// Arbitrary .html files are not submissions.
const onlineTextName = "onlinetext.html"

// DetectFormat maps a file name to its Format. ok is false for anything
// outside the closed set.
func DetectFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return FormatDocx, true
	case ".doc":
		return FormatDoc, true
	case ".pdf":
		return FormatPDF, true
	}
	if strings.EqualFold(filepath.Base(name), onlineTextName) {
		return FormatHTML, true
	}
	return "", false
}

// Submission is one physical file belonging to one student attempt.
// Immutable once extraction has run.
type Submission struct {
	Path     string // absolute path to the file
	Folder   string // student folder that contains it
	Format   Format
	Text     string // extracted text, possibly empty on failure
	Degraded bool   // best-effort raw-byte extraction was used
	Err      error  // non-fatal extraction error, if any
}

// StudentKey is the canonical per-student identity used for grouping
// results across folder variants.
type StudentKey string

// folderPattern is the archive-export naming convention:
// "<display name>_<id>_assignsubmission_<kind>".
var folderPattern = regexp.MustCompile(`^(.+?)_(\d+)_assignsubmission_(\w+)$`)

var spaceRun = regexp.MustCompile(`\s+`)

// ParseFolder splits a student folder name into display name and ID token.
// The ID is empty when the folder does not follow the export convention.
func ParseFolder(folder string) (display, id string) {
	base := filepath.Base(folder)
	if m := folderPattern.FindStringSubmatch(base); m != nil {
		return m[1], m[2]
	}
	return base, ""
}

// DeriveStudentKey produces the grouping key for a student folder.
// Folders sharing an ID token share a key; absent an ID, exact match of the
// normalized display name is required.
func DeriveStudentKey(folder string) StudentKey {
	display, id := ParseFolder(folder)
	if id != "" {
		return StudentKey("id:" + id)
	}
	return StudentKey("name:" + NormalizeName(display))
}

// NormalizeName case-folds, NFC-normalizes and collapses whitespace so that
// visually identical names compare equal.
func NormalizeName(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.ToLower(s)
	return spaceRun.ReplaceAllString(s, " ")
}
