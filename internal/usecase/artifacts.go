// File: internal/usecase/artifacts.go
package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"classroom-ai-grading/internal/domain/model"
)

const aggregateFileName = "result.txt"

// SanitizeName makes a file name safe for artifact paths while preserving
// Unicode letters. Runs of anything else become a single underscore.
func SanitizeName(name string) string {
	name = norm.NFC.String(filepath.Base(name))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" || out == "." || out == ".." {
		out = "submission"
	}
	return out
}

// artifactPath is where one submission's result JSON lives.
func artifactPath(sub model.Submission) string {
	return filepath.Join(sub.Folder, resultsDirName, SanitizeName(filepath.Base(sub.Path))+".json")
}

// writeArtifact persists one evaluation result immediately after the
// evaluation completes, so partial failures stay inspectable.
func writeArtifact(path string, res model.EvaluationResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result artifact: %w", err)
	}
	return nil
}

// readArtifact loads a previous run's result for the same file, enabling
// resume after interruption. ok is false when the artifact is absent or
// unreadable.
func readArtifact(path string, sub model.Submission) (model.EvaluationResult, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.EvaluationResult{}, false
	}
	var res model.EvaluationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return model.EvaluationResult{}, false
	}
	if res.Verdict == "" {
		return model.EvaluationResult{}, false
	}
	res.Folder = sub.Folder
	res.SourcePath = sub.Path
	res.ArtifactPath = path
	if res.Confidence == "" {
		res.Confidence = model.ConfidenceNone
	}
	return res, true
}

// writeAggregate writes the chosen per-student verdict next to that
// student's submissions.
func writeAggregate(agg model.AggregateResult) error {
	payload := struct {
		Student string    `json:"student"`
		Result  string    `json:"result"`
		Comment string    `json:"comment"`
		Date    time.Time `json:"date"`
	}{
		Student: agg.Best.Student,
		Result:  string(agg.Best.Verdict),
		Comment: agg.Best.Comment,
		Date:    time.Now(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	path := filepath.Join(agg.Best.Folder, aggregateFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write aggregate: %w", err)
	}
	return nil
}
