// File: internal/infra/report/xlsx.go
package report

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"classroom-ai-grading/internal/domain/model"
)

const sheet = "Sheet1"

var headers = []string{"Student", "Result", "AI Detection", "AI Details", "Comment", "Result File"}

// SummaryPath is the deterministic report location for a submission root.
func SummaryPath(root string) string {
	return filepath.Join(root, filepath.Base(root)+"_summary.xlsx")
}

// WriteSummary renders the consolidated spreadsheet for all students and
// returns its path. Rows arrive already sorted by the aggregator.
func WriteSummary(root string, aggs []model.AggregateResult) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}

	for row, agg := range aggs {
		values := []any{
			agg.Best.Student,
			string(agg.Best.Verdict),
			detectionStatus(agg.Best),
			agg.Best.AIDetails,
			agg.Best.Comment,
			agg.Best.ArtifactPath,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	if err := applyStyles(f, len(aggs)); err != nil {
		return "", err
	}

	path := SummaryPath(root)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func detectionStatus(r model.EvaluationResult) string {
	if r.Confidence == model.ConfidenceNone {
		return "not checked"
	}
	if r.AIDetected {
		return fmt.Sprintf("yes (%s)", r.Confidence)
	}
	return "no"
}

func applyStyles(f *excelize.File, rows int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"87CEEB"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	widths := []float64{32, 12, 16, 40, 60, 48}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if rows > 0 {
		wrapStyle, err := f.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{WrapText: true},
		})
		if err != nil {
			return fmt.Errorf("wrap style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(headers), rows+1)
		if err := f.SetCellStyle(sheet, "A2", last, wrapStyle); err != nil {
			return fmt.Errorf("apply wrap style: %w", err)
		}
	}
	return nil
}
