// File: internal/infra/adapters/ai/offline.go
package ai

import (
	"context"
	"fmt"

	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/domain/ports/adapter"
	"classroom-ai-grading/internal/infra/extract"
)

var _ adapter.Evaluator = (*OfflineEvaluator)(nil)

// OfflineEvaluator is the deterministic, network-free Evaluator used for
// testing and dry runs. Both operations are pure functions of the input text.
type OfflineEvaluator struct {
	// Threshold is the minimum whitespace-collapsed rune count for a pass.
	Threshold int
}

func NewOfflineEvaluator(threshold int) *OfflineEvaluator {
	return &OfflineEvaluator{Threshold: threshold}
}

func (o *OfflineEvaluator) DetectGeneration(_ context.Context, _ string) (adapter.Detection, error) {
	return adapter.Detection{
		Detected:   false,
		Confidence: model.ConfidenceNone,
		Details:    "offline mode: detection skipped",
	}, nil
}

func (o *OfflineEvaluator) Evaluate(_ context.Context, req adapter.EvalRequest) (adapter.Evaluation, error) {
	n := len([]rune(extract.CollapseSpace(req.Text)))
	verdict := model.VerdictFail
	if n >= o.Threshold {
		verdict = model.VerdictPass
	}
	return adapter.Evaluation{
		Verdict: verdict,
		Comment: fmt.Sprintf("offline evaluation: text length %d, threshold %d", n, o.Threshold),
	}, nil
}
