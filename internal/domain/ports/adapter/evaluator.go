package adapter

import (
	"context"

	"classroom-ai-grading/internal/domain/model"
)

// Detection is the outcome of an AI-generation check on one text.
type Detection struct {
	Detected   bool
	Confidence model.Confidence
	Details    string
}

// Evaluation is the binary grading outcome for one text.
type Evaluation struct {
	Verdict model.Verdict
	Comment string
}

// EvalRequest carries everything the evaluator needs for one judgment.
type EvalRequest struct {
	Text     string
	Criteria string // grading criteria extracted from the template
	Prompt   string // extra free-text instructions for this run, may be empty
	Degraded bool   // text came from a degraded extraction

	// Confidence of a prior AI-generation check; ConfidenceNone when the
	// check was disabled for this run.
	PriorConfidence model.Confidence
}

// Evaluator is the port for the external AI evaluation service.
// Implementations own credentials, rate limiting and retries; callers only
// ever see a final outcome or an error.
type Evaluator interface {
	// DetectGeneration analyses a text for signs of AI authorship.
	DetectGeneration(ctx context.Context, text string) (Detection, error)

	// Evaluate returns the binary verdict and a free-text comment.
	Evaluate(ctx context.Context, req EvalRequest) (Evaluation, error)
}
