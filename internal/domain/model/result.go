package model

import "time"

// Verdict is the binary grading outcome, with error for submissions whose
// evaluation could not complete.
type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictFail  Verdict = "fail"
	VerdictError Verdict = "error"
)

// Confidence grades the AI-generation detector's certainty.
// ConfidenceNone means detection was not run for this submission.
type Confidence string

const (
	ConfidenceNone   Confidence = "none-checked"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// EvaluationResult is the write-once outcome for one Submission.
type EvaluationResult struct {
	Student      string     `json:"student"`
	Folder       string     `json:"-"`
	File         string     `json:"file"`
	SourcePath   string     `json:"-"`
	Verdict      Verdict    `json:"result"`
	AIDetected   bool       `json:"ai_detected,omitempty"`
	Confidence   Confidence `json:"ai_confidence"`
	AIDetails    string     `json:"ai_details,omitempty"`
	Comment      string     `json:"comment"`
	CheckedAt    time.Time  `json:"date"`
	Degraded     bool       `json:"degraded_extraction,omitempty"`
	ArtifactPath string     `json:"-"`
}

// AggregateResult is the per-student outcome chosen from all of that
// student's EvaluationResults.
type AggregateResult struct {
	Key          StudentKey
	Best         EvaluationResult
	Contributing []EvaluationResult
	Folders      []string
}
