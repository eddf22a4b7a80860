// File: internal/usecase/checker_test.go
package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/domain/ports/adapter"
	"classroom-ai-grading/internal/infra/adapters/ai"
)

// countingEvaluator wraps an Evaluator and counts Evaluate calls, so tests
// can prove that resumed runs skip already-evaluated submissions.
type countingEvaluator struct {
	inner adapter.Evaluator
	calls atomic.Int64
}

func (c *countingEvaluator) DetectGeneration(ctx context.Context, text string) (adapter.Detection, error) {
	return c.inner.DetectGeneration(ctx, text)
}

func (c *countingEvaluator) Evaluate(ctx context.Context, req adapter.EvalRequest) (adapter.Evaluation, error) {
	c.calls.Add(1)
	return c.inner.Evaluate(ctx, req)
}

func onlineText(body string) string {
	return "<html><body><p>" + body + "</p></body></html>"
}

func TestCheckerRunEndToEnd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	longText := strings.Repeat("a solid answer ", 10)
	alicePass := filepath.Join(root, "Alice Smith_123_assignsubmission_onlinetext")
	mustWrite(t, filepath.Join(alicePass, "onlinetext.html"), onlineText(longText))
	aliceShort := filepath.Join(root, "Alice Smith_123_assignsubmission_backup")
	mustWrite(t, filepath.Join(aliceShort, "onlinetext.html"), onlineText("too short"))
	bob := filepath.Join(root, "Bob Jones_456_assignsubmission_onlinetext")
	mustWrite(t, filepath.Join(bob, "onlinetext.html"), onlineText("tiny"))

	eval := &countingEvaluator{inner: ai.NewOfflineEvaluator(100)}
	checker := NewChecker(eval, 2, testLogger())

	var (
		mu     sync.Mutex
		stages = make(map[model.JobStage]bool)
	)
	progress := func(stage model.JobStage, _, _ int) {
		mu.Lock()
		stages[stage] = true
		mu.Unlock()
	}

	path, err := checker.Run(context.Background(), RunParams{
		RootDir:      root,
		TemplatePath: filepath.Join(root, "no-such-template.docx"), // falls back to general criteria
	}, progress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantPath := filepath.Join(root, filepath.Base(root)+"_summary.xlsx")
	if path != wantPath {
		t.Errorf("report path = %s, want %s", path, wantPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report missing: %v", err)
	}
	for _, stage := range []model.JobStage{model.StageDiscovering, model.StageExtracting, model.StageEvaluating, model.StageAggregating, model.StageReporting} {
		if !stages[stage] {
			t.Errorf("stage %s never reported", stage)
		}
	}

	if got := eval.calls.Load(); got != 3 {
		t.Errorf("Evaluate called %d times, want one per submission", got)
	}
	for _, folder := range []string{alicePass, aliceShort, bob} {
		artifacts, err := filepath.Glob(filepath.Join(folder, "results", "*.json"))
		if err != nil || len(artifacts) != 1 {
			t.Errorf("folder %s: want 1 artifact, got %v (%v)", folder, artifacts, err)
		}
	}

	// The winning submission decides where the per-student verdict lands:
	// Alice's passing folder gets it, her short one does not.
	aggData, err := os.ReadFile(filepath.Join(alicePass, "result.txt"))
	if err != nil {
		t.Fatalf("read aggregate: %v", err)
	}
	if !strings.Contains(string(aggData), `"result": "pass"`) {
		t.Errorf("aggregate for Alice = %s, want pass", aggData)
	}
	bobData, err := os.ReadFile(filepath.Join(bob, "result.txt"))
	if err != nil {
		t.Fatalf("read aggregate: %v", err)
	}
	if !strings.Contains(string(bobData), `"result": "fail"`) {
		t.Errorf("aggregate for Bob = %s, want fail", bobData)
	}

	// A second run finds every artifact in place and issues no new
	// evaluation calls.
	if _, err := checker.Run(context.Background(), RunParams{RootDir: root}, nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := eval.calls.Load(); got != 3 {
		t.Errorf("resumed run issued %d extra Evaluate calls", got-3)
	}
}

func TestCheckerNoSubmissions(t *testing.T) {
	t.Parallel()

	checker := NewChecker(ai.NewOfflineEvaluator(100), 1, testLogger())
	if _, err := checker.Run(context.Background(), RunParams{RootDir: t.TempDir()}, nil); !errors.Is(err, domain.ErrNoSubmissions) {
		t.Fatalf("got %v, want ErrNoSubmissions", err)
	}
}

func TestCheckerCancelledContext(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Eve_8_assignsubmission_onlinetext", "onlinetext.html"), onlineText("hello there"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := NewChecker(ai.NewOfflineEvaluator(100), 1, testLogger())
	if _, err := checker.Run(ctx, RunParams{RootDir: root}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"homework final.docx", "homework_final.docx"},
		{"Дипломная работа.pdf", "Дипломная_работа.pdf"},
		{"b\\c?.doc", "b_c_.doc"},
		{"???", "submission"},
	}
	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
