package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func fastPoolOpts() PoolOptions {
	return PoolOptions{
		MinDelay:    time.Millisecond,
		BackoffBase: 50 * time.Millisecond,
		BackoffCap:  200 * time.Millisecond,
		WaitLimit:   time.Second,
	}
}

// fakeService scripts per-call outcomes and records which credential each
// attempt used.
type fakeService struct {
	mu       sync.Mutex
	outcomes []error // nil entry means success
	reply    string
	creds    []string
}

func (f *fakeService) Generate(_ context.Context, credential, _ string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, credential)
	idx := len(f.creds) - 1
	if idx < len(f.outcomes) && f.outcomes[idx] != nil {
		return "", f.outcomes[idx]
	}
	return f.reply, nil
}

func (f *fakeService) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.creds...)
}

var errQuota = errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")

func TestRotationAcrossSlots(t *testing.T) {
	t.Parallel()

	const n = 4
	keys := []string{"key-1", "key-2", "key-3", "key-4"}
	svc := &fakeService{
		outcomes: []error{errQuota, errQuota, errQuota, nil},
		reply:    `{"result": "pass", "comment": "solid work"}`,
	}
	pool := NewPool(keys, fastPoolOpts())
	client := NewClient(svc, pool, []string{"gemini-2.0-flash"}, 10, time.Second, testLogger())

	eval, err := client.Evaluate(context.Background(), adapter.EvalRequest{
		Text:            "some student work",
		Criteria:        "criteria",
		PriorConfidence: model.ConfidenceNone,
	})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if eval.Verdict != model.VerdictPass {
		t.Fatalf("expected pass, got %s", eval.Verdict)
	}

	calls := svc.calls()
	if len(calls) != n {
		t.Fatalf("expected exactly %d attempts, got %d (%v)", n, len(calls), calls)
	}
	for i, want := range keys {
		if calls[i] != want {
			t.Fatalf("attempt %d used %s, want %s", i, calls[i], want)
		}
	}

	// Slots 1..N-1 must be left in backoff cooldown, the last in the short
	// politeness interval only.
	states := pool.States()
	now := time.Now()
	for i := 0; i < n-1; i++ {
		if states[i].Failures != 1 {
			t.Fatalf("slot %d failures = %d, want 1", i, states[i].Failures)
		}
		if !states[i].CooldownUntil.After(now.Add(10 * time.Millisecond)) {
			t.Fatalf("slot %d not in cooldown", i)
		}
	}
	if states[n-1].Failures != 0 {
		t.Fatalf("successful slot must have failure streak reset")
	}
}

func TestQuotaExhaustedWithinCeiling(t *testing.T) {
	t.Parallel()

	svc := &fakeService{outcomes: []error{errQuota, errQuota}, reply: "unused"}
	opts := fastPoolOpts()
	opts.BackoffBase = time.Minute // both slots stuck far beyond the wait limit
	opts.WaitLimit = 50 * time.Millisecond
	pool := NewPool([]string{"a", "b"}, opts)
	client := NewClient(svc, pool, []string{"gemini-2.0-flash"}, 10, time.Second, testLogger())

	_, err := client.Evaluate(context.Background(), adapter.EvalRequest{Text: "x"})
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestAcquireWaitsForCooldown(t *testing.T) {
	t.Parallel()

	opts := fastPoolOpts()
	opts.BackoffBase = 40 * time.Millisecond
	pool := NewPool([]string{"only"}, opts)

	slot, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	pool.ReleaseQuota(slot)

	start := time.Now()
	slot2, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	pool.ReleaseSuccess(slot2)
	if waited := time.Since(start); waited < 30*time.Millisecond {
		t.Fatalf("acquire returned before cooldown expired (%v)", waited)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	opts := fastPoolOpts()
	opts.BackoffBase = 10 * time.Millisecond
	opts.BackoffCap = 25 * time.Millisecond
	pool := NewPool([]string{"k"}, opts)

	durations := make([]time.Duration, 0, 3)
	for i := 0; i < 3; i++ {
		s := pool.slots[0]
		s.busy = true
		before := time.Now()
		pool.ReleaseQuota(s)
		durations = append(durations, pool.States()[0].CooldownUntil.Sub(before))
	}
	if durations[1] < durations[0] {
		t.Fatalf("second cooldown %v should not be shorter than first %v", durations[1], durations[0])
	}
	if durations[2] > opts.BackoffCap+5*time.Millisecond {
		t.Fatalf("cooldown %v exceeds cap %v", durations[2], opts.BackoffCap)
	}
}

func TestBackoffLongStreakStaysCapped(t *testing.T) {
	t.Parallel()

	opts := fastPoolOpts()
	opts.BackoffBase = time.Minute
	opts.BackoffCap = 8 * time.Minute
	pool := NewPool([]string{"k"}, opts)

	// Streaks past 64 would wrap the doubling shift without the exponent
	// clamp; the cooldown must hold at the cap, never shrink below the base.
	for i := 0; i < 70; i++ {
		s := pool.slots[0]
		s.busy = true
		before := time.Now()
		pool.ReleaseQuota(s)
		d := pool.States()[0].CooldownUntil.Sub(before)
		if d < opts.BackoffBase {
			t.Fatalf("failure %d: cooldown %v shorter than base %v", i+1, d, opts.BackoffBase)
		}
		if d > opts.BackoffCap+5*time.Millisecond {
			t.Fatalf("failure %d: cooldown %v exceeds cap %v", i+1, d, opts.BackoffCap)
		}
	}
	if got := pool.States()[0].Failures; got != 70 {
		t.Fatalf("failure streak = %d, want 70", got)
	}
}

func TestModelFallthroughOn404(t *testing.T) {
	t.Parallel()

	notFound := errors.New("googleapi: Error 404: NOT_FOUND")
	svc := &fakeService{
		outcomes: []error{notFound, nil},
		reply:    `{"result": "fail", "comment": "too short"}`,
	}
	pool := NewPool([]string{"k1", "k2"}, fastPoolOpts())
	client := NewClient(svc, pool, []string{"gemini-9.9-ultra", "gemini-2.0-flash"}, 5, time.Second, testLogger())

	eval, err := client.Evaluate(context.Background(), adapter.EvalRequest{Text: "x"})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if eval.Verdict != model.VerdictFail {
		t.Fatalf("expected fail, got %s", eval.Verdict)
	}
	if got := len(svc.calls()); got != 2 {
		t.Fatalf("expected one attempt per model, got %d", got)
	}
}

func TestOfflineEvaluatorDeterministic(t *testing.T) {
	t.Parallel()

	o := NewOfflineEvaluator(10)
	ctx := context.Background()

	long := strings.Repeat("word ", 10) // 49 runes collapsed
	short := "tiny"

	for i := 0; i < 3; i++ {
		got, err := o.Evaluate(ctx, adapter.EvalRequest{Text: long})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got.Verdict != model.VerdictPass {
			t.Fatalf("long text must always pass, got %s", got.Verdict)
		}

		got, err = o.Evaluate(ctx, adapter.EvalRequest{Text: short})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got.Verdict != model.VerdictFail {
			t.Fatalf("short text must always fail, got %s", got.Verdict)
		}
	}

	det, err := o.DetectGeneration(ctx, long)
	if err != nil {
		t.Fatalf("DetectGeneration: %v", err)
	}
	if det.Confidence != model.ConfidenceNone || det.Detected {
		t.Fatalf("offline detection must be a no-op, got %+v", det)
	}
}

func TestParseEvaluation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		verdict model.Verdict
		comment string
	}{
		{
			name:    "json block",
			in:      "Here you go:\n{\"result\": \"pass\", \"comment\": \"well argued\"}\nthanks",
			verdict: model.VerdictPass,
			comment: "well argued",
		},
		{
			name:    "json fail",
			in:      `{"result": "fail", "comment": "off topic"}`,
			verdict: model.VerdictFail,
			comment: "off topic",
		},
		{
			name:    "keyword fallback negative first",
			in:      "The work does not pass. Comment: lacks any structure",
			verdict: model.VerdictFail,
			comment: "lacks any structure",
		},
		{
			name:    "garbage defaults to fail",
			in:      "beep boop",
			verdict: model.VerdictFail,
		},
	}
	for _, tc := range cases {
		got := parseEvaluation(tc.in)
		if got.Verdict != tc.verdict {
			t.Fatalf("%s: verdict %s, want %s", tc.name, got.Verdict, tc.verdict)
		}
		if tc.comment != "" && got.Comment != tc.comment {
			t.Fatalf("%s: comment %q, want %q", tc.name, got.Comment, tc.comment)
		}
	}
}

func TestParseDetection(t *testing.T) {
	t.Parallel()

	det, ok := parseDetection(`{"ai_detected": true, "confidence": "high", "comment": "pure boilerplate"}`)
	if !ok {
		t.Fatalf("expected a parse")
	}
	if !det.Detected || det.Confidence != model.ConfidenceHigh || det.Details != "pure boilerplate" {
		t.Fatalf("unexpected detection: %+v", det)
	}

	if _, ok := parseDetection("no json here"); ok {
		t.Fatalf("expected parse failure")
	}
}
