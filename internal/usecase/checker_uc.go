// File: internal/usecase/checker_uc.go
package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/domain/ports/adapter"
	"classroom-ai-grading/internal/infra/extract"
	"classroom-ai-grading/internal/infra/metrics"
	"classroom-ai-grading/internal/infra/report"
	"classroom-ai-grading/internal/infra/worker"
)

const (
	// Texts shorter than this are still evaluated, with an explicit notice
	// so the model judges the lack of content, not silence.
	shortTextLimit = 70

	defaultCriteria = "Grading criteria were not provided. Judge the work against general academic requirements."
	emptyTextNotice = "The submission contains no extractable text."
)

// RunParams is everything a caller supplies for one pipeline run.
type RunParams struct {
	RootDir      string
	TemplatePath string
	Prompt       string // extra grading instructions, may be empty
	AICheck      bool   // run AI-generation detection before grading
}

// Progress receives (stage, completed, total) after every unit of work.
type Progress func(stage model.JobStage, completed, total int)

// Checker sequences discovery, extraction, evaluation, aggregation and
// reporting for one submission root.
type Checker struct {
	evaluator adapter.Evaluator
	discover  *Discoverer
	workers   int
	log       *zerolog.Logger
}

func NewChecker(evaluator adapter.Evaluator, workers int, log *zerolog.Logger) *Checker {
	if workers <= 0 {
		workers = 1
	}
	return &Checker{
		evaluator: evaluator,
		discover:  NewDiscoverer(log),
		workers:   workers,
		log:       log,
	}
}

// Run executes the whole pipeline and returns the consolidated report path.
// Non-fatal problems degrade individual submissions; only input and
// report-write failures (or cancellation) abort the run.
func (c *Checker) Run(ctx context.Context, params RunParams, progress Progress) (string, error) {
	if progress == nil {
		progress = func(model.JobStage, int, int) {}
	}

	// discovering
	progress(model.StageDiscovering, 0, 0)
	criteria := c.loadCriteria(params.TemplatePath)
	subs, err := c.discover.Discover(params.RootDir)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "", domain.ErrNoSubmissions
	}
	total := len(subs)
	progress(model.StageDiscovering, 0, total)

	// extracting
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, xerr := extract.Text(subs[i].Path, subs[i].Format)
		subs[i].Text = res.Text
		subs[i].Degraded = res.Degraded
		subs[i].Err = xerr
		if xerr != nil {
			c.log.Warn().Str("file", subs[i].Path).Err(xerr).Msg("extraction failed, evaluating as empty")
		}
		progress(model.StageExtracting, i+1, total)
	}

	// evaluating
	results, err := c.evaluateAll(ctx, subs, criteria, params, progress)
	if err != nil {
		return "", err
	}

	// aggregating
	progress(model.StageAggregating, 0, 1)
	aggs := Aggregate(results)
	for _, agg := range aggs {
		if err := writeAggregate(agg); err != nil {
			c.log.Warn().Str("student", agg.Best.Student).Err(err).Msg("could not write per-student aggregate")
		}
	}
	progress(model.StageAggregating, 1, 1)

	// reporting
	progress(model.StageReporting, 0, 1)
	path, err := report.WriteSummary(params.RootDir, aggs)
	if err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	progress(model.StageReporting, 1, 1)

	c.log.Info().Str("report", path).Int("students", len(aggs)).Int("submissions", total).Msg("check finished")
	return path, nil
}

// evaluateAll fans submissions out over the worker pool. Every unit completes
// (or is recorded as errored) before the pipeline advances.
func (c *Checker) evaluateAll(ctx context.Context, subs []model.Submission, criteria string, params RunParams, progress Progress) ([]model.EvaluationResult, error) {
	total := len(subs)
	progress(model.StageEvaluating, 0, total)

	pool := worker.NewPool(c.workers, c.log)
	pool.Start(ctx)

	var (
		mu        sync.Mutex
		results   = make([]model.EvaluationResult, 0, total)
		completed int
		wg        sync.WaitGroup
	)

	submitted := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			break // stop issuing new units; in-flight calls drain below
		}
		sub := sub
		wg.Add(1)
		if err := pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			res := c.evaluateOne(ctx, sub, criteria, params)
			mu.Lock()
			results = append(results, res)
			completed++
			done := completed
			mu.Unlock()
			metrics.IncSubmission(string(res.Verdict))
			progress(model.StageEvaluating, done, total)
		}); err != nil {
			wg.Done()
			break
		}
		submitted++
	}

	wg.Wait()
	pool.Close()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if submitted < total {
		return nil, fmt.Errorf("only %d of %d submissions were scheduled", submitted, total)
	}
	return results, nil
}

// evaluateOne produces the write-once result for a single submission,
// reusing a prior artifact when one exists.
func (c *Checker) evaluateOne(ctx context.Context, sub model.Submission, criteria string, params RunParams) model.EvaluationResult {
	artifact := artifactPath(sub)
	if prev, ok := readArtifact(artifact, sub); ok {
		c.log.Info().Str("file", sub.Path).Msg("already evaluated, reusing artifact")
		return prev
	}

	text := prepareText(sub)

	var det adapter.Detection
	confidence := model.ConfidenceNone
	if params.AICheck {
		var err error
		det, err = c.evaluator.DetectGeneration(ctx, text)
		if err != nil {
			c.log.Warn().Str("file", sub.Path).Err(err).Msg("AI detection failed, grading without it")
			det = adapter.Detection{Confidence: model.ConfidenceNone}
		} else {
			confidence = det.Confidence
		}
	}

	eval, err := c.evaluator.Evaluate(ctx, adapter.EvalRequest{
		Text:            text,
		Criteria:        criteria,
		Prompt:          params.Prompt,
		Degraded:        sub.Degraded,
		PriorConfidence: confidence,
	})
	if err != nil {
		c.log.Error().Str("file", sub.Path).Err(err).Msg("evaluation failed")
		eval = adapter.Evaluation{
			Verdict: model.VerdictError,
			Comment: fmt.Sprintf("evaluation failed: %v", err),
		}
	}

	// High-confidence detection is the only detector outcome that decides
	// the verdict; anything weaker is an advisory remark.
	if params.AICheck && det.Detected && eval.Verdict != model.VerdictError {
		if det.Confidence == model.ConfidenceHigh {
			eval.Verdict = model.VerdictFail
			eval.Comment += "\n\nReason: high-confidence AI-generation detection."
		} else {
			eval.Comment += "\n\nNote: possible signs of AI generation (confidence below high)."
		}
	}

	res := model.EvaluationResult{
		Student:      filepath.Base(sub.Folder),
		Folder:       sub.Folder,
		File:         filepath.Base(sub.Path),
		SourcePath:   sub.Path,
		Verdict:      eval.Verdict,
		AIDetected:   det.Detected,
		Confidence:   confidence,
		AIDetails:    det.Details,
		Comment:      eval.Comment,
		CheckedAt:    time.Now(),
		Degraded:     sub.Degraded,
		ArtifactPath: artifact,
	}

	if err := writeArtifact(artifact, res); err != nil {
		c.log.Error().Str("file", sub.Path).Err(err).Msg("could not persist result artifact")
	}
	return res
}

// prepareText gives the evaluator something meaningful even for empty or
// suspiciously short extractions.
func prepareText(sub model.Submission) string {
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		return emptyTextNotice
	}
	if n := len([]rune(text)); n < shortTextLimit {
		return fmt.Sprintf("TEXT IS VERY SHORT (%d characters): %s", n, text)
	}
	return text
}

// loadCriteria extracts the grading template; a missing or empty template
// degrades to generic criteria rather than failing the run.
func (c *Checker) loadCriteria(templatePath string) string {
	if templatePath == "" {
		return defaultCriteria
	}
	if _, err := os.Stat(templatePath); err != nil {
		c.log.Warn().Str("template", templatePath).Err(err).Msg("template unavailable, using general criteria")
		return defaultCriteria
	}
	format, ok := model.DetectFormat(templatePath)
	if !ok {
		format = model.FormatDocx
	}
	res, err := extract.Text(templatePath, format)
	if err != nil || strings.TrimSpace(res.Text) == "" {
		c.log.Warn().Str("template", templatePath).Err(err).Msg("template empty or unreadable, using general criteria")
		return defaultCriteria
	}
	return res.Text
}
