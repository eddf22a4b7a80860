// File: internal/infra/jobs/manager.go
package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/infra/logging"
	"classroom-ai-grading/internal/infra/metrics"
	"classroom-ai-grading/internal/usecase"
)

// Runner is the pipeline the manager executes; *usecase.Checker satisfies it.
type Runner interface {
	Run(ctx context.Context, params usecase.RunParams, progress usecase.Progress) (string, error)
}

// LaunchRequest describes one requested check run.
type LaunchRequest struct {
	ResourceKey  string
	RootDir      string
	TemplatePath string
	Prompt       string
	AICheck      bool
}

// Manager owns the resource-key -> job registry and enforces at most one
// active job per resource. It is the composition root's single instance;
// there is no package-level state.
type Manager struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	byID    map[string]*model.Job
	cancels map[string]context.CancelFunc

	runner     Runner
	reportsDir string
	jobTimeout time.Duration
	log        *zerolog.Logger
}

func NewManager(runner Runner, reportsDir string, jobTimeout time.Duration, log *zerolog.Logger) *Manager {
	return &Manager{
		jobs:       make(map[string]*model.Job),
		byID:       make(map[string]*model.Job),
		cancels:    make(map[string]context.CancelFunc),
		runner:     runner,
		reportsDir: reportsDir,
		jobTimeout: jobTimeout,
		log:        log,
	}
}

// Launch starts a background run for the resource, or reports the already
// active job via ErrJobConflict. The check-then-insert is atomic.
func (m *Manager) Launch(req LaunchRequest) (model.JobSnapshot, error) {
	m.mu.Lock()
	if existing, ok := m.jobs[req.ResourceKey]; ok && existing.IsActive() {
		snap := existing.Snapshot()
		m.mu.Unlock()
		return snap, domain.ErrJobConflict
	}

	job := model.NewJob(uuid.NewString(), req.ResourceKey)
	m.jobs[req.ResourceKey] = job
	m.byID[job.ID] = job

	var ctx context.Context
	var cancel context.CancelFunc
	if m.jobTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), m.jobTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	go m.run(ctx, cancel, job, req)
	return job.Snapshot(), nil
}

// Snapshot returns a consistent view of a job for status polling.
func (m *Manager) Snapshot(jobID string) (model.JobSnapshot, error) {
	m.mu.Lock()
	job, ok := m.byID[jobID]
	m.mu.Unlock()
	if !ok {
		return model.JobSnapshot{}, domain.ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// ReportPath resolves the stored report for a finished job.
func (m *Manager) ReportPath(jobID string) (string, error) {
	m.mu.Lock()
	job, ok := m.byID[jobID]
	m.mu.Unlock()
	if !ok {
		return "", domain.ErrJobNotFound
	}
	path := job.Report()
	if path == "" {
		return "", domain.ErrJobNotFound
	}
	return path, nil
}

// Cancel requests a prompt stop: no new evaluation calls are issued and the
// job fails with a cancellation reason once in-flight calls drain.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	job, ok := m.byID[jobID]
	cancel := m.cancels[jobID]
	m.mu.Unlock()
	if !ok {
		return domain.ErrJobNotFound
	}
	if !job.IsActive() || cancel == nil {
		return domain.ErrJobNotCancellable
	}
	cancel()
	return nil
}

// run executes the pipeline on its own goroutine. The deferred block makes a
// terminal status unconditional, panics included.
func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, job *model.Job, req LaunchRequest) {
	log := logging.With(logging.WithJobID(logging.WithResourceKey(ctx, req.ResourceKey), job.ID), m.log)

	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, job.ID)
		m.mu.Unlock()

		if r := recover(); r != nil {
			job.Fail(fmt.Sprintf("internal error: %v", r))
			log.Error().Interface("panic", r).Msg("check job panicked")
		}
		snap := job.Snapshot()
		metrics.IncJob(string(snap.Status))
		log.Info().Str("status", string(snap.Status)).Str("stage", string(snap.Stage)).Msg("check job finished")
	}()

	job.SetRunning()
	log.Info().Str("root", req.RootDir).Bool("ai_check", req.AICheck).Msg("check job started")

	reportPath, err := m.runner.Run(ctx, usecase.RunParams{
		RootDir:      req.RootDir,
		TemplatePath: req.TemplatePath,
		Prompt:       req.Prompt,
		AICheck:      req.AICheck,
	}, func(stage model.JobStage, completed, total int) {
		job.SetStage(stage)
		job.SetProgress(completed, total)
	})
	if err != nil {
		job.Fail(failureReason(ctx, err))
		return
	}

	stored, err := m.storeReport(job.ID, reportPath)
	if err != nil {
		job.Fail(fmt.Sprintf("store report: %v", err))
		return
	}
	job.Finish(stored)
}

// storeReport copies the run's report into the retained reports directory
// under a unique name, so later runs cannot overwrite it.
func (m *Manager) storeReport(jobID, reportPath string) (string, error) {
	if m.reportsDir == "" {
		return reportPath, nil
	}
	if err := os.MkdirAll(m.reportsDir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(reportPath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	name := fmt.Sprintf("%s_%s_%s%s", stem, time.Now().UTC().Format("20060102_150405"), jobID[:8], ext)
	dst := filepath.Join(m.reportsDir, name)

	src, err := os.Open(reportPath)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	return dst, nil
}

func failureReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return "job exceeded its time limit"
	case ctx.Err() == context.Canceled:
		return "job was cancelled"
	default:
		return err.Error()
	}
}
