package model

import (
	"sync"
	"time"
)

type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

type JobStage string

const (
	StageQueued      JobStage = "queued"
	StageDiscovering JobStage = "discovering"
	StageExtracting  JobStage = "extracting"
	StageEvaluating  JobStage = "evaluating"
	StageAggregating JobStage = "aggregating"
	StageReporting   JobStage = "reporting"
	StageDone        JobStage = "done"
	StageFailed      JobStage = "failed"
)

var stageMessages = map[JobStage]string{
	StageQueued:      "job queued",
	StageDiscovering: "collecting submissions",
	StageExtracting:  "extracting submission text",
	StageEvaluating:  "evaluating submissions",
	StageAggregating: "aggregating student results",
	StageReporting:   "writing the consolidated report",
	StageDone:        "check finished",
	StageFailed:      "check stopped on error",
}

// Job is one background pipeline run for one target resource. Fields are
// written only by the run that owns the job; readers go through Snapshot.
type Job struct {
	mu sync.Mutex

	ID          string
	ResourceKey string
	Status      JobStatus
	Stage       JobStage
	Message     string
	Completed   int
	Total       int
	Error       string
	ReportPath  string
	CreatedAt   time.Time
}

// JobSnapshot is a consistent, copyable view of a Job for status polling.
type JobSnapshot struct {
	ID          string    `json:"id"`
	ResourceKey string    `json:"resource_key"`
	Status      JobStatus `json:"status"`
	Stage       JobStage  `json:"stage"`
	Message     string    `json:"message"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	Error       string    `json:"error,omitempty"`
	ResultReady bool      `json:"result_ready"`
	DownloadName string   `json:"download_name,omitempty"`
}

func NewJob(id, resourceKey string) *Job {
	return &Job{
		ID:          id,
		ResourceKey: resourceKey,
		Status:      JobStatusQueued,
		Stage:       StageQueued,
		Message:     stageMessages[StageQueued],
		CreatedAt:   time.Now(),
	}
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := JobSnapshot{
		ID:          j.ID,
		ResourceKey: j.ResourceKey,
		Status:      j.Status,
		Stage:       j.Stage,
		Message:     j.Message,
		Completed:   j.Completed,
		Total:       j.Total,
		Error:       j.Error,
		ResultReady: j.ReportPath != "" && j.Status == JobStatusFinished,
	}
	if s.ResultReady {
		s.DownloadName = baseName(j.ReportPath)
	}
	return s
}

func (j *Job) IsActive() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == JobStatusQueued || j.Status == JobStatusRunning
}

// SetStage moves the job to a stage and refreshes the display message.
func (j *Job) SetStage(stage JobStage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	if msg, ok := stageMessages[stage]; ok {
		j.Message = msg
	}
}

func (j *Job) SetRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobStatusRunning
}

// SetProgress records (completed, total) for the current stage.
func (j *Job) SetProgress(completed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Completed = completed
	j.Total = total
}

// Finish marks the terminal success state and publishes the report path.
func (j *Job) Finish(reportPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobStatusFinished
	j.Stage = StageDone
	j.Message = stageMessages[StageDone]
	j.Completed = j.Total
	j.ReportPath = reportPath
}

// Fail marks the terminal failure state with a reason.
func (j *Job) Fail(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobStatusFailed
	j.Stage = StageFailed
	j.Message = stageMessages[StageFailed]
	j.Error = reason
}

// Report returns the report path once finished, empty otherwise.
func (j *Job) Report() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobStatusFinished {
		return ""
	}
	return j.ReportPath
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
