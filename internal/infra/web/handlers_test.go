// File: internal/infra/web/handlers_test.go
package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/infra/jobs"
)

type mockJobService struct {
	launch     func(jobs.LaunchRequest) (model.JobSnapshot, error)
	snapshot   func(string) (model.JobSnapshot, error)
	reportPath func(string) (string, error)
	cancel     func(string) error
}

func (m *mockJobService) Launch(req jobs.LaunchRequest) (model.JobSnapshot, error) {
	return m.launch(req)
}
func (m *mockJobService) Snapshot(id string) (model.JobSnapshot, error) { return m.snapshot(id) }
func (m *mockJobService) ReportPath(id string) (string, error) { return m.reportPath(id) }
func (m *mockJobService) Cancel(id string) error { return m.cancel(id) }

func newTestServer(svc JobService) http.Handler {
	log := zerolog.Nop()
	return NewServer(svc, &log).Handler()
}

func TestStartCheckAccepted(t *testing.T) {
	t.Parallel()

	var got jobs.LaunchRequest
	svc := &mockJobService{
		launch: func(req jobs.LaunchRequest) (model.JobSnapshot, error) {
			got = req
			return model.JobSnapshot{ID: "job-1", ResourceKey: req.ResourceKey, Status: model.JobStatusQueued}, nil
		},
	}

	body := `{"root_dir":"/data/room-42","prompt":"grade strictly","ai_check":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/room-42/check", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", rec.Code, rec.Body)
	}
	if got.ResourceKey != "room-42" || got.RootDir != "/data/room-42" || !got.AICheck {
		t.Errorf("launch request = %+v", got)
	}
	var snap model.JobSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.ID != "job-1" {
		t.Errorf("job id = %s", snap.ID)
	}
}

func TestStartCheckConflictCarriesActiveJob(t *testing.T) {
	t.Parallel()

	svc := &mockJobService{
		launch: func(jobs.LaunchRequest) (model.JobSnapshot, error) {
			return model.JobSnapshot{ID: "active-7", Status: model.JobStatusRunning}, domain.ErrJobConflict
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/room-1/check", strings.NewReader(`{"root_dir":"/data/x"}`))
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Job == nil || resp.Job.ID != "active-7" {
		t.Errorf("conflict response does not name the active job: %+v", resp)
	}
}

func TestStartCheckValidation(t *testing.T) {
	t.Parallel()

	svc := &mockJobService{
		launch: func(jobs.LaunchRequest) (model.JobSnapshot, error) {
			t.Error("launch must not be called")
			return model.JobSnapshot{}, nil
		},
	}
	srv := newTestServer(svc)

	for name, body := range map[string]string{
		"malformed json": `{root_dir}`,
		"missing root":   `{"prompt":"x"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r/check", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestJobStatus(t *testing.T) {
	t.Parallel()

	svc := &mockJobService{
		snapshot: func(id string) (model.JobSnapshot, error) {
			if id != "job-9" {
				return model.JobSnapshot{}, domain.ErrJobNotFound
			}
			return model.JobSnapshot{ID: id, Status: model.JobStatusRunning, Stage: model.StageEvaluating, Completed: 3, Total: 10}, nil
		},
	}
	srv := newTestServer(svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-9", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap model.JobSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Stage != model.StageEvaluating || snap.Completed != 3 {
		t.Errorf("snapshot = %+v", snap)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: status = %d, want 404", rec.Code)
	}
}

func TestJobReportDownload(t *testing.T) {
	t.Parallel()

	report := filepath.Join(t.TempDir(), "course_summary.xlsx")
	if err := os.WriteFile(report, []byte("workbook-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := &mockJobService{
		reportPath: func(id string) (string, error) {
			if id != "done-1" {
				return "", domain.ErrJobNotFound
			}
			return report, nil
		},
	}
	srv := newTestServer(svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/done-1/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "course_summary.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "workbook-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/pending/report", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unready job: status = %d, want 404", rec.Code)
	}
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	svc := &mockJobService{
		cancel: func(id string) error {
			switch id {
			case "running":
				return nil
			case "finished":
				return domain.ErrJobNotCancellable
			default:
				return domain.ErrJobNotFound
			}
		},
	}
	srv := newTestServer(svc)

	cases := []struct {
		id   string
		want int
	}{
		{"running", http.StatusNoContent},
		{"finished", http.StatusConflict},
		{"ghost", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+tc.id, nil))
		if rec.Code != tc.want {
			t.Errorf("cancel %s: status = %d, want %d", tc.id, rec.Code, tc.want)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer(&mockJobService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
