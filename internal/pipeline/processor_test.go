package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/backend"
	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
	"github.com/linetrace/linelist-tracker/internal/extraction"
	"github.com/linetrace/linelist-tracker/internal/grammar"
	"github.com/linetrace/linelist-tracker/internal/merge"
	"github.com/linetrace/linelist-tracker/internal/profiles"
	"github.com/linetrace/linelist-tracker/internal/repository"
)

const successEnvelope = `{
	"base": {
		"rows": [
			{"line_number": "2-D-31-5777", "size": "2", "fluid_code": "D", "area": "31", "sequence": "5777"},
			{"line_number": "3-P-31-5800", "size": "3", "fluid_code": "P", "area": "31", "sequence": "5800"}
		]
	},
	"enrichments": {
		"material": {
			"status": "ok",
			"rows": [{"line_number": "2-D-31-5777", "material_grade": "A106-B", "pipe_schedule": "40"}]
		},
		"corrosion": {
			"status": "failed",
			"error": "no identifier column"
		}
	}
}`

type immediateClock struct{}

func (immediateClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func setupProcessor(t *testing.T, backendURL string) (*Processor, repository.HistoryRepository) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	resolver := profiles.NewResolver(profiles.NewStore(rdb), "test", nil)
	if _, err := resolver.SelectPreset(profiles.PresetStandard); err != nil {
		t.Fatalf("select preset: %v", err)
	}

	db, err := repository.OpenHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	history := repository.NewHistoryRepository(db, nil)
	if err := history.Init(context.Background()); err != nil {
		t.Fatalf("init history: %v", err)
	}

	cfg := common.BackendConfig{
		BaseURL:        backendURL,
		UploadTimeout:  30 * time.Second,
		StatusTimeout:  5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
	client := backend.NewClient(cfg, backend.NewStaticTokenSource("secret"), nil)
	submitter := extraction.NewSubmitter(client, grammar.NewEngine(), nil)

	proc := NewProcessor(
		resolver,
		submitter,
		client,
		common.PollConfig{Interval: time.Second, MaxAttempts: 10},
		merge.NewMerger(nil),
		history,
		nil,
		extraction.WithClock(immediateClock{}),
	)
	return proc, history
}

func runInput() RunInput {
	return RunInput{
		Primary: entity.Document{
			Filename: "unit31.pdf",
			MIMEType: "application/pdf",
			Content:  []byte("%PDF-drawing"),
		},
		Enrichments: map[constants.Role]entity.Document{
			constants.RoleMaterial:  {Filename: "materials.xlsx", MIMEType: "application/octet-stream", Content: []byte("m")},
			constants.RoleCorrosion: {Filename: "corrosion.xlsx", MIMEType: "application/octet-stream", Content: []byte("c")},
		},
	}
}

func TestRunImmediateResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(successEnvelope))
	}))
	defer srv.Close()

	proc, history := setupProcessor(t, srv.URL)
	result, err := proc.Run(context.Background(), runInput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.JobID != "" {
		t.Errorf("immediate run carries job id %q", result.JobID)
	}
	if result.Report.Records != 2 {
		t.Errorf("records = %d", result.Report.Records)
	}
	if result.Summary != "enriched with 1 of 3 sources" {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.Records[0].EnrichmentFields["material_grade"] != "A106-B" {
		t.Error("material enrichment missing")
	}

	entry, err := history.GetByID(context.Background(), result.HistoryID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if entry.Status != constants.HistoryStatusSucceeded || entry.RecordCount != 2 || entry.SourcesOK != 1 {
		t.Errorf("history entry = %+v", entry)
	}
	if entry.Template != "size-fluid_code-area-sequence" {
		t.Errorf("template = %q", entry.Template)
	}
}

func TestRunDeferredJobPolledToSuccess(t *testing.T) {
	var statusCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/extract":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"task_id":"task-77"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/extract/status/task-77":
			switch atomic.AddInt32(&statusCalls, 1) {
			case 1:
				_, _ = w.Write([]byte(`{"state":"PENDING"}`))
			case 2:
				_, _ = w.Write([]byte(`{"state":"PROCESSING","percent":70}`))
			default:
				_, _ = w.Write([]byte(`{"state":"SUCCESS","result":` + successEnvelope + `}`))
			}
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	proc, history := setupProcessor(t, srv.URL)
	result, err := proc.Run(context.Background(), runInput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.JobID != "task-77" {
		t.Errorf("job id = %q", result.JobID)
	}
	if got := atomic.LoadInt32(&statusCalls); got != 3 {
		t.Errorf("status queries = %d, want 3", got)
	}
	if result.Report.Records != 2 {
		t.Errorf("records = %d", result.Report.Records)
	}

	entry, err := history.GetByID(context.Background(), result.HistoryID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if entry.Status != constants.HistoryStatusSucceeded {
		t.Errorf("history status = %s", entry.Status)
	}
}

func TestRunDeferredJobFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"task_id":"task-13"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state":"FAILURE","error":"drawing resolution too low"}`))
	}))
	defer srv.Close()

	proc, history := setupProcessor(t, srv.URL)
	result, err := proc.Run(context.Background(), runInput())
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
	var perr *extraction.PollError
	if !errors.As(err, &perr) || perr.Kind != extraction.PollServerFailure {
		t.Fatalf("expected SERVER_FAILURE, got %v", err)
	}

	entries, err := history.ListRecent(context.Background(), 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("history: %v (%d entries)", err, len(entries))
	}
	if entries[0].Status != constants.HistoryStatusFailed {
		t.Errorf("history status = %s", entries[0].Status)
	}
}

func TestRunWithoutProfileFailsFast(t *testing.T) {
	dialed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dialed = true
	}))
	defer srv.Close()

	proc, _ := setupProcessor(t, srv.URL)

	// Rebuild with an unselected resolver.
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	unselected := profiles.NewResolver(profiles.NewStore(rdb), "empty", nil)
	proc.resolver = unselected

	_, err := proc.Run(context.Background(), runInput())
	if !errors.Is(err, profiles.ErrNoneSelected) {
		t.Fatalf("expected ErrNoneSelected, got %v", err)
	}
	if dialed {
		t.Error("no-profile run must not touch the backend")
	}
}

func TestRunRejectsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":{"rows":[{"line_number":"x","mystery_field":"y"}]}}`))
	}))
	defer srv.Close()

	proc, history := setupProcessor(t, srv.URL)
	if _, err := proc.Run(context.Background(), runInput()); err == nil {
		t.Fatal("expected schema violation to fail the run")
	}

	entries, err := history.ListRecent(context.Background(), 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("history: %v", err)
	}
	if entries[0].Status != constants.HistoryStatusFailed {
		t.Errorf("history status = %s", entries[0].Status)
	}
}
