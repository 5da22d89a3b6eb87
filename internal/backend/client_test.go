package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

func clientConfig(baseURL string) common.BackendConfig {
	return common.BackendConfig{
		BaseURL:        baseURL,
		UploadTimeout:  30 * time.Second,
		StatusTimeout:  5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

func submitRequest() entity.ExtractionRequest {
	return entity.ExtractionRequest{
		Primary: entity.Document{
			Filename: "unit31.pdf",
			MIMEType: "application/pdf",
			Content:  []byte("%PDF-1.7 drawing bytes"),
		},
		Enrichments: map[constants.Role]entity.Document{
			constants.RoleMaterial: {
				Filename: "materials.xlsx",
				MIMEType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				Content:  []byte("xlsx bytes"),
			},
		},
		Profile: entity.FormatProfile{Separator: "-", IncludeAreaComponent: true},
	}
}

func TestSubmitImmediatePayload(t *testing.T) {
	var gotAuth string
	var gotParts map[string]bool
	var gotGrammar, gotIncludeArea string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/extract" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotParts = map[string]bool{}
		for field := range r.MultipartForm.File {
			gotParts[field] = true
		}
		gotGrammar = r.FormValue("grammar")
		gotIncludeArea = r.FormValue("include_area")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"base":{"rows":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret-token"), nil)
	result, err := c.Submit(context.Background(), submitRequest(), []byte(`{"template":"size-fluid_code"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Deferred() {
		t.Error("200 response must be immediate")
	}
	if string(result.Payload) != `{"base":{"rows":[]}}` {
		t.Errorf("payload = %s", result.Payload)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if !gotParts["primary_document"] || !gotParts["material_document"] {
		t.Errorf("parts = %v", gotParts)
	}
	if gotParts["secondary_process_document"] || gotParts["corrosion_document"] {
		t.Errorf("unattached roles must not produce parts: %v", gotParts)
	}
	if gotGrammar != `{"template":"size-fluid_code"}` {
		t.Errorf("grammar field = %q", gotGrammar)
	}
	if gotIncludeArea != "true" {
		t.Errorf("include_area = %q", gotIncludeArea)
	}
}

func TestSubmitDeferredTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"task_id":"task-42"}`))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret"), nil)
	result, err := c.Submit(context.Background(), submitRequest(), []byte(`{}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Deferred() {
		t.Fatal("202 response must be deferred")
	}
	if result.Handle.JobID != "task-42" {
		t.Errorf("job id = %q", result.Handle.JobID)
	}
	if result.Handle.SubmittedAt.IsZero() {
		t.Error("submitted_at not stamped")
	}
}

func TestSubmitDeferredWithoutTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret"), nil)
	if _, err := c.Submit(context.Background(), submitRequest(), []byte(`{}`)); err == nil {
		t.Fatal("expected error for 202 without task_id")
	}
}

func TestSubmitServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"grammar missing sequence component"}`))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret"), nil)
	_, err := c.Submit(context.Background(), submitRequest(), []byte(`{}`))
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", serr.StatusCode)
	}
	if serr.Message != "grammar missing sequence component" {
		t.Errorf("message = %q", serr.Message)
	}
}

func TestSubmitMissingCredentialNeverDials(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource(""), nil)
	_, err := c.Submit(context.Background(), submitRequest(), []byte(`{}`))
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if calls != 0 {
		t.Error("missing credential must fail before any bytes move")
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/extract/status/task-42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"state":"PROCESSING","percent":55,"status":"joining enrichment sources"}`))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret"), nil)
	status, err := c.Status(context.Background(), "task-42")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != constants.BackendStateProcessing {
		t.Errorf("state = %s", status.State)
	}
	if status.Percent == nil || *status.Percent != 55 {
		t.Errorf("percent = %v", status.Percent)
	}
	if status.Status != "joining enrichment sources" {
		t.Errorf("status label = %q", status.Status)
	}
}

func TestStatusUnknownState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"EXPLODED"}`))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret"), nil)
	if _, err := c.Status(context.Background(), "task-42"); err == nil {
		t.Fatal("expected unknown state to be rejected")
	}
}

func TestStatusServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream worker lost"))
	}))
	defer srv.Close()

	c := NewClient(clientConfig(srv.URL), NewStaticTokenSource("secret"), nil)
	_, err := c.Status(context.Background(), "task-42")
	var serr *ServerError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 ServerError, got %v", err)
	}
	if serr.Message != "upstream worker lost" {
		t.Errorf("message = %q", serr.Message)
	}
}
