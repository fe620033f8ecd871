package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/async"
)

type upload struct {
	field, name, body string
}

func multipartRequest(t *testing.T, target string, uploads []upload, vendor string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, u := range uploads {
		fw, err := mw.CreateFormFile(u.field, u.name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(u.body))
	}
	if vendor != "" {
		mw.WriteField("vendor_name", vendor)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(f *fixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewHTTPHandler(f.svc, 1, quietLogger()).Router().ServeHTTP(rec, req)
	return rec
}

func TestHTTP_RootAndHealth(t *testing.T) {
	f := newFixture(t.TempDir(), nil)

	rec := serve(f, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/v1/invoices/process") {
		t.Errorf("GET / = %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(f, httptest.NewRequest(http.MethodGet, "/health", nil))
	var h Health
	json.Unmarshal(rec.Body.Bytes(), &h)
	if rec.Code != http.StatusOK || h.Status != "healthy" || h.Model != "fake-model" || h.Database != "ok" {
		t.Errorf("GET /health = %d %+v", rec.Code, h)
	}

	down := newFixture(t.TempDir(), errDBDown)
	rec = serve(down, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("GET /health with db down = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHTTP_Process(t *testing.T) {
	tests := []struct {
		name       string
		uploads    []upload
		wantStatus int
		wantBody   string
	}{
		{"success", []upload{{"file", "acme.pdf", "%PDF-1.4"}}, http.StatusOK, `"status":"success"`},
		{"pipeline error", []upload{{"file", "broken.png", "png"}}, http.StatusInternalServerError, "model unavailable"},
		{"unsupported type", []upload{{"file", "notes.txt", "hello"}}, http.StatusBadRequest, "unsupported file type"},
		{"missing file", []upload{{"other", "acme.pdf", "x"}}, http.StatusBadRequest, "file is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			f := newFixture(dir, nil)
			rec := serve(f, multipartRequest(t, "/api/v1/invoices/process", tt.uploads, "Acme Hint"))

			if rec.Code != tt.wantStatus || !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusBadRequest {
				if entries, _ := os.ReadDir(dir); len(entries) != 0 {
					t.Errorf("rejected upload left %d files behind", len(entries))
				}
				return
			}
			if len(f.pipeline.paths) != 1 || !strings.HasPrefix(f.pipeline.paths[0], dir) {
				t.Errorf("processed paths = %v", f.pipeline.paths)
			}
			if !strings.Contains(rec.Body.String(), `"vendor":"Acme Hint"`) {
				t.Errorf("vendor hint not forwarded: %s", rec.Body.String())
			}
		})
	}
}

func TestHTTP_Batch(t *testing.T) {
	f := newFixture(t.TempDir(), nil)
	rec := serve(f, multipartRequest(t, "/api/v1/invoices/batch", []upload{
		{"files", "one.pdf", "%PDF"},
		{"files", "readme.txt", "nope"},
		{"files", "broken.jpg", "jpg"},
	}, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || resp.Successful != 1 || resp.Failed != 2 {
		t.Errorf("summary = %d/%d/%d", resp.Total, resp.Successful, resp.Failed)
	}
	if resp.Results[1].InvoicePath != "readme.txt" || !strings.Contains(resp.Results[1].Error, "unsupported") {
		t.Errorf("results[1] = %+v", resp.Results[1])
	}
	if !strings.HasSuffix(resp.Results[2].InvoicePath, "broken.jpg") || resp.Results[2].Status != constants.StatusError {
		t.Errorf("results[2] = %+v", resp.Results[2])
	}

	rec = serve(f, multipartRequest(t, "/api/v1/invoices/batch", nil, "x"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d", rec.Code)
	}
}

func TestHTTP_SubmitAndStatus(t *testing.T) {
	f := newFixture(t.TempDir(), nil)

	rec := serve(f, multipartRequest(t, "/api/v1/invoices", []upload{{"file", "acme.png", "png"}}, ""))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body = %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	json.Unmarshal(rec.Body.Bytes(), &accepted)
	if accepted["status"] != constants.JobStatusQueued || accepted["id"] == "" {
		t.Fatalf("submit body = %v", accepted)
	}

	tests := []struct {
		id         string
		wantStatus int
		wantState  string
	}{
		{accepted["id"], http.StatusOK, constants.JobStatusQueued},
		{"done-1", http.StatusOK, constants.JobStatusCompleted},
		{"bad-1", http.StatusOK, constants.JobStatusFailed},
		{"missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := serve(f, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+tt.id+"/status", nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("GET status %s = %d", tt.id, rec.Code)
			continue
		}
		if tt.wantState == "" {
			continue
		}
		var st async.JobState
		json.Unmarshal(rec.Body.Bytes(), &st)
		if st.Status != tt.wantState || st.ID != tt.id {
			t.Errorf("GET status %s = %+v", tt.id, st)
		}
	}

	f.queue.closed = true
	rec = serve(f, multipartRequest(t, "/api/v1/invoices", []upload{{"file", "late.png", "png"}}, ""))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("submit on closed queue = %d", rec.Code)
	}
}
