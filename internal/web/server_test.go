package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/config"
	"github.com/JonMunkholm/census/internal/core"
	"github.com/JonMunkholm/census/internal/metrics"
)

const nationalityCSV = ",,Central Federal District,\n" +
	"1.,,Sample Region,1000\n" +
	",,indicating nationality affiliation,\n" +
	"1.,,Russians,800\n"

const ageSexCSV = ",,,Sample Region,,,,,,\n" +
	",,,Urban and rural population,,,,,,\n" +
	",,,0 - 4,,,,,120,130\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	nat := filepath.Join(dir, "nationality.csv")
	ages := filepath.Join(dir, "agesex.csv")
	if err := os.WriteFile(nat, []byte(nationalityCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ages, []byte(ageSexCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	return &config.Config{
		Census: config.CensusConfig{NationalityFile: nat, AgeSexFile: ages},
		Server: config.ServerConfig{
			Port:           8080,
			RequestTimeout: 5 * time.Second,
			MaxUploadSize:  1 << 20,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *prometheus.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := core.NewService(nil, core.Options{
		Logger: logger,
		Scanner: census.NewScanner(logger,
			census.WithObserver(m),
			census.WithExpectedRegions(0, 0)),
		Observer: m,
	})
	return NewServer(svc, cfg, logger, reg), reg
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[healthResponse](t, rec)
	if got.Status != "ok" || got.Database {
		t.Errorf("health = %+v", got)
	}
	if got.Loads.MaxConcurrent != 1 {
		t.Errorf("loads = %+v", got.Loads)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestReconcile(t *testing.T) {
	s, reg := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[core.ScanResult](t, rec)
	if got.NationalityReport.Status != census.StatusOK || got.AgeSexReport.Status != census.StatusOK {
		t.Errorf("reports = %v / %v", got.NationalityReport, got.AgeSexReport)
	}
	if len(got.Reconciliation.Pairs) != 1 || got.Reconciliation.Pairs[0].Nationality != "Sample Region" {
		t.Errorf("pairs = %+v", got.Reconciliation.Pairs)
	}

	// Both scans were observed.
	mrec := httptest.NewRecorder()
	s.Router().ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(mrec.Body.String(), `census_scans_total{status="ok",table="agesex"} 1`) {
		t.Errorf("metrics missing scan counter:\n%s", mrec.Body.String())
	}
	if _, err := reg.Gather(); err != nil {
		t.Errorf("Gather() error = %v", err)
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestPreview(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	body, ct := multipartBody(t, "nat.csv", nationalityCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/preview/nationality", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Kind   string                 `json:"kind"`
		Report census.Report          `json:"report"`
		Data   census.NationalityData `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != core.KindNationality || got.Report.Source != "nat.csv" {
		t.Errorf("preview = %+v", got)
	}
	if got.Data["Sample Region"].Nations["Russians"] != 800 {
		t.Errorf("data = %+v", got.Data)
	}
}

func TestPreview_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		filename   string
		content    string
		noFile     bool
		wantStatus int
		wantCode   string
	}{
		{"unknown kind", "/api/preview/households", "a.csv", "x", false, http.StatusNotFound, "SHEET004"},
		{"unsupported extension", "/api/preview/agesex", "a.ods", "x", false, http.StatusBadRequest, "FILE003"},
		{"narrow sheet", "/api/preview/agesex", "a.csv", "a,b,c\n", false, http.StatusBadRequest, "SHEET001"},
		{"no file", "/api/preview/agesex", "", "", true, http.StatusBadRequest, "FILE007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig(t))

			var req *http.Request
			if tt.noFile {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				_ = mw.WriteField("other", "value")
				_ = mw.Close()
				req = httptest.NewRequest(http.MethodPost, tt.path, &buf)
				req.Header.Set("Content-Type", mw.FormDataContentType())
			} else {
				body, ct := multipartBody(t, tt.filename, tt.content)
				req = httptest.NewRequest(http.MethodPost, tt.path, body)
				req.Header.Set("Content-Type", ct)
			}

			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestPreview_TooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxUploadSize = 64
	s, _ := newTestServer(t, cfg)

	body, ct := multipartBody(t, "nat.csv", strings.Repeat(nationalityCSV, 10))
	req := httptest.NewRequest(http.MethodPost, "/api/preview/nationality", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestLoadEndpoints_WithoutDatabase(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/loads"},
		{http.MethodGet, "/api/loads"},
		{http.MethodPost, "/api/reset"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig(t))

			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != "LOAD003" {
				t.Errorf("code = %q, want LOAD003", got.Code)
			}
		})
	}
}

func TestLoad_InvalidBody(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/api/loads", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/loads", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/loads", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("with key: status = %d, want 503 (no database)", rec.Code)
	}

	// Reads stay open.
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/loads?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestExtendWriteDeadline(t *testing.T) {
	const writeTimeout = 50 * time.Millisecond

	tests := []struct {
		name    string
		extend  time.Duration
		wantErr bool
	}{
		{"extended outlives write timeout", time.Second, false},
		{"not extended", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := extendWriteDeadline(w, tt.extend); err != nil {
					t.Errorf("extendWriteDeadline() error = %v", err)
				}
				time.Sleep(4 * writeTimeout)
				_, _ = io.WriteString(w, "done")
			}))
			ts.Config.WriteTimeout = writeTimeout
			ts.Start()
			defer ts.Close()

			resp, err := ts.Client().Get(ts.URL)
			if err == nil {
				defer resp.Body.Close()
				var body []byte
				body, err = io.ReadAll(resp.Body)
				if err == nil && string(body) != "done" {
					t.Errorf("body = %q, want done", body)
				}
			}
			if gotErr := err != nil; gotErr != tt.wantErr {
				t.Errorf("request error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
