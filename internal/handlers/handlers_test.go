package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photomap/internal/catalog"
	"photomap/internal/filesystem"
	"photomap/internal/intake"
	"photomap/internal/lifecycle"
	"photomap/internal/startup"
)

type stubIntake struct {
	status intake.Status
}

func (s stubIntake) IsReady() bool            { return s.status.Ready }
func (s stubIntake) GetStatus() intake.Status { return s.status }

type stubStats struct {
	stats catalog.Stats
	err   error
}

func (s stubStats) GetStats(context.Context) (catalog.Stats, error) { return s.stats, s.err }

type stubMemory struct {
	usage  float64
	paused bool
}

func (s stubMemory) GetUsage() float64 { return s.usage }
func (s stubMemory) IsPaused() bool    { return s.paused }

type testDirs struct {
	incoming string
	failed   string
}

func setupHandlers(t *testing.T, status intake.Status, stats stubStats, mem stubMemory) (*Handlers, testDirs) {
	t.Helper()

	root := t.TempDir()
	dirs := testDirs{incoming: filepath.Join(root, "incoming"), failed: filepath.Join(root, "failed")}
	for _, d := range []string{dirs.incoming, dirs.failed} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	h := New(stubIntake{status: status}, stats, mem, Config{
		IncomingDir: dirs.incoming,
		FailedDir:   dirs.failed,
		Retry:       filesystem.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	return h, dirs
}

func serve(t *testing.T, h *Handlers, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthCheck(t *testing.T) {
	polled := time.Now()

	tests := []struct {
		name       string
		status     intake.Status
		stats      stubStats
		mem        stubMemory
		wantCode   int
		wantStatus string
	}{
		{
			name:       "healthy",
			status:     intake.Status{Ready: true, LastPoll: polled, Workers: 2},
			stats:      stubStats{stats: catalog.Stats{Photos: 3, OrphanedPhotos: 1}},
			wantCode:   http.StatusOK,
			wantStatus: statusHealthy,
		},
		{
			name:       "starting",
			status:     intake.Status{},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusStarting,
		},
		{
			name:       "poll failing",
			status:     intake.Status{LastPoll: polled, LastError: "permission denied"},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusDegraded,
		},
		{
			name:       "catalog unavailable",
			status:     intake.Status{Ready: true, LastPoll: polled},
			stats:      stubStats{err: catalog.ErrPersistence},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusDegraded,
		},
		{
			name:       "memory paused",
			status:     intake.Status{Ready: true, LastPoll: polled},
			mem:        stubMemory{usage: 0.9, paused: true},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupHandlers(t, tt.status, tt.stats, tt.mem)
			w := serve(t, h, http.MethodGet, "/healthz")

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Version != startup.Version {
				t.Errorf("version = %q", resp.Version)
			}
			if tt.stats.err == nil && (resp.Catalog == nil || resp.Catalog.Photos != tt.stats.stats.Photos) {
				t.Errorf("catalog = %+v", resp.Catalog)
			}
			if tt.stats.err != nil && resp.CatalogError == "" {
				t.Error("catalog error not reported")
			}
		})
	}
}

func TestProbes(t *testing.T) {
	ready, _ := setupHandlers(t, intake.Status{Ready: true}, stubStats{}, stubMemory{})
	notReady, _ := setupHandlers(t, intake.Status{}, stubStats{}, stubMemory{})

	tests := []struct {
		name     string
		h        *Handlers
		method   string
		path     string
		wantCode int
	}{
		{"live", notReady, http.MethodGet, "/livez", http.StatusOK},
		{"live head", notReady, http.MethodHead, "/livez", http.StatusOK},
		{"ready", ready, http.MethodGet, "/readyz", http.StatusOK},
		{"not ready", notReady, http.MethodGet, "/readyz", http.StatusServiceUnavailable},
		{"version", notReady, http.MethodGet, "/version", http.StatusOK},
		{"metrics", notReady, http.MethodGet, "/metrics", http.StatusOK},
		{"wrong method", ready, http.MethodPost, "/readyz", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, tt.h, tt.method, tt.path)
			if w.Code != tt.wantCode {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.wantCode)
			}
		})
	}
}

func TestHeadLivenessHasNoBody(t *testing.T) {
	h, _ := setupHandlers(t, intake.Status{}, stubStats{}, stubMemory{})
	w := serve(t, h, http.MethodHead, "/livez")
	if w.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	h, _ := setupHandlers(t, intake.Status{}, stubStats{}, stubMemory{})
	w := serve(t, h, http.MethodGet, "/version")

	var info startup.BuildInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info != startup.GetBuildInfo() {
		t.Errorf("version = %+v, want %+v", info, startup.GetBuildInfo())
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Error("missing Cache-Control header")
	}
}

func TestListFailed(t *testing.T) {
	h, dirs := setupHandlers(t, intake.Status{}, stubStats{}, stubMemory{})

	w := serve(t, h, http.MethodGet, "/failed")
	if w.Code != http.StatusOK || w.Body.String() != "[]\n" {
		t.Errorf("empty list = %d %q", w.Code, w.Body.String())
	}

	bad := filepath.Join(dirs.failed, "bad.jpg")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	diag := lifecycle.FormatDiagnostic(&lifecycle.PipelineError{
		Kind: lifecycle.KindDecode, Stage: lifecycle.StageThumbnail, Err: errors.New("bad header"),
	}, time.Now())
	if err := os.WriteFile(lifecycle.DiagnosticPath(bad), diag, 0o644); err != nil {
		t.Fatal(err)
	}

	w = serve(t, h, http.MethodGet, "/failed")
	var files []lifecycle.FailedFile
	if err := json.NewDecoder(w.Body).Decode(&files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "bad.jpg" || files[0].Diagnostic == nil ||
		files[0].Diagnostic.Kind != lifecycle.KindDecode {
		t.Errorf("files = %+v", files)
	}
}

func TestRequeueFailed(t *testing.T) {
	h, dirs := setupHandlers(t, intake.Status{}, stubStats{}, stubMemory{})

	write := func(dir, name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(dirs.failed, "retry.jpg")
	write(dirs.failed, "dup.jpg")
	write(dirs.incoming, "dup.jpg")

	tests := []struct {
		name     string
		file     string
		wantCode int
	}{
		{"requeued", "retry.jpg", http.StatusOK},
		{"missing", "missing.jpg", http.StatusNotFound},
		{"conflict", "dup.jpg", http.StatusConflict},
		{"hidden", ".secret", http.StatusBadRequest},
		{"diagnostic", "x.jpg.error.txt", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, h, http.MethodPost, "/failed/"+tt.file+"/requeue")
			if w.Code != tt.wantCode {
				t.Errorf("requeue %s = %d, want %d (%s)", tt.file, w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dirs.incoming, "retry.jpg")); err != nil {
		t.Errorf("retry.jpg not in incoming: %v", err)
	}
}
