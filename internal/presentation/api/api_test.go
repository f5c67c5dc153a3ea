package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hilthontt/roomdrop/internal/application/transfer"
	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/configs"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/metrics"
	"github.com/hilthontt/roomdrop/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/roomdrop/internal/infrastructure/repository"
	"github.com/hilthontt/roomdrop/internal/infrastructure/storage"
	"github.com/hilthontt/roomdrop/internal/infrastructure/ws"
	filesHandler "github.com/hilthontt/roomdrop/internal/presentation/handler/files"
	healthHandler "github.com/hilthontt/roomdrop/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/roomdrop/internal/presentation/handler/rooms"
)

type stubLimiter struct{ allow bool }

func (s stubLimiter) Allow(string) (bool, time.Duration) {
	return s.allow, 3 * time.Second
}

func newTestApp(t *testing.T, limiter ratelimiter.Limiter, logger logging.Logger) http.Handler {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	m := metrics.New()
	hub := ws.NewHub(nil, nil)
	registry := repository.NewMemoryRoomRegistry()
	uc := transfer.NewTransferUseCase(registry, store, nil, transfer.Options{
		Notifier: hub,
		Metrics:  m,
	})

	cfg := configs.Config{
		HTTP: configs.HTTPConfig{
			AllowedOrigins: []string{"https://drop.example"},
			AllowedHeaders: []string{"Content-Type"},
			RequestTimeout: 5 * time.Second,
		},
	}

	app := NewApplication(
		cfg,
		roomHandler.NewHandler(uc, hub, nil, 0),
		healthHandler.NewHandler("test"),
		filesHandler.NewHandler(store.BasePath(), domain.DefaultRoomPrefix, registry, nil),
		logger,
		m,
		limiter,
	)
	return app.Mount()
}

func TestHealthRoutes(t *testing.T) {
	h := newTestApp(t, nil, nil)

	for _, path := range []string{"/api/health", "/api/healthz", "/api/ready", "/api/live", "/healthz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}
}

func TestMetricsRouteReportsRequests(t *testing.T) {
	h := newTestApp(t, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create room status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "roomdrop_http_request_duration_seconds") {
		t.Error("request duration histogram missing from /metrics")
	}
}

func TestUploadServedFromLocalStore(t *testing.T) {
	h := newTestApp(t, nil, nil)

	body := "--b\r\nContent-Disposition: form-data; name=\"files\"; filename=\"a.txt\"\r\nContent-Type: text/plain\r\n\r\nhello\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body = %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.Code, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	var listed struct {
		Files []struct {
			URL string `json:"url"`
		} `json:"files"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Files) != 1 {
		t.Fatalf("listed %d files, want 1", len(listed.Files))
	}

	// follow the stored link back through /files/
	link := strings.TrimPrefix(listed.Files[0].URL, "http://localhost:8080")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("GET %s = %d %q", link, rec.Code, rec.Body.String())
	}
}

func TestRequestLogUsesRequestSubCategory(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(&logging.LoggerConfig{FilePath: dir, Level: "info"})
	h := newTestApp(t, nil, logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
	_ = logger.Sync()

	raw, err := os.ReadFile(filepath.Join(dir, "roomdrop.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if entry["msg"] != "request completed" {
			continue
		}
		found = true
		if entry["SubCategory"] != string(logging.HTTPRequest) {
			t.Errorf("SubCategory = %v, want %s", entry["SubCategory"], logging.HTTPRequest)
		}
		if entry["Path"] != "/api/rooms" {
			t.Errorf("Path = %v", entry["Path"])
		}
	}
	if !found {
		t.Fatalf("no request log line in:\n%s", raw)
	}
}

func TestCorsPreflight(t *testing.T) {
	h := newTestApp(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "https://drop.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://drop.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q for a foreign origin", got)
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	h := newTestApp(t, stubLimiter{allow: false}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download?code=ABC234", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Errorf("Retry-After = %q", got)
	}

	// health checks are never limited
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d under rate limiting", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app := NewApplication(configs.Config{HTTP: configs.HTTPConfig{Host: "127.0.0.1", Port: 0}},
		nil, healthHandler.NewHandler("test"), nil, nil, metrics.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, http.NotFoundHandler()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
