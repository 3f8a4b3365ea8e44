package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/config"
	"github.com/haskel/raimetrics/internal/publish"
	"github.com/haskel/raimetrics/internal/recorder"
)

func TestServer_Integration(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0

	prom := publish.NewPrometheusExporter("rai")
	rec := recorder.New(testSystem(t), recorder.WithPublisher(prom), recorder.WithLogger(testLogger()))
	if _, err := rec.Initialize(context.Background(), aisystem.InitOptions{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	srv := New(cfg, rec, testLogger(), "0.1.0", WithMetricsHandler(prom.Handler()))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	t.Run("GET /", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}

		var info InfoResponse
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if info.Name != "rai" {
			t.Errorf("expected name 'rai', got %s", info.Name)
		}
		if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
			t.Error("expected security headers")
		}
	})

	t.Run("POST /v1/compute then GET /metrics", func(t *testing.T) {
		body := `{"split":"test","predictions":[1,0,1,1]}`
		resp, err := http.Post(ts.URL+"/v1/compute", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.StatusCode)
		}

		resp, err = http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		data, _ := io.ReadAll(resp.Body)
		want := `rai_metric_value{group="binary_performance",metric="accuracy",system="credit"} 0.75`
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in scrape output", want)
		}
	})

	t.Run("GET /unknown", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/unknown")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
	})

	t.Run("GET /v1/compute", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/compute")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", resp.StatusCode)
		}
	})
}

func TestServer_NoMetricsHandler(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestServer_AuthAndReload(t *testing.T) {
	cfg := config.Default()
	cfg.Auth = config.AuthConfig{Enabled: true, User: "admin", Password: "secret"}
	srv := New(cfg, testRecorder(t, true), testLogger(), "test")

	get := func(path, user, pass string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	if code := get("/health", "", ""); code != http.StatusOK {
		t.Errorf("health should bypass auth, got %d", code)
	}
	if code := get("/v1/model", "", ""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", code)
	}
	if code := get("/v1/model", "admin", "secret"); code != http.StatusOK {
		t.Errorf("expected 200 with credentials, got %d", code)
	}

	reloaded := config.Default()
	reloaded.Auth = config.AuthConfig{Enabled: true, User: "admin", Password: "rotated"}
	srv.ReloadConfig(reloaded)

	if code := get("/v1/model", "admin", "secret"); code != http.StatusUnauthorized {
		t.Errorf("old password should be rejected after reload, got %d", code)
	}
	if code := get("/v1/model", "admin", "rotated"); code != http.StatusOK {
		t.Errorf("new password should be accepted after reload, got %d", code)
	}
}

func TestServer_Profiling(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		header  string
		status  int
	}{
		{"disabled", false, "Bearer secret-token", http.StatusNotFound},
		{"valid token", true, "Bearer secret-token", http.StatusOK},
		{"wrong token", true, "Bearer nope", http.StatusForbidden},
		{"no token", true, "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.Profiling = config.ProfilingConfig{Enabled: tt.enabled, Token: "secret-token"}
			srv := New(cfg, testRecorder(t, true), testLogger(), "test")

			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestServer_MaxBody(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxBodyBytes = 64
	srv := New(cfg, testRecorder(t, true), testLogger(), "test")

	body := `{"split":"test","predictions":[` + strings.Repeat("1,", 100) + `1]}`
	w := do(t, srv, http.MethodPost, "/v1/compute", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2}
	srv := New(cfg, testRecorder(t, true), testLogger(), "test")

	var last int
	for range 3 {
		last = do(t, srv, http.MethodGet, "/health", nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected status 429 after burst, got %d", last)
	}
}
