package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/provisiq/internal/adapter/fsm"
	handler "github.com/neomorfeo/provisiq/internal/adapter/http"
	"github.com/neomorfeo/provisiq/internal/adapter/sqlite"
	"github.com/neomorfeo/provisiq/internal/app"
	"github.com/neomorfeo/provisiq/internal/domain"
)

func TestEnvOrDefault_Fallback(t *testing.T) {
	v := envOrDefault("PROVISIQ_TEST_NONEXISTENT_KEY", "fallback")
	if v != "fallback" {
		t.Errorf("got %q, want %q", v, "fallback")
	}
}

func TestEnvOrDefault_EnvSet(t *testing.T) {
	t.Setenv("PROVISIQ_TEST_KEY", "custom")

	v := envOrDefault("PROVISIQ_TEST_KEY", "fallback")
	if v != "custom" {
		t.Errorf("got %q, want %q", v, "custom")
	}
}

func TestConfigFromEnv_InvalidTimeout(t *testing.T) {
	t.Setenv("PROVISION_TIMEOUT", "not-a-duration")

	if _, err := configFromEnv(); err == nil {
		t.Fatal("expected error for invalid PROVISION_TIMEOUT")
	}
}

// Local fakes for the smoke test. It verifies HTTP wiring, not the bridges.

type smokeBridge struct{}

func (b *smokeBridge) Provision(_ context.Context, email, _, _ string) (domain.ProvisionResult, error) {
	return domain.ProvisionResult{Subdomain: email, Output: "ok"}, nil
}

func (b *smokeBridge) Deprovision(_ context.Context, subdomain string) (string, error) {
	return "ok", nil
}

type smokeVerifier struct{}

func (v *smokeVerifier) Verify(_ []byte, _ string) (domain.BillingEvent, error) {
	return domain.BillingEvent{Type: domain.BillingUnknown}, nil
}

type smokeProber struct{}

func (p *smokeProber) Probe(_ context.Context, _ string) domain.Health {
	return domain.Health{Ready: false, Status: "not_found"}
}

type smokeCheckout struct{}

func (c *smokeCheckout) Start(_ context.Context) (string, error) {
	return "https://checkout.example.com/c/cs_test", nil
}

type smokePublisher struct{}

func (p *smokePublisher) Publish(_ context.Context, _ domain.LifecycleEvent) error {
	return nil
}

// TestSmoke wires the full stack like run() and verifies it responds.
func TestSmoke(t *testing.T) {
	dbPath := t.TempDir() + "/test.db"

	repo, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := app.NewProvisioningService(
		repo, &smokeBridge{}, &smokeVerifier{},
		&smokeProber{}, fsm.New(), &smokePublisher{},
	)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("provisiq", "0.1.0"))
	handler.Register(api, svc, &smokeCheckout{}, "smoke-key")

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/status/nobody", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/status/nobody failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Ready  bool   `json:"ready"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Ready || body.Status != "not_found" {
		t.Errorf("body = %+v, want not ready / not_found", body)
	}
}

// TestRun exercises the real run() function end-to-end: OTel, River, HTTP
// server, and graceful shutdown. It uses the stdout OTel exporter and a temp
// database to avoid external dependencies.
func TestRun(t *testing.T) {
	t.Setenv("DATABASE_PATH", t.TempDir()+"/test-run.db")
	t.Setenv("PORT", "19876")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")

	// Discard OTel stdout exporter output during the test.
	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening /dev/null: %v", err)
	}
	os.Stdout = devNull
	t.Cleanup(func() {
		os.Stdout = origStdout
		devNull.Close()
	})

	errCh := make(chan error, 1)
	go func() { errCh <- run() }()

	// Wait for the HTTP server to become ready.
	serverURL := "http://localhost:19876"
	ready := false
	for i := 0; i < 50; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/api/status/probe", nil)
		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ready {
		t.Fatal("server did not start within 5 seconds")
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/api/status/probe", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/status/probe failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Send SIGINT to trigger graceful shutdown.
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("finding process: %v", err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("sending SIGINT: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not exit within 10 seconds")
	}
}

// TestRun_InvalidDB verifies run() returns an error for an invalid database path.
func TestRun_InvalidDB(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/nonexistent/path/db.sqlite")
	t.Setenv("PORT", "19877")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")

	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening /dev/null: %v", err)
	}
	os.Stdout = devNull
	t.Cleanup(func() {
		os.Stdout = origStdout
		devNull.Close()
	})

	if err := run(); err == nil {
		t.Fatal("expected error for invalid database path, got nil")
	}
}
