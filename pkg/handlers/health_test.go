package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/config"
	"github.com/plumbline/blueprint-engine/pkg/services"
)

func TestHealthHandler_Health(t *testing.T) {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	handler := NewHealthHandler(cfg, &mockAnalysisService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", rec.Body.String())
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "test"}
	handler := NewHealthHandler(cfg, &mockAnalysisService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	handler.Ping(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", response.Status)
	}
	if response.Version != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %q", response.Version)
	}
	if response.Service != "blueprint-engine" {
		t.Errorf("expected service 'blueprint-engine', got %q", response.Service)
	}
}

func TestHealthHandler_Status(t *testing.T) {
	svc := &mockAnalysisService{
		HealthFunc: func() services.HealthStatus {
			return services.HealthStatus{
				Initialized: true,
				Metrics: services.Metrics{
					AnalysisCount: 10,
					SuccessCount:  9,
					ErrorCount:    1,
					SuccessRate:   "90.00%",
				},
			}
		},
	}
	handler := NewHealthHandler(&config.Config{}, svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response services.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Initialized {
		t.Error("expected initialized true")
	}
	if response.SuccessRate != "90.00%" {
		t.Errorf("expected success rate '90.00%%', got %q", response.SuccessRate)
	}
}
