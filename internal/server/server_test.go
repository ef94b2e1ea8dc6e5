package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/canlat/internal/auth"
	"github.com/danmuck/canlat/internal/exchange"
	"github.com/danmuck/canlat/internal/latency"
	"github.com/danmuck/canlat/internal/testutil/testlog"
	"github.com/danmuck/canlat/internal/transform"
	"github.com/gin-gonic/gin"
)

type fakeNode struct {
	state   exchange.State
	reports []exchange.PhaseReport
}

func (f fakeNode) State() exchange.State           { return f.state }
func (f fakeNode) Reports() []exchange.PhaseReport { return f.reports }

type stateOnly struct{}

func (stateOnly) State() exchange.State { return exchange.StateAwaitingRequest }

func newTestAdmin(t *testing.T, node StateSource) *Admin {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, err := transform.NewDefaultRegistry(transform.DefaultKeys(), 8)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	a := Appear("initiator", ":0", nil, node, reg)
	a.RegisterRoutes()
	return a
}

func get(t *testing.T, a *Admin, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	a.HTTPRouter().ServeHTTP(rr, req)
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rr, body
}

func sampleNode() fakeNode {
	return fakeNode{
		state: exchange.StateComplete,
		reports: []exchange.PhaseReport{{
			Phase:     "md5",
			Transform: "md5",
			Mode:      exchange.ModeMAC,
			Summary: latency.Summary{
				Phase:      "md5",
				Samples:    []time.Duration{2 * time.Millisecond},
				MeanMicros: 2000,
			},
		}},
	}
}

func TestHealthReportsState(t *testing.T) {
	testlog.Start(t)

	rr, body := get(t, newTestAdmin(t, sampleNode()), "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["status"] != "ok" || body["state"] != string(exchange.StateComplete) {
		t.Fatalf("unexpected health body: %#v", body)
	}
}

func TestPhasesListsCompletedReports(t *testing.T) {
	testlog.Start(t)

	rr, body := get(t, newTestAdmin(t, sampleNode()), "/phases")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	phases, ok := body["phases"].([]any)
	if !ok || len(phases) != 1 {
		t.Fatalf("unexpected phases: %#v", body["phases"])
	}
	row := phases[0].(map[string]any)
	if row["phase"] != "md5" || row["mean"] != float64(2000) {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestPhaseByName(t *testing.T) {
	testlog.Start(t)

	a := newTestAdmin(t, sampleNode())
	if rr, _ := get(t, a, "/phases/md5"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr, _ := get(t, a, "/phases/sha1"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPhasesEmptyForResponder(t *testing.T) {
	testlog.Start(t)

	_, body := get(t, newTestAdmin(t, stateOnly{}), "/phases")
	if phases, _ := body["phases"].([]any); len(phases) != 0 {
		t.Fatalf("expected no phases, got %#v", body["phases"])
	}
}

func TestTransformsAndMetrics(t *testing.T) {
	testlog.Start(t)

	a := newTestAdmin(t, sampleNode())
	_, body := get(t, a, "/transforms")
	list, _ := body["transforms"].([]any)
	if len(list) != 9 {
		t.Fatalf("expected 9 transforms, got %d", len(list))
	}
	rr, _ := get(t, a, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "canlat_") {
		t.Fatalf("expected canlat metrics, got %d", rr.Code)
	}
}

func TestTokenGuardsPhases(t *testing.T) {
	testlog.Start(t)

	gin.SetMode(gin.TestMode)
	a := Appear("initiator", ":0", nil, sampleNode(), nil)
	a.Auth = auth.StaticToken{Token: "lab"}
	a.RegisterRoutes()

	if rr, _ := get(t, a, "/phases"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr, _ := get(t, a, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("expected open health, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/phases", nil)
	req.Header.Set("Authorization", "Bearer lab")
	rr := httptest.NewRecorder()
	a.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}
