package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cryptoadvisor/pkg/advisor"
)

// geminiStub is a fake generation endpoint. Each request consumes the next
// reply in order; the last reply repeats once the list is exhausted.
type geminiStub struct {
	server  *httptest.Server
	mu      sync.Mutex
	replies []string
	calls   int
}

func newGeminiStub(t *testing.T, replies ...string) *geminiStub {
	t.Helper()

	stub := &geminiStub{replies: replies}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		idx := stub.calls
		if idx >= len(stub.replies) {
			idx = len(stub.replies) - 1
		}
		reply := stub.replies[idx]
		stub.calls++
		stub.mu.Unlock()

		payload := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": reply}}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *geminiStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// setupTestRouter creates a test router with a temporary database and the
// generation client pointed at the stub server.
func setupTestRouter(t *testing.T, opts advisor.Options) (http.Handler, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	opts.DBPath = filepath.Join(tmpDir, "test.db")
	core, err := advisor.OpenWithOptions(opts)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(core, logger)

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}

	return router, cleanup
}

// doRequest performs a request and returns the response.
func doRequest(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// parseJSON parses the response body into a map.
func parseJSON(rr *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&result)
	return result
}

func TestHealthEndpoint(t *testing.T) {
	router, cleanup := setupTestRouter(t, advisor.Options{})
	defer cleanup()

	rr := doRequest(router, "GET", "/api/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	result := parseJSON(rr)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", result["status"])
	}
}

func TestAdviseEndpointPlan(t *testing.T) {
	stub := newGeminiStub(t, `{"research":"Bitcoin is liquid enough for this order.","is_plan":true,"plans":[{"action":"buy","crypto":"BTC","amount":0.5,"reason":"Requested purchase"}]}`)
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key", BaseURL: stub.server.URL},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/gemini", map[string]interface{}{
		"prompt": "buy 0.5 BTC",
		"portfolio": []map[string]interface{}{
			{"ticker": "CASH", "quantity": 50000, "totalValue": 50000},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	result := parseJSON(rr)
	if result["is_plan"] != true {
		t.Fatalf("expected is_plan true, got %v", result["is_plan"])
	}
	plans, ok := result["plans"].([]interface{})
	if !ok || len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %v", result["plans"])
	}
	plan := plans[0].(map[string]interface{})
	if plan["crypto"] != "BTC" || plan["action"] != "buy" {
		t.Fatalf("unexpected plan: %v", plan)
	}
	if plan["amount"].(float64) != 0.5 {
		t.Fatalf("expected numeric amount 0.5, got %v", plan["amount"])
	}
	if stub.callCount() != 1 {
		t.Fatalf("expected 1 generation call, got %d", stub.callCount())
	}
}

func TestAdviseEndpointNoPlan(t *testing.T) {
	stub := newGeminiStub(t, `{"research":"Bitcoin is a decentralized digital currency.","is_plan":false,"plans":[]}`)
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key", BaseURL: stub.server.URL},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/gemini", map[string]interface{}{"prompt": "what is bitcoin?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	result := parseJSON(rr)
	if result["is_plan"] != false {
		t.Fatalf("expected is_plan false, got %v", result["is_plan"])
	}
	plans, ok := result["plans"].([]interface{})
	if !ok || len(plans) != 0 {
		t.Fatalf("expected empty plans array, got %v", result["plans"])
	}
}

func TestAdviseEndpointMissingPrompt(t *testing.T) {
	stub := newGeminiStub(t, `{"research":"unused","is_plan":false,"plans":[]}`)
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key", BaseURL: stub.server.URL},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/gemini", map[string]interface{}{"prompt": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	result := parseJSON(rr)
	if result["error"] == nil {
		t.Fatal("expected error message")
	}
	if stub.callCount() != 0 {
		t.Fatalf("expected no generation calls, got %d", stub.callCount())
	}
}

func TestAdviseEndpointRejectsUnknownFields(t *testing.T) {
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key"},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/gemini", map[string]interface{}{
		"prompt":  "hello",
		"unknown": true,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdviseEndpointMissingCredential(t *testing.T) {
	router, cleanup := setupTestRouter(t, advisor.Options{})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/gemini", map[string]interface{}{"prompt": "buy BTC"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	result := parseJSON(rr)
	if result["error"] == nil {
		t.Fatal("expected error message")
	}
}

func TestAdviseEndpointDegraded(t *testing.T) {
	stub := newGeminiStub(t,
		"I would rather answer in prose.",
		"Bitcoin is a peer-to-peer digital currency secured by proof of work.",
	)
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key", BaseURL: stub.server.URL},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/gemini", map[string]interface{}{"prompt": "what is bitcoin?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	result := parseJSON(rr)
	research, _ := result["research"].(string)
	if !strings.HasPrefix(research, "[fallback] ") {
		t.Fatalf("expected degraded marker, got %q", research)
	}
	if result["is_plan"] != false {
		t.Fatalf("expected is_plan false, got %v", result["is_plan"])
	}
	if stub.callCount() != 2 {
		t.Fatalf("expected 2 generation calls, got %d", stub.callCount())
	}

	// The degraded exchange must show up in the audit log.
	rr = doRequest(router, "GET", "/api/advice-log", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from advice log, got %d", rr.Code)
	}
	var logs []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&logs); err != nil {
		t.Fatalf("decode advice log: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(logs))
	}
	if logs[0]["status"] != "degraded" {
		t.Fatalf("expected degraded status, got %v", logs[0]["status"])
	}
	if logs[0]["failure_kind"] != "malformed_syntax" {
		t.Fatalf("expected malformed_syntax, got %v", logs[0]["failure_kind"])
	}
}

func TestCoinAnalysisEndpoint(t *testing.T) {
	stub := newGeminiStub(t, `{
		"summary": "Bitcoin is the largest cryptocurrency.",
		"market_context": {"current_trend": "bullish", "volatility": "high", "market_sentiment": "optimistic"},
		"pros": ["Liquidity"],
		"cons": ["Volatility"],
		"recommendation": {"decision": "buy", "confidence": 72, "risk_level": "medium"}
	}`)
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key", BaseURL: stub.server.URL},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/coin-analysis", map[string]interface{}{
		"crypto": "btc",
		"action": "buy",
		"amount": 0.5,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	result := parseJSON(rr)
	recommendation, ok := result["recommendation"].(map[string]interface{})
	if !ok || recommendation["decision"] != "buy" {
		t.Fatalf("unexpected recommendation: %v", result["recommendation"])
	}
	request, ok := result["request"].(map[string]interface{})
	if !ok || request["crypto"] != "BTC" {
		t.Fatalf("unexpected request echo: %v", result["request"])
	}
}

func TestCoinAnalysisEndpointMissingCrypto(t *testing.T) {
	router, cleanup := setupTestRouter(t, advisor.Options{
		Gemini: advisor.GeminiConfig{APIKey: "test-key"},
	})
	defer cleanup()

	rr := doRequest(router, "POST", "/api/coin-analysis", map[string]interface{}{"action": "buy"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdviceLogEndpointEmpty(t *testing.T) {
	router, cleanup := setupTestRouter(t, advisor.Options{})
	defer cleanup()

	rr := doRequest(router, "GET", "/api/advice-log?limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var logs []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&logs); err != nil {
		t.Fatalf("expected JSON array, got %s", rr.Body.String())
	}
	if len(logs) != 0 {
		t.Fatalf("expected empty array, got %d rows", len(logs))
	}
}
