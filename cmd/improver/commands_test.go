package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/daneb/improver-mcp/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAnalyzeRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /analyze": `{"id":"p-123","quality_score":7.5,"clarity":8.0,"complexity":"moderate","technique":"Zero-Shot","rationale":"direct instruction","issues":[],"duration_ms":3}`,
	})

	client := ts.client()

	req := map[string]any{
		"content": "Write a function that parses RFC 3339 timestamps",
		"context": "code review",
	}

	resp, err := client.post(ctx, "/analyze", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		ID           string  `json:"id"`
		QualityScore float64 `json:"quality_score"`
		Technique    string  `json:"technique"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.ID != "p-123" {
		t.Errorf("id = %q, want p-123", result.ID)
	}
	if result.QualityScore != 7.5 {
		t.Errorf("quality_score = %f, want 7.5", result.QualityScore)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "POST" {
		t.Errorf("method = %q, want POST", r.Method)
	}
	if r.Path != "/analyze" {
		t.Errorf("path = %q, want /analyze", r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["context"] != "code review" {
		t.Errorf("body.context = %v, want code review", body["context"])
	}
}

func TestAnalyzeCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyze"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing content source")
	}
	if !strings.Contains(err.Error(), "--file") {
		t.Errorf("error = %q, want it to mention the content flags", err.Error())
	}
}

func TestAnalyzeCommand_ConflictingSources(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analyze", "--text", "a prompt", "--file", "prompt.txt"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for multiple content sources")
	}
	if !strings.Contains(err.Error(), "exactly one") {
		t.Errorf("error = %q, want it to mention 'exactly one'", err.Error())
	}
}

func TestRecentRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /prompts": `[{"id":"p-001","content":"fix the login bug","created_at":"2025-06-01T10:00:00Z","quality_score":4.5}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/prompts?limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var prompts []struct {
		ID           string   `json:"id"`
		Content      string   `json:"content"`
		QualityScore *float64 `json:"quality_score"`
	}
	if err := decodeJSON(resp, &prompts); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(prompts))
	}
	if prompts[0].Content != "fix the login bug" {
		t.Errorf("content = %q, want 'fix the login bug'", prompts[0].Content)
	}
	if prompts[0].QualityScore == nil || *prompts[0].QualityScore != 4.5 {
		t.Errorf("quality_score = %v, want 4.5", prompts[0].QualityScore)
	}
}

func TestInsightsGenerateRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /insights/generate": `[{"id":"ins-1","created_at":"2025-06-01T10:00:00Z","type":"complexity_skew","severity":"suggestion","title":"Most prompts are simple","description":"Consider richer prompts"}]`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/insights/generate", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var list []insightView
	if err := decodeJSON(resp, &list); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(list) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(list))
	}
	if list[0].Type != "complexity_skew" {
		t.Errorf("type = %q, want complexity_skew", list[0].Type)
	}
}

func TestInsightsAckRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /insights/ins-1/acknowledge": `{"status":"acknowledged"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/insights/ins-1/acknowledge", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "acknowledged" {
		t.Errorf("status = %q, want acknowledged", result["status"])
	}
}

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	_, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/stats")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4400
	cfg.Insights.Window = 500

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4400" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4400 in ShowAll output")
	}
}

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{"high", colorRed},
		{"warning", colorRed},
		{"medium", colorYellow},
		{"suggestion", colorYellow},
		{"info", colorCyan},
		{"low", colorCyan},
	}
	for _, tt := range tests {
		if got := severityColor(tt.severity); got != tt.want {
			t.Errorf("severityColor(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 80, "short"},
		{"", 80, ""},
		{"abcdef", 4, "abcd..."},
		{"abcd", 4, "abcd"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"WARN", "WARN"},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(t.TempDir())

	if _, err := readPIDFile(path); err == nil {
		t.Fatal("expected error reading missing PID file")
	}

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writing PID file: %v", err)
	}

	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("reading PID file: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d, want positive", pid)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Fatal("expected error after removal")
	}
}

func TestInsightViewDecoding(t *testing.T) {
	raw := `{"id":"ins-9","created_at":"2025-06-01T10:00:00Z","type":"context_usage","severity":"suggestion","title":"Prompts rarely include context","description":"Only 10% of recent prompts carried context"}`

	var view insightView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if view.Severity != "suggestion" {
		t.Errorf("severity = %q, want suggestion", view.Severity)
	}
	if view.Title == "" {
		t.Error("title should not be empty")
	}
}
