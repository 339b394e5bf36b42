package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/cloudbot/internal/config"
	"github.com/kalambet/cloudbot/internal/poll"
	"github.com/kalambet/cloudbot/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
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
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
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

func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stderr
	stderr = &buf
	t.Cleanup(func() { stderr = old })
	return &buf
}

var ctx = context.Background()

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestAPIClient_NoTokenNoHeader(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})
	client := ts.client()
	client.token = ""

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want none", ts.requests[0].Auth)
	}
}

func TestAPIClient_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "bad-token", httpClient: ts.Client()}
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

func TestReportStatus_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
		"GET /stats": `{"loop":{"state":"sleeping","cycles":4,"processed":9,"failed":1,"empty":2,"fetch_failures":3},
			"processed_ids":57,"publications":{"hot":9,"user":2}}`,
	})
	out := captureStderr(t)
	noColor = true
	t.Cleanup(func() { noColor = false })

	reportStatus(ctx, ts.client())

	for _, want := range []string{
		"Server: running",
		"Loop: sleeping after 4 cycles",
		"Replied: 9 (failed 1, empty 2)",
		"Fetch failures: 3",
		"Processed ids: 57",
		"Publications: 9 hot, 2 user",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestReportStatus_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()
	out := captureStderr(t)
	noColor = true
	t.Cleanup(func() { noColor = false })

	reportStatus(ctx, ts.client())

	if !strings.Contains(out.String(), "Server: stopped") {
		t.Errorf("output = %q", out.String())
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

func TestUserHistRequiresTwoArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)
	captureStderr(t)

	rootCmd.SetArgs([]string{"user-hist", "spez"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error when the reply url is missing")
	}
}

func TestHotRejectsArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"hot", "pics"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for a positional argument")
	}
}

func TestConfigUnset_Validates(t *testing.T) {
	defer rootCmd.SetArgs(nil)
	captureStderr(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	for _, args := range [][]string{
		{"config", "unset"},
		{"config", "unset", "no.such.key"},
		{"config", "unset", "reddit.password"},
	} {
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "data"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if !processAlive(pid) {
		t.Errorf("own pid %d reported dead", pid)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("PID file still readable after removal")
	}
}

func TestLoopOptions(t *testing.T) {
	cfg := config.Config{Poll: config.PollConfig{
		Scope: "pics", BatchSize: 10, ReplyPause: 30 * time.Second, ClaimPolicy: "publish-first",
	}}
	opts, err := loopOptions(cfg)
	if err != nil {
		t.Fatalf("loopOptions: %v", err)
	}
	if opts.Scope != "pics" || opts.BatchSize != 10 || opts.ReplyPause != 30*time.Second || opts.ClaimPolicy != poll.PublishFirst {
		t.Errorf("opts = %+v", opts)
	}

	cfg.Poll.ReplyPause = 0
	if opts, _ := loopOptions(cfg); opts.ReplyPause >= 0 {
		t.Errorf("zero pause mapped to %v, want no pause", opts.ReplyPause)
	}

	cfg.Poll.ClaimPolicy = "whenever"
	if _, err := loopOptions(cfg); err == nil {
		t.Error("accepted an unknown claim policy")
	}
}

func TestFormatPublication(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	p := storage.Publication{
		ID:           "0123456789abcdef",
		ItemID:       "spez",
		Mode:         storage.ModeUser,
		ImageURL:     "https://i.imgur.com/x.png",
		CommentCount: 42,
		SkippedCount: 2,
		CreatedAt:    time.Now(),
	}
	line := formatPublication(p)
	for _, want := range []string{"01234567 ", "u/spez", "42 comments", "https://i.imgur.com/x.png", "(2 skipped)"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "89abcdef") {
		t.Errorf("line %q has the full id", line)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
}
