package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-translator/internal/config"
	"github.com/lexiqai/speech-translator/internal/observability"
	"github.com/lexiqai/speech-translator/internal/orchestrator"
)

type fakeRunner struct {
	mu          sync.Mutex
	requests    []orchestrator.Request
	hadDeadline bool

	run func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	_, f.hadDeadline = ctx.Deadline()
	f.mu.Unlock()

	if f.run != nil {
		return f.run(ctx, req)
	}
	return &orchestrator.Result{
		RecognizedText: "hello",
		TranslatedText: "नमस्ते (" + req.OutputLang + ")",
		AudioBase64:    "SUQz",
	}, nil
}

func (f *fakeRunner) calls() []orchestrator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orchestrator.Request(nil), f.requests...)
}

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowedOrigins:     []string{"*"},
		MaxUploadBytes:         1 << 20,
		PipelineTimeout:        5,
		MaxConcurrentPipelines: 4,
		PipelineBacklog:        4,
		PipelineBacklogTimeout: 1,
		DefaultInputLang:       "en",
		DefaultOutputLang:      "hi",
		DefaultUploadFormat:    "webm",
		MetricsEnabled:         true,
	}
}

func newTestRouter(cfg *config.Config, runner Runner, checks map[string]observability.HealthCheckFunc) http.Handler {
	return NewRouter(cfg, runner, checks, zerolog.New(io.Discard))
}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		fw.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/translate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "203.0.113.7:5555"
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	return body
}

func TestRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), &fakeRunner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != rootMessage {
		t.Errorf("Unexpected root message %q", body["message"])
	}
}

func TestLanguages(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), &fakeRunner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/languages", nil))

	var body struct {
		Languages []Language `json:"languages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if len(body.Languages) != 15 {
		t.Fatalf("Expected 15 languages, got %d", len(body.Languages))
	}
	if body.Languages[0] != (Language{Code: "en", Name: "English"}) {
		t.Errorf("Unexpected first language %+v", body.Languages[0])
	}
	if body.Languages[3] != (Language{Code: "pa", Name: "Punjabi"}) {
		t.Errorf("Unexpected fourth language %+v", body.Languages[3])
	}
}

func TestTranslate_Success(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(testConfig(), runner, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "clip.ogg", []byte("opaque clip bytes"), map[string]string{
		"input_lang":  "hi",
		"output_lang": "fr",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result orchestrator.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if result.RecognizedText != "hello" || result.AudioBase64 == "" {
		t.Errorf("Unexpected result %+v", result)
	}

	calls := runner.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 pipeline run, got %d", len(calls))
	}
	req := calls[0]
	if req.InputLang != "hi" || req.OutputLang != "fr" {
		t.Errorf("Expected hi->fr, got %s->%s", req.InputLang, req.OutputLang)
	}
	if req.Format != "ogg" {
		t.Errorf("Expected format from file extension, got %q", req.Format)
	}
	if string(req.Audio) != "opaque clip bytes" {
		t.Errorf("Unexpected audio bytes %q", req.Audio)
	}
	if req.RequestID == "" {
		t.Error("Expected a request id")
	}
	if !runner.hadDeadline {
		t.Error("Expected the pipeline context to carry a deadline")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("Expected X-Request-Id response header")
	}
}

func TestTranslate_DefaultsLanguagesAndFormat(t *testing.T) {
	runner := &fakeRunner{}
	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), runner, nil).ServeHTTP(rec, uploadRequest(t, "blob", []byte("opaque"), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	req := runner.calls()[0]
	if req.InputLang != "en" || req.OutputLang != "hi" {
		t.Errorf("Expected default en->hi, got %s->%s", req.InputLang, req.OutputLang)
	}
	if req.Format != "webm" {
		t.Errorf("Expected default webm format, got %q", req.Format)
	}
}

func TestTranslate_FormatFromExtension(t *testing.T) {
	for _, ext := range []string{"m4a", "opus", "oga"} {
		runner := &fakeRunner{}
		rec := httptest.NewRecorder()
		newTestRouter(testConfig(), runner, nil).ServeHTTP(rec, uploadRequest(t, "clip."+ext, []byte("opaque"), nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200 for .%s, got %d", ext, rec.Code)
		}
		if got := runner.calls()[0].Format; got != ext {
			t.Errorf("Expected format %q from file name, got %q", ext, got)
		}
	}
}

func TestTranslate_UnrecognizedSpeech(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
		return nil, &orchestrator.Error{
			Stage: orchestrator.StageRecognize,
			Kind:  orchestrator.KindUnrecognizedSpeech,
			Err:   orchestrator.ErrNoSpeech,
		}
	}}

	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), runner, nil).ServeHTTP(rec, uploadRequest(t, "clip.webm", []byte("x"), nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Speech not recognized" {
		t.Errorf("Unexpected error body %v", body)
	}
}

func TestTranslate_PipelineFailure(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
		return nil, &orchestrator.Error{
			Stage: orchestrator.StageTranslate,
			Kind:  orchestrator.KindTranslationService,
			Err:   errors.New("quota exceeded"),
		}
	}}

	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), runner, nil).ServeHTTP(rec, uploadRequest(t, "clip.webm", []byte("x"), nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); !strings.Contains(body["error"], "quota exceeded") {
		t.Errorf("Expected provider message in error, got %v", body)
	}
}

func TestTranslate_MissingFile(t *testing.T) {
	runner := &fakeRunner{}
	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), runner, nil).ServeHTTP(rec, uploadRequest(t, "", nil, map[string]string{"input_lang": "en"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if len(runner.calls()) != 0 {
		t.Error("Expected pipeline not to run without a file")
	}
}

func TestTranslate_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(`{"file":"nope"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), &fakeRunner{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestTranslate_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 256
	runner := &fakeRunner{}

	rec := httptest.NewRecorder()
	newTestRouter(cfg, runner, nil).ServeHTTP(rec, uploadRequest(t, "clip.webm", bytes.Repeat([]byte{1}, 4096), nil))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d", rec.Code)
	}
	if len(runner.calls()) != 0 {
		t.Error("Expected pipeline not to run for an oversized upload")
	}
}

func TestTranslate_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	router := newTestRouter(cfg, &fakeRunner{}, nil)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, uploadRequest(t, "clip.webm", []byte("x"), nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, uploadRequest(t, "clip.webm", []byte("x"), nil))

	if first.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", second.Code)
	}
}

func TestTranslate_BacklogFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPipelines = 1
	cfg.PipelineBacklog = 0

	entered := make(chan struct{})
	release := make(chan struct{})
	runner := &fakeRunner{run: func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
		close(entered)
		<-release
		return &orchestrator.Result{RecognizedText: "a", TranslatedText: "b", AudioBase64: "Yw=="}, nil
	}}
	router := newTestRouter(cfg, runner, nil)

	firstReq := uploadRequest(t, "clip.webm", []byte("x"), nil)
	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, firstReq)
		done <- rec.Code
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("First pipeline never started")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "clip.webm", []byte("x"), nil))
	close(release)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 while at capacity, got %d", rec.Code)
	}
	if code := <-done; code != http.StatusOK {
		t.Errorf("Expected first request to succeed, got %d", code)
	}
}

// blockingRunner holds every run until release is closed
func blockingRunner() (*fakeRunner, chan struct{}, chan struct{}) {
	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	runner := &fakeRunner{run: func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
		entered <- struct{}{}
		<-release
		return &orchestrator.Result{RecognizedText: "a", TranslatedText: "b", AudioBase64: "Yw=="}, nil
	}}
	return runner, entered, release
}

func TestTranslate_BacklogServedWhenSlotFrees(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPipelines = 1
	cfg.PipelineBacklog = 1
	cfg.PipelineBacklogTimeout = 3

	runner, entered, release := blockingRunner()
	router := newTestRouter(cfg, runner, nil)

	firstReq := uploadRequest(t, "clip.webm", []byte("x"), nil)
	secondReq := uploadRequest(t, "clip.webm", []byte("x"), nil)
	codes := make(chan int, 2)
	serve := func(req *http.Request) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes <- rec.Code
	}

	go serve(firstReq)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("First pipeline never started")
	}

	go serve(secondReq)
	time.Sleep(100 * time.Millisecond)
	if n := len(runner.calls()); n != 1 {
		t.Fatalf("Expected queued request to wait for a slot, got %d runs", n)
	}

	close(release)
	for i := 0; i < 2; i++ {
		select {
		case code := <-codes:
			if code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", code)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Request did not finish")
		}
	}
	if n := len(runner.calls()); n != 2 {
		t.Errorf("Expected 2 pipeline runs, got %d", n)
	}
}

func TestTranslate_BacklogWaitIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPipelines = 1
	cfg.PipelineBacklog = 1
	cfg.PipelineBacklogTimeout = 1
	cfg.PipelineTimeout = 30

	runner, entered, release := blockingRunner()
	defer close(release)
	router := newTestRouter(cfg, runner, nil)

	firstReq := uploadRequest(t, "clip.webm", []byte("x"), nil)
	go router.ServeHTTP(httptest.NewRecorder(), firstReq)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("First pipeline never started")
	}

	started := time.Now()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "clip.webm", []byte("x"), nil))
	waited := time.Since(started)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 after backlog wait, got %d", rec.Code)
	}
	if waited >= cfg.PipelineDeadline() || waited > 5*time.Second {
		t.Errorf("Expected backlog wait near %v, waited %v", cfg.BacklogWait(), waited)
	}
	if n := len(runner.calls()); n != 1 {
		t.Errorf("Expected queued request never to run, got %d runs", n)
	}
}

func TestReady(t *testing.T) {
	checks := map[string]observability.HealthCheckFunc{
		"ffmpeg": func(ctx context.Context) (bool, error) { return false, errors.New("ffmpeg not found") },
	}

	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), &fakeRunner{}, checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), &fakeRunner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected metrics to be served, got %d", rec.Code)
	}

	cfg := testConfig()
	cfg.MetricsEnabled = false
	rec = httptest.NewRecorder()
	newTestRouter(cfg, &fakeRunner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with metrics disabled, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	rec := httptest.NewRecorder()
	newTestRouter(testConfig(), &fakeRunner{}, nil).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected permissive CORS, got %q", got)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/translate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	return conn
}

func sendClip(t *testing.T, conn *websocket.Conn, header ClipHeader, clip []byte) map[string]interface{} {
	t.Helper()
	if err := conn.WriteJSON(header); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, clip); err != nil {
		t.Fatalf("Failed to write clip: %v", err)
	}

	var resp map[string]interface{}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp
}

func TestTranslateWS_SequentialClips(t *testing.T) {
	runner := &fakeRunner{}
	srv := httptest.NewServer(newTestRouter(testConfig(), runner, nil))
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	first := sendClip(t, conn, ClipHeader{InputLang: "en", OutputLang: "hi", Format: "audio/ogg"}, []byte("clip"))
	second := sendClip(t, conn, ClipHeader{InputLang: "en", OutputLang: "ta"}, []byte("clip"))

	if first["recognized_text"] != "hello" || first["audio_base64"] == "" {
		t.Errorf("Unexpected first response %v", first)
	}
	if _, ok := first["status"]; ok {
		t.Errorf("Expected no status on success, got %v", first)
	}
	if !strings.Contains(second["translated_text"].(string), "(ta)") {
		t.Errorf("Expected second clip translated to ta, got %v", second)
	}

	calls := runner.calls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 pipeline runs, got %d", len(calls))
	}
	if calls[0].Format != "ogg" || calls[1].Format != "webm" {
		t.Errorf("Unexpected formats %q, %q", calls[0].Format, calls[1].Format)
	}
	if calls[0].RequestID == calls[1].RequestID {
		t.Error("Expected a distinct request id per clip")
	}
}

func TestTranslateWS_Errors(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
		return nil, &orchestrator.Error{
			Stage: orchestrator.StageRecognize,
			Kind:  orchestrator.KindUnrecognizedSpeech,
			Err:   orchestrator.ErrNoSpeech,
		}
	}}
	srv := httptest.NewServer(newTestRouter(testConfig(), runner, nil))
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	var bad map[string]interface{}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if bad["status"] != float64(http.StatusBadRequest) {
		t.Errorf("Expected status 400 for invalid header, got %v", bad)
	}

	resp := sendClip(t, conn, ClipHeader{}, []byte("silence"))
	if resp["error"] != "Speech not recognized" || resp["status"] != float64(http.StatusBadRequest) {
		t.Errorf("Unexpected error response %v", resp)
	}

	calls := runner.calls()
	if len(calls) != 1 || calls[0].InputLang != "en" || calls[0].OutputLang != "hi" {
		t.Errorf("Expected one run with default languages, got %+v", calls)
	}
}
