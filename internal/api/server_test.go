package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/hardware"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/upload"
)

type fakeProber struct{}

func (fakeProber) VideoInfo(_ context.Context, path string) (*media.VideoInfo, error) {
	if strings.HasSuffix(path, ".txt") {
		return nil, &media.ProbeError{Code: media.ErrCodeNoVideoStream, Path: path, Message: "no video stream"}
	}
	return &media.VideoInfo{DurationMs: 125000, FPS: 30, FrameRate: "30/1", Width: 1920, Height: 1080, VideoCodec: "h264"}, nil
}

func (fakeProber) Keyframes(context.Context, string, bool) media.KeyframeIndex {
	return media.KeyframeIndex{0, 2, 4}
}

type fakeCutter struct {
	mu    sync.Mutex
	trims int
}

func (f *fakeCutter) Trim(_ context.Context, _ string, start, end float64, _ ...cutter.EncodeOption) (cutter.Plan, error) {
	f.mu.Lock()
	f.trims++
	f.mu.Unlock()
	return cutter.Plan{
		Strategy: cutter.StrategyStreamCopy,
		Segments: []cutter.Segment{{Kind: cutter.SegmentCopy, Start: start, Duration: end - start}},
	}, nil
}

func (f *fakeCutter) Split(context.Context, string, float64, string, string, ...cutter.EncodeOption) (cutter.SplitPlan, error) {
	return cutter.SplitPlan{}, &cutter.Error{Code: cutter.ErrCodeInvalidRange, Message: "split point too close to the start"}
}

type fakeHardware struct{}

func (fakeHardware) Detect(context.Context) (*hardware.Profile, error) {
	return &hardware.Profile{Available: true, Vendor: hardware.VendorNVIDIA, Encoder: "h264_nvenc"}, nil
}

func (fakeHardware) Refresh(ctx context.Context) (*hardware.Profile, error) {
	return fakeHardware{}.Detect(ctx)
}

type fakePreview struct {
	mu        sync.Mutex
	submitted [][]string
	retryErr  error
	running   bool
	resets    int
}

func (f *fakePreview) Submit(sources []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sources)
	return fmt.Sprintf("job-%d", len(f.submitted))
}

func (f *fakePreview) Retry() (string, error) {
	if f.retryErr != nil {
		return "", f.retryErr
	}
	return "job-retry", nil
}

func (f *fakePreview) Cancel() bool {
	return f.running
}

func (f *fakePreview) Reset() error {
	if f.running {
		return preview.ErrBusy
	}
	f.resets++
	return nil
}

func (f *fakePreview) Status() preview.Status {
	return preview.Status{Running: f.running, Preview: &preview.Snapshot{State: preview.StatePartial, Mode: preview.ModeCopy}}
}

type fakeCache struct{}

func (fakeCache) Entries() []cache.Entry {
	return []cache.Entry{{Identity: cache.Identity{Name: "A.mp4", Size: 4}, CopyPath: "/work/001_A.mp4"}}
}

type fakeHistory struct {
	mu      sync.Mutex
	records map[cache.Identity]history.Record
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[cache.Identity]history.Record)}
}

func (f *fakeHistory) MarkProcessed(_ context.Context, id cache.Identity, status history.Status, source, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = history.Record{Name: id.Name, Size: id.Size, Status: status, Source: source, Message: message}
	return nil
}

func (f *fakeHistory) Status(_ context.Context, id cache.Identity) (history.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeHistory) List(context.Context, int) ([]history.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]history.Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeHistory) Forget(_ context.Context, id cache.Identity) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[id]
	delete(f.records, id)
	return ok, nil
}

type fakeUploader struct {
	ok  bool
	msg string
}

func (f fakeUploader) Upload(context.Context, string, upload.Server) (bool, string) {
	return f.ok, f.msg
}

type testEnv struct {
	ts      *httptest.Server
	preview *fakePreview
	history *fakeHistory
	cutter  *fakeCutter
	bus     *events.Bus
}

func newTestEnv(t *testing.T, uploader upload.Uploader) *testEnv {
	t.Helper()
	env := &testEnv{
		preview: &fakePreview{},
		history: newFakeHistory(),
		cutter:  &fakeCutter{},
		bus:     events.New(),
	}
	if uploader == nil {
		uploader = fakeUploader{ok: true, msg: "Uploaded 1 files to /mnt/club"}
	}
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		EventBus:     env.bus,
		Services: Services{
			Prober:       fakeProber{},
			Cutter:       env.cutter,
			Hardware:     fakeHardware{},
			Preview:      env.preview,
			Cache:        fakeCache{},
			History:      env.history,
			Uploader:     uploader,
			UploadServer: func() upload.Server { return upload.Server{URL: "/mnt/club"} },
		},
	})
	env.ts = httptest.NewServer(server.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth("test", "test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func writeClip(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHealthWithoutAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Bearer abc", http.StatusUnauthorized},
		{"wrong password", "Basic " + base64.StdEncoding.EncodeToString([]byte("test:nope")), http.StatusUnauthorized},
		{"valid", "Basic " + base64.StdEncoding.EncodeToString([]byte("test:test")), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/preview", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/api/preview", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS origin header")
	}
}

func TestProbe(t *testing.T) {
	env := newTestEnv(t, nil)
	dir := t.TempDir()
	clip := writeClip(t, dir, "GX010001.MP4")
	notes := writeClip(t, dir, "notes.txt")

	resp := env.do(t, http.MethodGet, "/api/media/probe?path="+clip, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("probe status = %d", resp.StatusCode)
	}
	body := decode[struct {
		Duration string `json:"duration"`
		Label    string `json:"label"`
	}](t, resp)
	if body.Duration != "2:05" {
		t.Errorf("duration = %q, want 2:05", body.Duration)
	}
	if body.Label != "1920x1080 @ 30fps" {
		t.Errorf("label = %q", body.Label)
	}

	if resp := env.do(t, http.MethodGet, "/api/media/probe?path="+filepath.Join(dir, "missing.mp4"), nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/media/probe?path="+notes, nil); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("no video stream status = %d, want 422", resp.StatusCode)
	}
}

func TestKeyframes(t *testing.T) {
	env := newTestEnv(t, nil)
	clip := writeClip(t, t.TempDir(), "GX010001.MP4")

	resp := env.do(t, http.MethodGet, "/api/media/keyframes?path="+clip, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[struct {
		Count     int       `json:"count"`
		Keyframes []float64 `json:"keyframes"`
	}](t, resp)
	if body.Count != 3 || len(body.Keyframes) != 3 {
		t.Errorf("unexpected keyframes: %+v", body)
	}
}

func TestTrimAndSplit(t *testing.T) {
	env := newTestEnv(t, nil)
	clip := writeClip(t, t.TempDir(), "GX010001.MP4")

	resp := env.do(t, http.MethodPost, "/api/cut/trim", map[string]any{"path": clip, "start": 2, "end": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trim status = %d", resp.StatusCode)
	}
	body := decode[struct {
		Duration float64     `json:"duration"`
		Plan     cutter.Plan `json:"plan"`
	}](t, resp)
	if body.Duration != 8 || body.Plan.Strategy != cutter.StrategyStreamCopy {
		t.Errorf("unexpected trim result: %+v", body)
	}

	if resp := env.do(t, http.MethodPost, "/api/cut/trim", map[string]any{"path": clip, "start": 10, "end": 2}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", resp.StatusCode)
	}
	if env.cutter.trims != 1 {
		t.Errorf("cutter called %d times, want 1", env.cutter.trims)
	}

	if resp := env.do(t, http.MethodPost, "/api/cut/split", map[string]any{"path": clip, "at": 0.1}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid split status = %d, want 400", resp.StatusCode)
	}
}

func TestPreviewRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	dir := t.TempDir()
	a := writeClip(t, dir, "A.mp4")
	b := writeClip(t, dir, "B.mp4")

	resp := env.do(t, http.MethodPost, "/api/preview", map[string]any{"sources": []string{a, b}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	if job := decode[struct {
		JobID string `json:"job_id"`
	}](t, resp); job.JobID != "job-1" {
		t.Errorf("job id = %q", job.JobID)
	}
	if len(env.preview.submitted) != 1 || len(env.preview.submitted[0]) != 2 {
		t.Errorf("submitted = %v", env.preview.submitted)
	}

	missing := env.do(t, http.MethodPost, "/api/preview", map[string]any{"sources": []string{a, filepath.Join(dir, "gone.mp4")}})
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing source status = %d, want 404", missing.StatusCode)
	}

	status := decode[preview.Status](t, env.do(t, http.MethodGet, "/api/preview", nil))
	if status.Preview == nil || status.Preview.State != preview.StatePartial {
		t.Errorf("status = %+v", status)
	}

	cancel := decode[struct {
		Cancelled bool `json:"cancelled"`
	}](t, env.do(t, http.MethodPost, "/api/preview/cancel", nil))
	if cancel.Cancelled {
		t.Error("cancel on idle session should report false")
	}
}

func TestPreviewRetryErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusAccepted},
		{preview.ErrNothingToRetry, http.StatusNotFound},
		{preview.ErrBusy, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		env := newTestEnv(t, nil)
		env.preview.retryErr = tt.err
		if resp := env.do(t, http.MethodPost, "/api/preview/retry", nil); resp.StatusCode != tt.want {
			t.Errorf("retry with %v: status = %d, want %d", tt.err, resp.StatusCode, tt.want)
		}
	}
}

func TestPreviewReset(t *testing.T) {
	env := newTestEnv(t, nil)
	if resp := env.do(t, http.MethodDelete, "/api/preview", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("reset status = %d, want 204", resp.StatusCode)
	}
	if env.preview.resets != 1 {
		t.Errorf("resets = %d, want 1", env.preview.resets)
	}

	env.preview.running = true
	if resp := env.do(t, http.MethodDelete, "/api/preview", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("reset while running = %d, want 409", resp.StatusCode)
	}
}

func TestCacheEntries(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decode[struct {
		Count   int           `json:"count"`
		Entries []cache.Entry `json:"entries"`
	}](t, env.do(t, http.MethodGet, "/api/cache", nil))
	if body.Count != 1 || body.Entries[0].CopyPath != "/work/001_A.mp4" {
		t.Errorf("unexpected cache listing: %+v", body)
	}
}

func TestHistoryRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	clip := writeClip(t, t.TempDir(), "GX010001.MP4")

	resp := env.do(t, http.MethodPost, "/api/history", map[string]any{"path": clip, "status": "processed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark status = %d", resp.StatusCode)
	}
	rec := decode[history.Record](t, resp)
	if rec.Name != "GX010001.MP4" || rec.Size != 4 || rec.Status != history.StatusProcessed {
		t.Errorf("record = %+v", rec)
	}

	if resp := env.do(t, http.MethodGet, "/api/history/GX010001.MP4/4", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/history/GX010001.MP4/5", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("other size status = %d, want 404", resp.StatusCode)
	}

	list := decode[struct {
		Count int `json:"count"`
	}](t, env.do(t, http.MethodGet, "/api/history", nil))
	if list.Count != 1 {
		t.Errorf("list count = %d", list.Count)
	}

	if resp := env.do(t, http.MethodDelete, "/api/history/GX010001.MP4/4", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("forget status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/api/history/GX010001.MP4/4", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second forget status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadRecordsHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	dir := t.TempDir()
	writeClip(t, dir, "jump1.mp4")
	writeClip(t, dir, ".DS_Store")

	resp := env.do(t, http.MethodPost, "/api/upload", map[string]any{"dir": dir})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	if _, ok := env.history.records[cache.Identity{Name: "jump1.mp4", Size: 4}]; !ok {
		t.Error("uploaded clip not recorded")
	}
	if len(env.history.records) != 1 {
		t.Errorf("recorded %d clips, want 1", len(env.history.records))
	}
}

func TestUploadFailure(t *testing.T) {
	env := newTestEnv(t, fakeUploader{ok: false, msg: "Upload server not reachable"})

	resp := env.do(t, http.MethodPost, "/api/upload", map[string]any{"dir": t.TempDir()})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if len(env.history.records) != 0 {
		t.Error("failed upload must not be recorded")
	}
}

func TestHardwareRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/hardware"},
		{http.MethodPost, "/api/hardware/refresh"},
	} {
		resp := env.do(t, tc.method, tc.path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s %s status = %d", tc.method, tc.path, resp.StatusCode)
		}
		body := decode[struct {
			Summary string `json:"summary"`
		}](t, resp)
		if body.Summary != "nvidia: h264_nvenc" {
			t.Errorf("summary = %q", body.Summary)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	env := newTestEnv(t, nil)

	if resp := env.do(t, http.MethodPut, "/api/logs/cutter/level", map[string]any{"level": "debug"}); resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPut, "/api/logs/cutter/level", map[string]any{"level": "loud"}); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid level status = %d, want 422", resp.StatusCode)
	}
}

func TestSSEInitialStateAndEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", env.ts.URL, credentials))
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	messageChan := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				messageChan <- line
			}
		}
	}()

	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, `"PARTIAL"`) {
			t.Errorf("Expected current preview state, got: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for initial SSE message")
	}

	env.bus.Publish(events.PreviewCombinedEvent{Path: "/work/preview_combined.mp4"})

	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, "preview_combined.mp4") {
			t.Errorf("Expected combined event, got: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for combined event")
	}
}
