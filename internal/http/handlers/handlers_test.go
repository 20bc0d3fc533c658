package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/phambaophuc/smartmine-client/internal/models"
	"github.com/phambaophuc/smartmine-client/internal/services/storage"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

type stubProcessor struct {
	t        *testing.T
	err      error
	service  smartmine.ServiceName
	restore  bool
	released bool
}

func (s *stubProcessor) ProcessUpload(ctx context.Context, service smartmine.ServiceName, filename string, r io.Reader, restore bool) (string, func(), error) {
	s.service, s.restore = service, restore
	if s.err != nil {
		return "", func() {}, s.err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		s.t.Fatalf("failed to read upload: %v", err)
	}
	output := filepath.Join(s.t.TempDir(), "smartmine-0001-"+filename)
	if err := os.WriteFile(output, data, 0o644); err != nil {
		s.t.Fatalf("failed to write output: %v", err)
	}
	return output, func() { s.released = true }, nil
}

type stubMirror struct {
	url  string
	err  error
	name string
}

func (s *stubMirror) MirrorFileAs(ctx context.Context, path, name string) (string, error) {
	s.name = name
	return s.url, s.err
}

type stubQueue struct {
	published []*models.ProcessingJob
	err       error
}

func (s *stubQueue) PublishJob(ctx context.Context, job *models.ProcessingJob) error {
	if s.err != nil {
		return s.err
	}
	job.ID = "job-1"
	job.Status = models.StatusPending
	s.published = append(s.published, job)
	return nil
}

type stubJobs struct {
	jobs map[string]*models.ProcessingJob
	err  error
}

func (s *stubJobs) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrJobNotFound, id)
	}
	return job, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 6, 4))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, fields map[string]string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if payload != nil {
		part, err := writer.CreateFormFile(imageParamKey, "photo.png")
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("failed to write payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func newImageRouter(t *testing.T, handler *ImageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/process", handler.ProcessImage)
	return router
}

func postImage(router *gin.Engine, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeResponse(t *testing.T, resp *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()

	var out models.APIResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", resp.Body.String(), err)
	}
	return out
}

func TestProcessImage_ReturnsFileWithoutStorage(t *testing.T) {
	proc := &stubProcessor{t: t}
	router := newImageRouter(t, NewImageHandler(proc, nil, zaptest.NewLogger(t), 1<<20))
	payload := testPNG(t)

	body, contentType := buildMultipartBody(t, map[string]string{"service": "image-denoising"}, payload)
	resp := postImage(router, body, contentType)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !bytes.Equal(resp.Body.Bytes(), payload) {
		t.Error("expected processed bytes in the body")
	}
	if proc.service != smartmine.ServiceImageDenoising || !proc.restore {
		t.Errorf("unexpected processor call service=%s restore=%v", proc.service, proc.restore)
	}
	if !proc.released {
		t.Error("expected output to be released")
	}
}

func TestProcessImage_MirrorsToStorage(t *testing.T) {
	proc := &stubProcessor{t: t}
	mirror := &stubMirror{url: "https://cdn.example/processed/photo.png"}
	router := newImageRouter(t, NewImageHandler(proc, mirror, zaptest.NewLogger(t), 1<<20))

	body, contentType := buildMultipartBody(t, map[string]string{"service": "image-deblurring", "restore": "false"}, testPNG(t))
	resp := postImage(router, body, contentType)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decodeResponse(t, resp)
	data, _ := out.Data.(map[string]interface{})
	if data["url"] != mirror.url || data["width"] != float64(6) || data["height"] != float64(4) {
		t.Errorf("unexpected data %v", out.Data)
	}
	if proc.restore {
		t.Error("expected restore disabled")
	}
	if mirror.name != "photo.png" || data["filename"] != "photo.png" {
		t.Errorf("expected result mirrored as photo.png, got %q (%v)", mirror.name, data["filename"])
	}
}

func TestProcessImage_Validation(t *testing.T) {
	cases := []struct {
		name    string
		fields  map[string]string
		payload []byte
		maxSize int64
		status  int
	}{
		{"missing file", map[string]string{"service": "image-denoising"}, nil, 1 << 20, http.StatusBadRequest},
		{"unknown service", map[string]string{"service": "image-colorize"}, []byte("x"), 1 << 20, http.StatusBadRequest},
		{"bad restore flag", map[string]string{"service": "image-denoising", "restore": "sometimes"}, []byte("x"), 1 << 20, http.StatusBadRequest},
		{"not an image", map[string]string{"service": "image-denoising"}, []byte("hello"), 1 << 20, http.StatusBadRequest},
		{"too large", map[string]string{"service": "image-denoising"}, bytes.Repeat([]byte("a"), 64), 16, http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &stubProcessor{t: t}
			router := newImageRouter(t, NewImageHandler(proc, nil, zaptest.NewLogger(t), tc.maxSize))

			body, contentType := buildMultipartBody(t, tc.fields, tc.payload)
			resp := postImage(router, body, contentType)

			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if proc.service != "" {
				t.Error("processor must not run for invalid requests")
			}
		})
	}
}

func TestProcessImage_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{smartmine.ErrServerUnreachable, http.StatusServiceUnavailable},
		{fmt.Errorf("poll: %w", smartmine.ErrTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("process: %w", smartmine.ErrProcessingFailed), http.StatusUnprocessableEntity},
		{fmt.Errorf("upload: %w", smartmine.ErrUpload), http.StatusBadGateway},
		{smartmine.ErrLogin, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			proc := &stubProcessor{t: t, err: tc.err}
			router := newImageRouter(t, NewImageHandler(proc, nil, zaptest.NewLogger(t), 1<<20))

			body, contentType := buildMultipartBody(t, map[string]string{"service": "image-denoising"}, testPNG(t))
			resp := postImage(router, body, contentType)

			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.Code)
			}
			if out := decodeResponse(t, resp); out.Success || out.Error == "" {
				t.Errorf("expected error response, got %+v", out)
			}
		})
	}
}

func newJobRouter(t *testing.T, handler *JobHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/jobs", handler.EnqueueJob)
	router.GET("/jobs/:id", handler.GetJob)
	return router
}

var testRoots = JobRoots{SourceDir: "/srv/in", DestDir: "/srv/out"}

func TestEnqueueJob(t *testing.T) {
	queue := &stubQueue{}
	router := newJobRouter(t, NewJobHandler(queue, &stubJobs{}, testRoots, zaptest.NewLogger(t)))

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"service":"Image-Restoration","source_path":"a.png","destination_path":"/srv/out/sub/a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(queue.published) != 1 {
		t.Fatalf("unexpected published jobs %+v", queue.published)
	}
	job := queue.published[0]
	if job.Service != "image-restoration" {
		t.Errorf("expected canonical service, got %q", job.Service)
	}
	if job.SourcePath != "/srv/in/a.png" || job.DestinationPath != "/srv/out/sub/a.png" {
		t.Errorf("unexpected resolved paths %q -> %q", job.SourcePath, job.DestinationPath)
	}
}

func TestEnqueueJob_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		queue  JobQueue
		roots  JobRoots
		body   string
		status int
	}{
		{"missing source", &stubQueue{}, testRoots, `{"service":"image-denoising","destination_path":"a.png"}`, http.StatusBadRequest},
		{"missing destination", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"a.png"}`, http.StatusBadRequest},
		{"blank destination", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"a.png","destination_path":"  "}`, http.StatusBadRequest},
		{"unknown service", &stubQueue{}, testRoots, `{"service":"image-colorize","source_path":"a.png","destination_path":"a.png"}`, http.StatusBadRequest},
		{"absolute source outside root", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"/var/lib/app/secret.png","destination_path":"a.png"}`, http.StatusBadRequest},
		{"dotdot destination", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"a.png","destination_path":"/etc/cron.d/../../root/.bashrc"}`, http.StatusBadRequest},
		{"relative escape", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"../../etc/passwd","destination_path":"a.png"}`, http.StatusBadRequest},
		{"sibling prefix", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"/srv/input/a.png","destination_path":"a.png"}`, http.StatusBadRequest},
		{"root itself", &stubQueue{}, testRoots, `{"service":"image-denoising","source_path":"a.png","destination_path":"sub/.."}`, http.StatusBadRequest},
		{"roots unset", &stubQueue{}, JobRoots{}, `{"service":"image-denoising","source_path":"a.png","destination_path":"a.png"}`, http.StatusServiceUnavailable},
		{"queue down", &stubQueue{err: errors.New("channel closed")}, testRoots, `{"service":"image-denoising","source_path":"a.png","destination_path":"a.png"}`, http.StatusServiceUnavailable},
		{"no queue", nil, testRoots, `{"service":"image-denoising","source_path":"a.png","destination_path":"a.png"}`, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue, _ := tc.queue.(*stubQueue)
			router := newJobRouter(t, NewJobHandler(tc.queue, &stubJobs{}, tc.roots, zaptest.NewLogger(t)))

			req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if queue != nil && tc.status == http.StatusBadRequest && len(queue.published) != 0 {
				t.Errorf("rejected job was published: %+v", queue.published)
			}
		})
	}
}

func TestResolveUnder(t *testing.T) {
	cases := []struct {
		path    string
		want    string
		wantErr error
	}{
		{"photo.png", "/srv/out/photo.png", nil},
		{"./a/../b/photo.png", "/srv/out/b/photo.png", nil},
		{"/srv/out/photo.png", "/srv/out/photo.png", nil},
		{"", "", ErrPathRequired},
		{"../photo.png", "", ErrPathOutsideRoot},
		{"/srv/out/../in/photo.png", "", ErrPathOutsideRoot},
		{"/srv/outside/photo.png", "", ErrPathOutsideRoot},
		{".", "", ErrPathOutsideRoot},
	}

	for _, tc := range cases {
		got, err := resolveUnder("/srv/out", tc.path)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("resolveUnder(%q): expected error %v, got %v", tc.path, tc.wantErr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("resolveUnder(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestGetJob(t *testing.T) {
	jobs := &stubJobs{jobs: map[string]*models.ProcessingJob{
		"job-1": {ID: "job-1", Status: models.StatusCompleted},
	}}
	router := newJobRouter(t, NewJobHandler(nil, jobs, testRoots, zaptest.NewLogger(t)))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	data, _ := decodeResponse(t, resp).Data.(map[string]interface{})
	if data["status"] != models.StatusCompleted {
		t.Errorf("unexpected job %v", data)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := func(ctx context.Context) string { return "healthy" }
	disabled := func(ctx context.Context) string { return "not configured" }
	down := func(ctx context.Context) string { return "unhealthy: refused" }

	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/health", NewHealthHandler(map[string]HealthCheckFunc{"smartmine": healthy, "supabase": disabled}).HealthCheck)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	router = gin.New()
	router.GET("/health", NewHealthHandler(map[string]HealthCheckFunc{"smartmine": healthy, "redis": down}).HealthCheck)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}

func TestHealthCheck_QueueStats(t *testing.T) {
	healthy := func(ctx context.Context) string { return "healthy" }
	gin.SetMode(gin.TestMode)

	handler := NewHealthHandler(map[string]HealthCheckFunc{"queue": healthy}).
		WithQueueStats(func() (models.QueueStats, error) {
			return models.QueueStats{Name: "smartmine_jobs", Messages: 4, Consumers: 1}, nil
		})
	router := gin.New()
	router.GET("/health", handler.HealthCheck)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	data, _ := decodeResponse(t, resp).Data.(map[string]interface{})
	queue, _ := data["queue"].(map[string]interface{})
	if queue["name"] != "smartmine_jobs" || queue["messages"] != float64(4) || queue["consumers"] != float64(1) {
		t.Errorf("unexpected queue stats %v", data["queue"])
	}

	handler = NewHealthHandler(map[string]HealthCheckFunc{"queue": healthy}).
		WithQueueStats(func() (models.QueueStats, error) { return models.QueueStats{}, errors.New("channel closed") })
	router = gin.New()
	router.GET("/health", handler.HealthCheck)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	data, _ = decodeResponse(t, resp).Data.(map[string]interface{})
	if _, ok := data["queue"]; ok {
		t.Errorf("queue stats should be omitted when unavailable, got %v", data["queue"])
	}
}
