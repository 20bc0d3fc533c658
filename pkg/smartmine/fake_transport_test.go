package smartmine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"testing"
	"time"
)

type uploadCall struct {
	RequestToken string
	Filename     string
	Data         []byte
}

// fakeTransport records every call and echoes uploaded bytes back as the
// processing result unless transform is set.
type fakeTransport struct {
	calls []string

	healthErr   error
	loginErr    error
	bearer      string
	dimsErr     error
	targets     map[ServiceName]*Dimensions
	tokenErr    error
	uploadErr   error
	startErr    error
	progressErr error
	downloadErr error

	// statuses is consumed per progress call; the last entry repeats.
	statuses      []ProcessingStatus
	progressCalls int

	transform map[ServiceName]func([]byte) []byte

	tokenSeq      int
	tokenServices map[string]ServiceName
	uploads       []uploadCall
	dimChecks     []ServiceName
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		bearer:        "bearer-1",
		targets:       map[ServiceName]*Dimensions{},
		statuses:      []ProcessingStatus{StatusComplete},
		transform:     map[ServiceName]func([]byte) []byte{},
		tokenServices: map[string]ServiceName{},
	}
}

func (f *fakeTransport) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeTransport) HealthCheck(ctx context.Context) error {
	f.record("health")
	return f.healthErr
}

func (f *fakeTransport) Login(ctx context.Context, creds Credentials) (string, error) {
	f.record("login")
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.bearer, nil
}

func (f *fakeTransport) CheckDimensions(ctx context.Context, bearer string, service ServiceName, size Dimensions) (*Dimensions, error) {
	f.record("check_dimensions")
	f.dimChecks = append(f.dimChecks, service)
	if f.dimsErr != nil {
		return nil, f.dimsErr
	}
	return f.targets[service], nil
}

func (f *fakeTransport) RequestToken(ctx context.Context, bearer string, service ServiceName) (string, error) {
	f.record("request_token")
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	f.tokenSeq++
	token := fmt.Sprintf("req-%d", f.tokenSeq)
	f.tokenServices[token] = service
	return token, nil
}

func (f *fakeTransport) Upload(ctx context.Context, bearer, requestToken, filename string, r io.Reader) error {
	f.record("upload")
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.uploads = append(f.uploads, uploadCall{RequestToken: requestToken, Filename: filename, Data: data})
	return nil
}

func (f *fakeTransport) StartProcessing(ctx context.Context, bearer, requestToken string) error {
	f.record("start_processing")
	return f.startErr
}

func (f *fakeTransport) Progress(ctx context.Context, bearer, requestToken string) (ProcessingStatus, error) {
	f.record("progress")
	if f.progressErr != nil {
		return "", f.progressErr
	}
	i := f.progressCalls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.progressCalls++
	return f.statuses[i], nil
}

func (f *fakeTransport) Download(ctx context.Context, bearer, requestToken string) ([]byte, error) {
	f.record("download")
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	for _, u := range f.uploads {
		if u.RequestToken == requestToken {
			if fn := f.transform[f.tokenServices[requestToken]]; fn != nil {
				return fn(u.Data), nil
			}
			return u.Data, nil
		}
	}
	return nil, fmt.Errorf("no upload for %s", requestToken)
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 3), uint8(y * 5), 90, 255})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func readDimensions(t *testing.T, path string) Dimensions {
	t.Helper()

	size, err := NewImagingResizer().Dimensions(path)
	if err != nil {
		t.Fatalf("Failed to read dimensions of %s: %v", path, err)
	}
	return size
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("Leftover temporary file: %s", e.Name())
	}
}
