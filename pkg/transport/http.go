// Package transport implements smartmine.Transport over the Smartmine v2
// REST API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

const (
	DefaultBaseURL = "https://api.smartmine.net/v2"
	// DefaultDimensionsURL hosts the dimension check, which the v2 API
	// does not serve.
	DefaultDimensionsURL = "https://api.smartmine.net/api/v1"
	DefaultTimeout = 60 * time.Second

	resizeRequiredMessage = "Image requires resize"
	maxErrorBody          = 512
)

type HTTPTransport struct {
	baseURL       string
	dimensionsURL string
	client        *http.Client
	logger        *zap.Logger
}

var _ smartmine.Transport = (*HTTPTransport)(nil)

type Option func(*HTTPTransport)

func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithTimeout sets the request timeout on a copy of the current client,
// so a shared client passed to WithHTTPClient is left untouched.
func WithTimeout(timeout time.Duration) Option {
	return func(t *HTTPTransport) {
		if timeout > 0 {
			client := *t.client
			client.Timeout = timeout
			t.client = &client
		}
	}
}

// WithDimensionsURL sets the API root used for dimension checks
// (DefaultDimensionsURL when empty).
func WithDimensionsURL(dimensionsURL string) Option {
	return func(t *HTTPTransport) {
		if dimensionsURL != "" {
			t.dimensionsURL = strings.TrimRight(dimensionsURL, "/")
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New returns a transport for the API rooted at baseURL
// (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *HTTPTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	t := &HTTPTransport{
		baseURL:       strings.TrimRight(baseURL, "/"),
		dimensionsURL: DefaultDimensionsURL,
		client:        &http.Client{Timeout: DefaultTimeout},
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("transport")
	return t
}

type envelope[T any] struct {
	Content T `json:"content"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type serviceOptionSelection struct {
	ServiceName string `json:"service_name"`
	OptionName  string `json:"option_name"`
	OptionValue string `json:"option_value"`
}

type usageSelection struct {
	ServiceOptionsSelection []serviceOptionSelection `json:"service_options_selection"`
	UnitsUsed               int                      `json:"units_used"`
}

type dimensionsRequest struct {
	Dimensions     smartmine.Dimensions `json:"dimensions"`
	UsageSelection *usageSelection      `json:"usage_selection,omitempty"`
}

type dimensionsResponse struct {
	Message string `json:"message"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type requestTokenContent struct {
	RequestToken string `json:"request_token"`
}

type progressContent struct {
	Status string `json:"status"`
}

func (t *HTTPTransport) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", smartmine.ErrServerUnreachable, err)
	}

	status, body, err := t.do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", smartmine.ErrServerUnreachable, err)
	}
	if status != http.StatusOK {
		return statusError(smartmine.ErrServerUnreachable, status, body)
	}
	return nil
}

func (t *HTTPTransport) Login(ctx context.Context, creds smartmine.Credentials) (string, error) {
	req, err := t.newJSONRequest(ctx, "/login", nil, loginRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return "", fmt.Errorf("%w: %w", smartmine.ErrLogin, err)
	}

	var resp envelope[string]
	if err := t.doJSON(req, smartmine.ErrLogin, &resp); err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("%w: response has no bearer token", smartmine.ErrLogin)
	}
	return resp.Content, nil
}

func (t *HTTPTransport) CheckDimensions(ctx context.Context, bearer string, service smartmine.ServiceName, size smartmine.Dimensions) (*smartmine.Dimensions, error) {
	payload := dimensionsRequest{Dimensions: size}
	if opt, ok := service.DefaultOption(); ok {
		payload.UsageSelection = &usageSelection{
			ServiceOptionsSelection: []serviceOptionSelection{{
				ServiceName: service.String(),
				OptionName:  opt.Name,
				OptionValue: opt.Value,
			}},
			UnitsUsed: 1,
		}
	}

	endpoint := t.dimensionsURL + "/service/" + url.PathEscape(service.String()) + "/check-image-dimensions"
	req, err := newJSONRequestURL(ctx, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", smartmine.ErrDimensionCheck, err)
	}
	setAuth(req, bearer, "")

	var resp dimensionsResponse
	if err := t.doJSON(req, smartmine.ErrDimensionCheck, &resp); err != nil {
		return nil, err
	}
	if resp.Message != resizeRequiredMessage {
		return nil, nil
	}
	return &smartmine.Dimensions{Width: resp.Width, Height: resp.Height}, nil
}

func (t *HTTPTransport) RequestToken(ctx context.Context, bearer string, service smartmine.ServiceName) (string, error) {
	query := url.Values{}
	query.Set("service", service.String())
	query.Set("quantity", "1")

	req, err := t.newJSONRequest(ctx, "/service/request-token", query, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", smartmine.ErrRequestToken, err)
	}
	setAuth(req, bearer, "")

	var resp envelope[requestTokenContent]
	if err := t.doJSON(req, smartmine.ErrRequestToken, &resp); err != nil {
		return "", err
	}
	if resp.Content.RequestToken == "" {
		return "", fmt.Errorf("%w: response has no request token", smartmine.ErrRequestToken)
	}
	return resp.Content.RequestToken, nil
}

func (t *HTTPTransport) Upload(ctx context.Context, bearer, requestToken, filename string, r io.Reader) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("%w: %w", smartmine.ErrUpload, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("%w: failed to read file: %w", smartmine.ErrUpload, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: %w", smartmine.ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/service/upload", body)
	if err != nil {
		return fmt.Errorf("%w: %w", smartmine.ErrUpload, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("input-name", "input__0")
	setAuth(req, bearer, requestToken)

	return t.expectOK(req, smartmine.ErrUpload)
}

func (t *HTTPTransport) StartProcessing(ctx context.Context, bearer, requestToken string) error {
	req, err := t.newJSONRequest(ctx, "/service/process", nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", smartmine.ErrStartProcessing, err)
	}
	setAuth(req, bearer, requestToken)

	return t.expectOK(req, smartmine.ErrStartProcessing)
}

func (t *HTTPTransport) Progress(ctx context.Context, bearer, requestToken string) (smartmine.ProcessingStatus, error) {
	req, err := t.newJSONRequest(ctx, "/service/progress", nil, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", smartmine.ErrProgress, err)
	}
	setAuth(req, bearer, requestToken)

	var resp envelope[progressContent]
	if err := t.doJSON(req, smartmine.ErrProgress, &resp); err != nil {
		return "", err
	}
	return smartmine.ProcessingStatus(resp.Content.Status), nil
}

func (t *HTTPTransport) Download(ctx context.Context, bearer, requestToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/service/download", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", smartmine.ErrDownload, err)
	}
	req.Header.Set("output-name", "output__0")
	setAuth(req, bearer, requestToken)

	status, body, err := t.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", smartmine.ErrDownload, err)
	}
	if status != http.StatusOK {
		return nil, statusError(smartmine.ErrDownload, status, body)
	}
	return body, nil
}

// === HELPERS ===

func (t *HTTPTransport) newJSONRequest(ctx context.Context, path string, query url.Values, payload any) (*http.Request, error) {
	endpoint := t.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return newJSONRequestURL(ctx, endpoint, payload)
}

func newJSONRequestURL(ctx context.Context, endpoint string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func setAuth(req *http.Request, bearer, requestToken string) {
	req.Header.Set("Authorization", "Bearer "+bearer)
	if requestToken != "" {
		req.Header.Set("request-token", requestToken)
	}
}

func (t *HTTPTransport) do(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("Request failed",
			zap.String("url", req.URL.Path),
			zap.Error(err))
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	t.logger.Debug("API call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return resp.StatusCode, body, nil
}

func (t *HTTPTransport) expectOK(req *http.Request, sentinel error) error {
	status, body, err := t.do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if status != http.StatusOK {
		return statusError(sentinel, status, body)
	}
	return nil
}

func (t *HTTPTransport) doJSON(req *http.Request, sentinel error, out any) error {
	status, body, err := t.do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if status != http.StatusOK {
		return statusError(sentinel, status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid response: %w", sentinel, err)
	}
	return nil
}

func statusError(sentinel error, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return fmt.Errorf("%w: %w", sentinel, &smartmine.StatusError{StatusCode: status, Body: text})
}
