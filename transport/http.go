package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openjobspec/ojs-go/wire"
)

// httpRoute maps an operation onto the coordinator's REST surface.
// {key} is replaced by the request's Key.
type httpRoute struct {
	verb string
	path string
}

var httpRoutes = map[string]httpRoute{
	wire.MethodClaim:            {http.MethodPost, "/v1/worker/claim"},
	wire.MethodHeartbeat:        {http.MethodPost, "/v1/worker/heartbeat"},
	wire.MethodAck:              {http.MethodPost, "/v1/jobs/{key}/ack"},
	wire.MethodFail:             {http.MethodPost, "/v1/jobs/{key}/fail"},
	wire.MethodEnqueue:          {http.MethodPost, "/v1/jobs"},
	wire.MethodCheckpointGet:    {http.MethodGet, "/v1/jobs/{key}/checkpoint"},
	wire.MethodCheckpointSave:   {http.MethodPut, "/v1/jobs/{key}/checkpoint"},
	wire.MethodCheckpointDelete: {http.MethodDelete, "/v1/jobs/{key}/checkpoint"},
	wire.MethodQueueEnsure:      {http.MethodPut, "/v1/queues/{key}"},
	wire.MethodScheduleUpsert:   {http.MethodPut, "/v1/schedules/{key}"},
	wire.MethodScheduleDelete:   {http.MethodDelete, "/v1/schedules/{key}"},
}

// HTTP talks to a coordinator over its REST surface, one request per
// operation. Safe for concurrent use.
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// HTTPOption configures the HTTP binding.
type HTTPOption func(*HTTP)

// WithHTTPToken sets the bearer token sent with every request.
func WithHTTPToken(token string) HTTPOption {
	return func(h *HTTP) { h.token = token }
}

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithHTTPTimeout sets the default per-operation timeout. Individual
// requests may override it via Request.Timeout.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.timeout = d }
}

// WithHTTPLogger sets the structured logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = logger }
}

// NewHTTP creates an HTTP transport against the coordinator's base URL
// (e.g. "http://localhost:8288").
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Do implements Transport.
func (h *HTTP) Do(ctx context.Context, req Request, result any) error {
	route, ok := httpRoutes[req.Method]
	if !ok {
		return fmt.Errorf("ojs: transport: unknown method %q", req.Method)
	}

	timeout := h.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("ojs: transport: marshal %s request: %w", req.Method, err)
		}
		body = bytes.NewReader(raw)
	}

	url := h.baseURL + strings.Replace(route.path, "{key}", req.Key, 1)
	httpReq, err := http.NewRequestWithContext(ctx, route.verb, url, body)
	if err != nil {
		return fmt.Errorf("ojs: transport: build %s request: %w", req.Method, err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}
	// Mutating operations carry a fresh idempotency key so the
	// coordinator can deduplicate a retried request that it actually
	// received the first time.
	if route.verb != http.MethodGet {
		httpReq.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return &ConnError{Op: req.Method, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnError{Op: req.Method, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeHTTPError(req.Method, resp.StatusCode, data)
	}

	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("ojs: transport: decode %s response: %w", req.Method, err)
	}
	return nil
}

// Close implements Transport. The HTTP binding holds no connection
// state beyond the client's idle pool.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// decodeHTTPError maps a non-2xx response to a *wire.Error. Conforming
// coordinators return {"error": {...}}; anything else is synthesized
// from the status code so callers always get a typed rejection.
func decodeHTTPError(method string, status int, data []byte) error {
	var envelope struct {
		Error *wire.Error `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil && envelope.Error.Code != "" {
		return envelope.Error
	}

	var bare wire.Error
	if err := json.Unmarshal(data, &bare); err == nil && bare.Code != "" {
		return &bare
	}

	return &wire.Error{
		Code:      codeForStatus(status),
		Message:   fmt.Sprintf("%s: coordinator returned HTTP %d", method, status),
		Retryable: status >= 500 || status == http.StatusTooManyRequests,
	}
}

func codeForStatus(status int) wire.Code {
	switch status {
	case http.StatusBadRequest:
		return wire.CodeInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return wire.CodeUnauthorized
	case http.StatusNotFound:
		return wire.CodeNotFound
	case http.StatusConflict:
		return wire.CodeConflict
	case http.StatusTooManyRequests:
		return wire.CodeRateLimited
	default:
		return wire.CodeInternal
	}
}
