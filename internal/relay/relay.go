// Package relay implements the request-forwarding engine: it takes an
// arbitrary request description, performs the outbound call and normalizes
// the outcome into a uniform envelope with timing and size metrics.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reqbench/internal/config"
	"reqbench/internal/metrics"
	"reqbench/internal/model"
)

// ErrorKind classifies relay failures.
type ErrorKind string

// Relay failure kinds. Only InvalidURL escapes Do as an error; the network
// kinds are folded into the result envelope.
const (
	KindInvalidURL ErrorKind = "invalid_url"
	KindTimeout    ErrorKind = "timeout"
	KindNetwork    ErrorKind = "network"
)

// Error is the closed relay error type.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay %s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("relay %s: %s", e.Kind, e.URL)
}

func (e *Error) Unwrap() error { return e.Err }

// Relay forwards caller-described requests to their targets. It performs a
// single attempt per call: targets may be non-idempotent, so failures are
// reported rather than retried.
type Relay struct {
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	maxBytes int64
}

// New creates a Relay with connection pooling and a bounded call timeout.
// The metrics parameter is optional; pass nil to disable relay metrics recording.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		client:   newHTTPClient(cfg),
		logger:   logger.With("component", "relay"),
		metrics:  m,
		maxBytes: cfg.Relay.MaxResponseBytes,
	}
}

// Do forwards the described request and returns the normalized envelope.
//
// Malformed target URLs fail with *Error{Kind: KindInvalidURL} before any
// network I/O. Target-side failures (DNS, refused connection, TLS, timeout)
// never escape as errors: they produce an envelope with Status 500, zero
// timing and size, and the underlying message as the body, so callers can
// distinguish "the target call failed" from "the relay itself broke".
func (r *Relay) Do(ctx context.Context, spec *model.RequestSpec) (*model.RelayResult, error) {
	target, err := buildTargetURL(spec)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(spec.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead && len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: spec.URL, Err: err}
	}

	// Default content type; caller-supplied headers win on collision.
	req.Header.Set("Content-Type", "application/json")
	for k, v := range spec.Headers {
		if k == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	r.logger.Debug("relaying request", "method", method, "url", target)

	start := time.Now()
	resp, err := r.client.Do(req)
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.RelayDuration.WithLabelValues(metrics.NormalizeMethod(method)).Observe(elapsed.Seconds())
	}

	if err != nil {
		return r.failureEnvelope(method, target, err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return r.failureEnvelope(method, target, err), nil
	}

	decoded := decodeBody(resp.Header.Get("Content-Type"), raw)

	if r.metrics != nil {
		r.metrics.RelayResponses.WithLabelValues(
			metrics.NormalizeMethod(method), strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.RelayResult{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    flattenHeaders(resp.Header),
		Body:       decoded,
		ElapsedMs:  elapsed.Milliseconds(),
		SizeBytes:  decodedSize(decoded),
	}, nil
}

// failureEnvelope normalizes a target-side failure into the uniform result
// shape: status 500, zero timing and size, underlying message as the body.
func (r *Relay) failureEnvelope(method, target string, err error) *model.RelayResult {
	statusText := "Network Error"
	if isTimeout(err) {
		statusText = "Timeout"
	}

	r.logger.Warn("relay target failure",
		"method", method,
		"url", target,
		"kind", statusText,
		"err", err,
	)
	if r.metrics != nil {
		r.metrics.RelayResponses.WithLabelValues(metrics.NormalizeMethod(method), "error").Inc()
	}

	return &model.RelayResult{
		Status:     http.StatusInternalServerError,
		StatusText: statusText,
		Headers:    map[string]string{},
		Body:       err.Error(),
		ElapsedMs:  0,
		SizeBytes:  0,
	}
}

// buildTargetURL validates the target and appends query parameters. Pairs
// with an empty key or empty value are skipped.
func buildTargetURL(spec *model.RequestSpec) (string, error) {
	u, err := url.Parse(spec.URL)
	if err != nil {
		return "", &Error{Kind: KindInvalidURL, URL: spec.URL, Err: err}
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &Error{Kind: KindInvalidURL, URL: spec.URL, Err: errors.New("target must be an absolute http(s) URL")}
	}

	if len(spec.Params) > 0 {
		q := u.Query()
		for k, v := range spec.Params {
			if k == "" || v == "" {
				continue
			}
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// decodeBody interprets the response body by its declared content type:
// JSON types are parsed with a raw-text fallback, anything else is raw text.
func decodeBody(contentType string, raw []byte) any {
	if isJSONContentType(contentType) {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func isJSONContentType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// decodedSize approximates the response size as the byte length of the
// JSON re-serialization of the decoded body. This is not the raw wire size;
// callers must not rely on exactness for non-JSON bodies.
func decodedSize(decoded any) int64 {
	data, err := json.Marshal(decoded)
	if err != nil {
		return 0
	}
	return int64(len(data))
}

// flattenHeaders lowers header keys and joins multi-valued headers, per the
// envelope convention.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		out[strings.ToLower(k)] = strings.Join(vals, ", ")
	}
	return out
}

// isTimeout reports whether the outbound call failed by exceeding a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}
