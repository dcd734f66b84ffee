package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reqbench/internal/config"
	"reqbench/internal/model"
)

func testRelay(t *testing.T, timeoutSeconds int) *Relay {
	t.Helper()
	cfg := &config.Config{
		Relay: config.RelayConfig{
			TimeoutSeconds:   timeoutSeconds,
			IdleConnections:  10,
			MaxResponseBytes: 1 << 20,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, nil)
}

func TestDo_InvalidURL(t *testing.T) {
	r := testRelay(t, 10)

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative", "/just/a/path"},
		{"no scheme", "example.com/get"},
		{"bad scheme", "ftp://example.com/file"},
		{"no host", "http://"},
		{"garbage", "http://exa mple.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Do(context.Background(), &model.RequestSpec{URL: tt.url})

			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if rerr.Kind != KindInvalidURL {
				t.Errorf("Kind = %q, want %q", rerr.Kind, KindInvalidURL)
			}
		})
	}
}

func TestDo_JSONResponseDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"name":"widget","count":3}`))
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if res.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", res.Status)
	}
	if res.StatusText != "OK" {
		t.Errorf("StatusText = %q, want %q", res.StatusText, "OK")
	}
	body, ok := res.Body.(map[string]any)
	if !ok {
		t.Fatalf("Body = %T, want decoded JSON object", res.Body)
	}
	if body["name"] != "widget" {
		t.Errorf("body.name = %v, want widget", body["name"])
	}
	if res.ElapsedMs < 0 {
		t.Errorf("ElapsedMs = %d, want >= 0", res.ElapsedMs)
	}
	if res.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", res.SizeBytes)
	}
	if ct := res.Headers["content-type"]; !strings.Contains(ct, "application/json") {
		t.Errorf("headers not lower-cased or missing content-type: %v", res.Headers)
	}
}

func TestDo_MalformedJSONFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if res.Body != "{not json" {
		t.Errorf("Body = %v, want raw text fallback", res.Body)
	}
}

func TestDo_NonJSONContentTypeIsRawText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`{"looks":"like json"}`))
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if _, isString := res.Body.(string); !isString {
		t.Errorf("Body = %T, want raw string for non-JSON content type", res.Body)
	}
}

func TestDo_QueryParamsSkipEmpty(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	_, err := r.Do(context.Background(), &model.RequestSpec{
		URL:    srv.URL,
		Params: map[string]string{"a": "1", "b": "", "": "x"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotQuery != "a=1" {
		t.Errorf("query = %q, want %q (empty key/value pairs skipped)", gotQuery, "a=1")
	}
}

func TestDo_HeaderDefaultsAndOverride(t *testing.T) {
	var gotContentType, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := testRelay(t, 10)

	// Default applied when the caller sends none.
	if _, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want default application/json", gotContentType)
	}

	// Caller value wins on collision; extra headers pass through.
	if _, err := r.Do(context.Background(), &model.RequestSpec{
		URL: srv.URL,
		Headers: map[string]string{
			"Content-Type": "text/plain",
			"X-Custom":     "yes",
		},
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotContentType != "text/plain" {
		t.Errorf("Content-Type = %q, want caller override text/plain", gotContentType)
	}
	if gotCustom != "yes" {
		t.Errorf("X-Custom = %q, want yes", gotCustom)
	}
}

func TestDo_BodyOnlyForNonGETHEAD(t *testing.T) {
	var gotBodies = map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBodies[r.Method] = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	body := []byte(`{"k":"v"}`)

	for _, method := range []string{"GET", "HEAD", "POST", "PUT"} {
		if _, err := r.Do(context.Background(), &model.RequestSpec{
			URL: srv.URL, Method: method, Body: body,
		}); err != nil {
			t.Fatalf("Do(%s): %v", method, err)
		}
	}

	tests := []struct {
		method   string
		wantBody string
	}{
		{"GET", ""},
		{"HEAD", ""},
		{"POST", `{"k":"v"}`},
		{"PUT", `{"k":"v"}`},
	}
	for _, tt := range tests {
		if gotBodies[tt.method] != tt.wantBody {
			t.Errorf("%s body = %q, want %q", tt.method, gotBodies[tt.method], tt.wantBody)
		}
	}
}

func TestDo_DefaultsToGET(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	if _, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
}

func TestDo_FollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"landed":true}`))
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	r := testRelay(t, 10)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: redirecting.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200 after redirect", res.Status)
	}
	body, _ := res.Body.(map[string]any)
	if body["landed"] != true {
		t.Errorf("Body = %v, want the redirect target's body", res.Body)
	}
}

func TestDo_TargetErrorStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"error":"short and stout"}`))
	}))
	defer srv.Close()

	r := testRelay(t, 10)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Status != http.StatusTeapot {
		t.Errorf("Status = %d, want the target's 418", res.Status)
	}
}

func TestDo_ConnectionRefusedEnvelope(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	deadURL := srv.URL
	srv.Close()

	r := testRelay(t, 10)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: deadURL})
	if err != nil {
		t.Fatalf("Do: %v (target failures must not be errors)", err)
	}

	if res.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", res.Status)
	}
	if res.StatusText != "Network Error" {
		t.Errorf("StatusText = %q, want %q", res.StatusText, "Network Error")
	}
	if res.ElapsedMs != 0 || res.SizeBytes != 0 {
		t.Errorf("ElapsedMs/SizeBytes = %d/%d, want 0/0", res.ElapsedMs, res.SizeBytes)
	}
	msg, _ := res.Body.(string)
	if msg == "" {
		t.Error("Body empty, want the underlying failure message")
	}
}

func TestDo_TimeoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	r := testRelay(t, 1)
	res, err := r.Do(context.Background(), &model.RequestSpec{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v (timeouts must not be errors)", err)
	}

	if res.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", res.Status)
	}
	if res.StatusText != "Timeout" {
		t.Errorf("StatusText = %q, want %q", res.StatusText, "Timeout")
	}
}

func TestBuildTargetURL_PreservesExistingQuery(t *testing.T) {
	got, err := buildTargetURL(&model.RequestSpec{
		URL:    "https://example.com/search?q=base",
		Params: map[string]string{"page": "2"},
	})
	if err != nil {
		t.Fatalf("buildTargetURL: %v", err)
	}
	if !strings.Contains(got, "q=base") || !strings.Contains(got, "page=2") {
		t.Errorf("url = %q, want both existing and added params", got)
	}
}

func TestDecodedSize(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int64
	}{
		{"object", map[string]any{"a": float64(1)}, int64(len(`{"a":1}`))},
		{"string", "hello", int64(len(`"hello"`))},
		{"empty string", "", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodedSize(tt.body); got != tt.want {
				t.Errorf("decodedSize = %d, want %d", got, tt.want)
			}
		})
	}
}
