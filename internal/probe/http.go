// Package probe measures HTTP round-trip latency for manifests and segments.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
)

const (
	ManifestTimeout = 10 * time.Second
	SegmentTimeout  = 30 * time.Second
	HeadTimeout     = 10 * time.Second
)

// Measurement is one timed request. LatencyMs is only set on success.
type Measurement struct {
	URL           string        `json:"url"`
	Status        sample.Status `json:"status"`
	LatencyMs     *float64      `json:"latency_ms,omitempty"`
	HTTPStatus    int           `json:"http_status,omitempty"`
	ContentLength int64         `json:"content_length,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// OK reports whether the request succeeded.
func (m Measurement) OK() bool { return m.Status == sample.StatusSuccess }

// LatencyProber times a request to url. It never returns an error; failures
// are encoded in the Measurement status.
type LatencyProber interface {
	ProbeLatency(ctx context.Context, url string) Measurement
}

// HTTPProber issues GET or HEAD requests with a per-request timeout.
type HTTPProber struct {
	Client    *http.Client
	Method    string
	Timeout   time.Duration
	UserAgent string
	Clock     timeseries.Clock
}

// NewHTTPProber returns a prober for method with the given timeout.
func NewHTTPProber(method string, timeout time.Duration, userAgent string) *HTTPProber {
	return &HTTPProber{
		Client:    &http.Client{},
		Method:    method,
		Timeout:   timeout,
		UserAgent: userAgent,
		Clock:     timeseries.SystemClock{},
	}
}

// ProbeLatency measures the time until the full response body has been read
// (or, for HEAD, until headers arrive). HTTP statuses >= 400 are errors.
func (p *HTTPProber) ProbeLatency(ctx context.Context, url string) Measurement {
	m := Measurement{URL: url}

	clock := p.Clock
	if clock == nil {
		clock = timeseries.SystemClock{}
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	method := p.Method
	if method == "" {
		method = http.MethodGet
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		m.Status = sample.StatusError
		m.Error = err.Error()
		return m
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	start := clock.Now()
	resp, err := client.Do(req)
	if err != nil {
		m.Status = sample.StatusOf(err)
		m.Error = err.Error()
		return m
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	elapsed := clock.Now().Sub(start)
	m.HTTPStatus = resp.StatusCode
	m.ContentLength = resp.ContentLength
	if m.ContentLength < 0 {
		m.ContentLength = n
	}

	if err != nil {
		m.Status = sample.StatusOf(err)
		m.Error = err.Error()
		return m
	}
	if resp.StatusCode >= 400 {
		m.Status = sample.StatusError
		m.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return m
	}

	ms := float64(elapsed) / float64(time.Millisecond)
	m.Status = sample.StatusSuccess
	m.LatencyMs = &ms
	return m
}
