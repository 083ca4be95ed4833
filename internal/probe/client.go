package probe

import (
	"net/http"
	"strings"
)

// headerTransport adds fixed request headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// ParseHeaders converts "Name: value" strings to an http.Header. Entries
// without a colon are ignored.
func ParseHeaders(lines []string) http.Header {
	h := make(http.Header, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h
}

// NewClient returns an http.Client that sends headers with every request.
// The client has no overall timeout; probers apply per-request deadlines.
func NewClient(headers []string) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	h := ParseHeaders(headers)
	if len(h) == 0 {
		return &http.Client{Transport: base}
	}
	return &http.Client{Transport: &headerTransport{base: base, headers: h}}
}
