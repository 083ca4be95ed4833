package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
)

const (
	// DefaultFetchTimeout bounds a single manifest fetch.
	DefaultFetchTimeout = 10 * time.Second

	// maxManifestBytes caps the body read for one manifest or playlist.
	maxManifestBytes = 16 << 20
)

// Reader fetches and parses a manifest into a Snapshot.
type Reader interface {
	Fetch(ctx context.Context, manifestURL string) (*Snapshot, error)
}

// ReaderConfig configures an HTTPReader.
type ReaderConfig struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	Clock     timeseries.Clock
}

// HTTPReader fetches manifests over HTTP(S). Concurrent fetches of the same
// URL are coalesced into one request; callers share the immutable result.
type HTTPReader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	clock     timeseries.Clock
	group     singleflight.Group
}

// NewHTTPReader creates a reader. Zero-valued fields fall back to defaults.
func NewHTTPReader(cfg ReaderConfig) *HTTPReader {
	r := &HTTPReader{
		client:    cfg.Client,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		clock:     cfg.Clock,
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if r.timeout <= 0 {
		r.timeout = DefaultFetchTimeout
	}
	if r.clock == nil {
		r.clock = timeseries.SystemClock{}
	}
	return r
}

// Fetch retrieves and parses manifestURL. HLS master playlists have their
// variant media playlists fetched as well; a variant that fails to load is
// kept without segments.
func (r *HTTPReader) Fetch(ctx context.Context, manifestURL string) (*Snapshot, error) {
	v, err, _ := r.group.Do(manifestURL, func() (any, error) {
		return r.fetch(ctx, manifestURL)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (r *HTTPReader) fetch(ctx context.Context, manifestURL string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, contentType, err := r.get(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	fetchedAt := r.clock.Now()

	switch DetectKind(manifestURL, contentType, body) {
	case KindDASH:
		return ParseDASH(body, manifestURL, fetchedAt)
	case KindHLS:
		pl, err := ParsePlaylist(body, manifestURL)
		if err != nil {
			return nil, err
		}
		if !pl.Master {
			return snapshotFromMedia(pl, manifestURL, fetchedAt), nil
		}
		media := make(map[string]*Playlist, len(pl.Variants))
		for _, v := range pl.Variants {
			vb, _, err := r.get(ctx, v.URL)
			if err != nil {
				continue
			}
			if mp, err := ParsePlaylist(vb, v.URL); err == nil {
				media[v.URL] = mp
			}
		}
		return snapshotFromMaster(pl, manifestURL, fetchedAt, media), nil
	default:
		return nil, &ParseError{URL: manifestURL, Err: errors.New("unrecognized manifest format")}
	}
}

func (r *HTTPReader) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &TransportError{URL: rawURL, Err: err}
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &TransportError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, "", &TransportError{URL: rawURL, Err: err}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// DetectKind identifies the manifest format from the content type, the URL
// extension, and finally the body itself. It returns "" when unknown.
func DetectKind(rawURL, contentType string, body []byte) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "dash+xml"):
		return KindDASH
	case strings.Contains(ct, "mpegurl"):
		return KindHLS
	}

	if u, err := url.Parse(rawURL); err == nil {
		p := strings.ToLower(u.Path)
		switch {
		case strings.HasSuffix(p, ".mpd"):
			return KindDASH
		case strings.HasSuffix(p, ".m3u8"), strings.HasSuffix(p, ".m3u"):
			return KindHLS
		}
	}

	trimmed := bytes.TrimLeft(body, "\ufeff \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("#EXTM3U")):
		return KindHLS
	case bytes.Contains(trimmed[:min(len(trimmed), 4096)], []byte("<MPD")):
		return KindDASH
	}
	return ""
}
