package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const masterM3U8 = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English",URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=854x480,CODECS="avc1.4d401f,mp4a.40.2"
480p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=426x240,CODECS="avc1.4d4015,mp4a.40.2"
240p/index.m3u8
`

const mediaM3U8 = `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-MEDIA-SEQUENCE:120
#EXT-X-MAP:URI="init.mp4"
#EXTINF:4.000,
seg120.m4s
#EXTINF:4.000,
seg121.m4s
#EXTINF:3.5,
seg122.m4s
`

func TestParsePlaylist_Master(t *testing.T) {
	pl, err := ParsePlaylist([]byte(masterM3U8), "https://cdn.example.com/hls/master.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	if !pl.Master || len(pl.Variants) != 2 || len(pl.Renditions) != 1 {
		t.Fatalf("master = %+v", pl)
	}
	v := pl.Variants[0]
	if v.Bandwidth != 1000000 || v.Width != 854 || v.Height != 480 {
		t.Errorf("variant = %+v", v)
	}
	if v.Codecs != "avc1.4d401f,mp4a.40.2" {
		t.Errorf("quoted codecs = %q", v.Codecs)
	}
	if v.URL != "https://cdn.example.com/hls/480p/index.m3u8" {
		t.Errorf("variant URL = %q", v.URL)
	}
}

func TestParsePlaylist_Media(t *testing.T) {
	pl, err := ParsePlaylist([]byte(mediaM3U8), "https://cdn.example.com/hls/240p/index.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	if pl.Master || pl.EndList {
		t.Errorf("Master/EndList = %v/%v, want false/false", pl.Master, pl.EndList)
	}
	if len(pl.Segments) != 3 || pl.Segments[0].Sequence != 120 || pl.Segments[2].Sequence != 122 {
		t.Fatalf("segments = %+v", pl.Segments)
	}
	if pl.Segments[2].Duration != 3500*time.Millisecond {
		t.Errorf("duration = %v", pl.Segments[2].Duration)
	}
	if pl.InitURL != "https://cdn.example.com/hls/240p/init.mp4" {
		t.Errorf("InitURL = %q", pl.InitURL)
	}
}

func TestParsePlaylist_MissingHeader(t *testing.T) {
	_, err := ParsePlaylist([]byte("not a playlist"), "http://x/a.m3u8")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v, want *ParseError", err)
	}
}

func TestHTTPReader_FetchHLSMaster(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hls/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(masterM3U8))
	})
	mux.HandleFunc("/hls/240p/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mediaM3U8))
	})
	mux.HandleFunc("/hls/480p/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewHTTPReader(ReaderConfig{Timeout: 2 * time.Second})
	snap, err := r.Fetch(context.Background(), srv.URL+"/hls/master.m3u8")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Kind != KindHLS || !snap.IsLive() {
		t.Errorf("Kind/live = %s/%v", snap.Kind, snap.IsLive())
	}

	reps := snap.VideoRepresentations()
	if len(reps) != 2 || reps[0].Bandwidth != 500000 {
		t.Fatalf("video reps = %+v", reps)
	}
	if len(reps[0].Segments) != 3 {
		t.Errorf("240p segments = %d, want 3", len(reps[0].Segments))
	}
	if len(reps[1].Segments) != 0 {
		t.Errorf("failed variant should have no segments, got %d", len(reps[1].Segments))
	}

	latest, ok := snap.LatestSegment(reps[0], time.Now())
	if !ok || !strings.HasSuffix(latest.MediaURL, "/hls/240p/seg122.m4s") {
		t.Errorf("LatestSegment = %+v", latest)
	}
	if snap.Counts()[ContentAudio] != 1 {
		t.Errorf("audio renditions = %d, want 1", snap.Counts()[ContentAudio])
	}
}

func TestHTTPReader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.mpd":
			http.Error(w, "nope", http.StatusNotFound)
		case "/garbage":
			w.Write([]byte("plain text body"))
		case "/slow.mpd":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(liveMPD))
		}
	}))
	defer srv.Close()

	r := NewHTTPReader(ReaderConfig{Timeout: 50 * time.Millisecond})

	t.Run("http status", func(t *testing.T) {
		_, err := r.Fetch(context.Background(), srv.URL+"/missing.mpd")
		var terr *TransportError
		if !errors.As(err, &terr) || terr.StatusCode != http.StatusNotFound {
			t.Errorf("err = %v, want TransportError 404", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := r.Fetch(context.Background(), srv.URL+"/garbage")
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("err = %v, want ParseError", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := r.Fetch(context.Background(), srv.URL+"/slow.mpd")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	})
}

func TestHTTPReader_CoalescesConcurrentFetches(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/dash+xml")
		w.Write([]byte(liveMPD))
	}))
	defer srv.Close()

	r := NewHTTPReader(ReaderConfig{Timeout: 2 * time.Second})
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := r.Fetch(context.Background(), srv.URL+"/live.mpd")
			errs <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Fetch: %v", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		body        string
		want        Kind
	}{
		{"dash content type", "http://x/a", "application/dash+xml", "", KindDASH},
		{"hls content type", "http://x/a", "application/x-mpegURL", "", KindHLS},
		{"mpd extension", "http://x/live.mpd?token=1", "", "", KindDASH},
		{"m3u8 extension", "http://x/live.m3u8", "", "", KindHLS},
		{"hls body", "http://x/a", "", "#EXTM3U\n", KindHLS},
		{"dash body", "http://x/a", "", `<?xml version="1.0"?><MPD>`, KindDASH},
		{"unknown", "http://x/a", "text/plain", "hello", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectKind(tt.url, tt.contentType, []byte(tt.body)); got != tt.want {
				t.Errorf("DetectKind = %q, want %q", got, tt.want)
			}
		})
	}
}
