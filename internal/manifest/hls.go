package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Playlist is a parsed HLS document: either a master (Variants/Renditions)
// or a media playlist (Segments).
type Playlist struct {
	Master     bool
	Variants   []Variant
	Renditions []Rendition

	TargetDuration time.Duration
	MediaSequence  int64
	EndList        bool
	InitURL        string
	Segments       []MediaSegment
}

// Variant is one #EXT-X-STREAM-INF entry.
type Variant struct {
	URL       string
	Bandwidth int64
	Width     int
	Height    int
	Codecs    string
	FrameRate string
}

// Rendition is one #EXT-X-MEDIA entry.
type Rendition struct {
	Type    string
	GroupID string
	Name    string
	URL     string
}

// ParsePlaylist parses an m3u8 document. baseURL anchors relative URIs.
func ParsePlaylist(data []byte, baseURL string) (*Playlist, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff")) != "#EXTM3U" {
		return nil, &ParseError{URL: baseURL, Err: errors.New("missing #EXTM3U header")}
	}

	pl := &Playlist{}
	var pendingVariant *Variant
	var pendingDuration time.Duration
	hasPendingSegment := false
	seq := int64(0)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{
				Codecs:    attrs["CODECS"],
				FrameRate: attrs["FRAME-RATE"],
			}
			v.Bandwidth, _ = strconv.ParseInt(attrs["BANDWIDTH"], 10, 64)
			if res := attrs["RESOLUTION"]; res != "" {
				if w, h, ok := strings.Cut(res, "x"); ok {
					v.Width, _ = strconv.Atoi(w)
					v.Height, _ = strconv.Atoi(h)
				}
			}
			pendingVariant = &v
			pl.Master = true

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			r := Rendition{
				Type:    attrs["TYPE"],
				GroupID: attrs["GROUP-ID"],
				Name:    attrs["NAME"],
			}
			if uri := attrs["URI"]; uri != "" {
				r.URL = resolveURL(baseURL, uri)
			}
			pl.Renditions = append(pl.Renditions, r)
			pl.Master = true

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.ParseFloat(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"), 64)
			if err != nil {
				return nil, &ParseError{URL: baseURL, Err: fmt.Errorf("target duration: %w", err)}
			}
			pl.TargetDuration = time.Duration(secs * float64(time.Second))

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			n, err := strconv.ParseInt(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64)
			if err != nil {
				return nil, &ParseError{URL: baseURL, Err: fmt.Errorf("media sequence: %w", err)}
			}
			pl.MediaSequence = n
			seq = n

		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			if uri := attrs["URI"]; uri != "" {
				pl.InitURL = resolveURL(baseURL, uri)
			}

		case strings.HasPrefix(line, "#EXTINF:"):
			val := strings.TrimPrefix(line, "#EXTINF:")
			val, _, _ = strings.Cut(val, ",")
			secs, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return nil, &ParseError{URL: baseURL, Err: fmt.Errorf("EXTINF: %w", err)}
			}
			pendingDuration = time.Duration(secs * float64(time.Second))
			hasPendingSegment = true

		case line == "#EXT-X-ENDLIST":
			pl.EndList = true

		case strings.HasPrefix(line, "#"):
			// Unhandled tag or comment.

		default:
			uri := resolveURL(baseURL, line)
			switch {
			case pendingVariant != nil:
				pendingVariant.URL = uri
				pl.Variants = append(pl.Variants, *pendingVariant)
				pendingVariant = nil
			case hasPendingSegment:
				pl.Segments = append(pl.Segments, MediaSegment{URL: uri, Duration: pendingDuration, Sequence: seq})
				seq++
				hasPendingSegment = false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{URL: baseURL, Err: err}
	}
	return pl, nil
}

// parseAttributes parses an HLS attribute list (KEY=VALUE,KEY="quoted,value").
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var val string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
			s = strings.TrimPrefix(s, ",")
		} else {
			var rest string
			var found bool
			val, rest, found = strings.Cut(s, ",")
			if found {
				s = rest
			} else {
				s = ""
			}
		}
		attrs[key] = strings.TrimSpace(val)
	}
	return attrs
}

// snapshotFromMaster builds a Snapshot from a master playlist. Variant media
// playlists are attached by the caller via media, keyed by variant URL.
func snapshotFromMaster(pl *Playlist, manifestURL string, fetchedAt time.Time, media map[string]*Playlist) *Snapshot {
	snap := &Snapshot{
		URL:       manifestURL,
		FetchedAt: fetchedAt,
		Kind:      KindHLS,
		Type:      "static",
	}

	video := AdaptationSet{ID: "video", ContentType: ContentVideo}
	for i, v := range pl.Variants {
		rep := Representation{
			ID:          strconv.Itoa(i),
			ContentType: ContentVideo,
			Bandwidth:   v.Bandwidth,
			Width:       v.Width,
			Height:      v.Height,
			Codecs:      v.Codecs,
			FrameRate:   v.FrameRate,
			BaseURL:     v.URL,
			PlaylistURL: v.URL,
		}
		if mp, ok := media[v.URL]; ok && mp != nil {
			rep.InitURL = mp.InitURL
			rep.Segments = mp.Segments
			if !mp.EndList {
				snap.Type = "dynamic"
			}
		}
		video.Representations = append(video.Representations, rep)
	}
	if len(video.Representations) > 0 {
		snap.AdaptationSets = append(snap.AdaptationSets, video)
	}

	groups := map[string]*AdaptationSet{}
	var order []string
	for _, r := range pl.Renditions {
		var ct ContentType
		switch r.Type {
		case "AUDIO":
			ct = ContentAudio
		case "SUBTITLES", "CLOSED-CAPTIONS":
			ct = ContentText
		default:
			continue
		}
		key := string(ct) + "/" + r.GroupID
		as, ok := groups[key]
		if !ok {
			as = &AdaptationSet{ID: r.GroupID, ContentType: ct}
			groups[key] = as
			order = append(order, key)
		}
		as.Representations = append(as.Representations, Representation{
			ID:          r.Name,
			ContentType: ct,
			BaseURL:     r.URL,
			PlaylistURL: r.URL,
		})
	}
	for _, key := range order {
		snap.AdaptationSets = append(snap.AdaptationSets, *groups[key])
	}
	return snap
}

// snapshotFromMedia wraps a lone media playlist as a single video representation.
func snapshotFromMedia(pl *Playlist, manifestURL string, fetchedAt time.Time) *Snapshot {
	snap := &Snapshot{
		URL:       manifestURL,
		FetchedAt: fetchedAt,
		Kind:      KindHLS,
		Type:      "static",
	}
	if !pl.EndList {
		snap.Type = "dynamic"
	}
	snap.AdaptationSets = []AdaptationSet{{
		ID:          "video",
		ContentType: ContentVideo,
		Representations: []Representation{{
			ID:          "0",
			ContentType: ContentVideo,
			BaseURL:     manifestURL,
			PlaylistURL: manifestURL,
			InitURL:     pl.InitURL,
			Segments:    pl.Segments,
		}},
	}}
	return snap
}
