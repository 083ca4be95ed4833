// Package manifest fetches and parses adaptive-streaming manifests.
//
// Both DASH MPDs and HLS playlists are parsed into the same immutable
// Snapshot: adaptation sets grouped by content type, each holding its
// Representations and enough addressing information to build segment URLs.
package manifest

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies the manifest format.
type Kind string

const (
	KindDASH Kind = "DASH"
	KindHLS  Kind = "HLS"
)

// ContentType is the media type of a track.
type ContentType string

const (
	ContentVideo   ContentType = "video"
	ContentAudio   ContentType = "audio"
	ContentText    ContentType = "text"
	ContentUnknown ContentType = ""
)

// contentTypeFromMime infers the content type from a MIME type.
func contentTypeFromMime(mime string) ContentType {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "video/"):
		return ContentVideo
	case strings.HasPrefix(mime, "audio/"):
		return ContentAudio
	case strings.HasPrefix(mime, "text/"), strings.Contains(mime, "ttml"), strings.Contains(mime, "vtt"):
		return ContentText
	default:
		return ContentUnknown
	}
}

// TimelineEntry is one <S> element of a SegmentTimeline.
// HasT is false when the entry continues from the previous entry's end.
type TimelineEntry struct {
	T    int64
	HasT bool
	D    int64
	R    int64
}

// SegmentTemplate describes DASH template-based segment addressing.
type SegmentTemplate struct {
	Media          string
	Initialization string
	StartNumber    int64
	Duration       int64
	Timescale      int64
	Timeline       []TimelineEntry

	// PresentationTimeOffset is the media time at the period start, in
	// timescale units.
	PresentationTimeOffset int64
}

// SegmentDuration returns the nominal segment duration, or 0 if unknown.
func (t *SegmentTemplate) SegmentDuration() time.Duration {
	if t == nil || t.Duration <= 0 {
		return 0
	}
	ts := t.Timescale
	if ts <= 0 {
		ts = 1
	}
	return time.Duration(float64(t.Duration) / float64(ts) * float64(time.Second))
}

// MediaSegment is one entry of an HLS media playlist.
type MediaSegment struct {
	URL      string
	Duration time.Duration
	Sequence int64
}

// Representation is one encoded variant of a track.
type Representation struct {
	ID          string
	ContentType ContentType
	Bandwidth   int64
	Width       int
	Height      int
	Codecs      string
	FrameRate   string
	MimeType    string

	// BaseURL is the absolute URL segment paths resolve against.
	BaseURL string

	// DASH addressing.
	Template *SegmentTemplate

	// HLS addressing.
	PlaylistURL string
	InitURL     string
	Segments    []MediaSegment
}

// Resolution renders WIDTHxHEIGHT, or "" when either is absent.
func (r Representation) Resolution() string {
	if r.Width <= 0 || r.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// AdaptationSet groups interchangeable Representations of one content type.
type AdaptationSet struct {
	ID              string
	ContentType     ContentType
	Representations []Representation
}

// Snapshot is a parsed manifest at one instant. It is never mutated after
// parsing returns.
type Snapshot struct {
	URL       string
	FetchedAt time.Time
	Kind      Kind

	Type                      string // "static" or "dynamic"
	Profiles                  string
	AvailabilityStartTime     time.Time
	PublishTime               time.Time
	MinimumUpdatePeriod       time.Duration
	MediaPresentationDuration time.Duration

	AdaptationSets []AdaptationSet
}

// IsLive reports whether the manifest describes a live presentation.
func (s *Snapshot) IsLive() bool {
	return s.Type == "dynamic"
}

// Counts returns the number of representations per content type.
func (s *Snapshot) Counts() map[ContentType]int {
	counts := make(map[ContentType]int, 3)
	for _, as := range s.AdaptationSets {
		counts[as.ContentType] += len(as.Representations)
	}
	return counts
}

// VideoSet returns the first video adaptation set.
func (s *Snapshot) VideoSet() (AdaptationSet, bool) {
	for _, as := range s.AdaptationSets {
		if as.ContentType == ContentVideo {
			return as, true
		}
	}
	return AdaptationSet{}, false
}

// FirstVideo returns the first representation of the first video set in
// manifest order.
func (s *Snapshot) FirstVideo() (Representation, bool) {
	as, ok := s.VideoSet()
	if !ok || len(as.Representations) == 0 {
		return Representation{}, false
	}
	return as.Representations[0], true
}

// VideoRepresentations returns the video set's representations sorted
// ascending by bandwidth.
func (s *Snapshot) VideoRepresentations() []Representation {
	as, ok := s.VideoSet()
	if !ok {
		return nil
	}
	reps := make([]Representation, len(as.Representations))
	copy(reps, as.Representations)
	sort.SliceStable(reps, func(i, j int) bool {
		return reps[i].Bandwidth < reps[j].Bandwidth
	})
	return reps
}

// Info is the JSON-friendly summary embedded in analyzer samples.
type Info struct {
	Kind                  Kind     `json:"kind"`
	Type                  string   `json:"type"`
	Profiles              string   `json:"profiles,omitempty"`
	AvailabilityStartTime string   `json:"availability_start_time,omitempty"`
	PublishTime           string   `json:"publish_time,omitempty"`
	AdaptationSets        int      `json:"adaptation_sets"`
	VideoRepresentations  int      `json:"video_representations"`
	AudioRepresentations  int      `json:"audio_representations"`
	TextRepresentations   int      `json:"text_representations"`
	Bitrates              []int64  `json:"bitrates"`
	Resolutions           []string `json:"resolutions"`
	Codecs                []string `json:"codecs"`
}

// Info summarizes the snapshot. Bitrates, resolutions and codecs describe
// the video set, in ascending bandwidth order.
func (s *Snapshot) Info() Info {
	counts := s.Counts()
	info := Info{
		Kind:                 s.Kind,
		Type:                 s.Type,
		Profiles:             s.Profiles,
		AdaptationSets:       len(s.AdaptationSets),
		VideoRepresentations: counts[ContentVideo],
		AudioRepresentations: counts[ContentAudio],
		TextRepresentations:  counts[ContentText],
		Bitrates:             []int64{},
		Resolutions:          []string{},
		Codecs:               []string{},
	}
	if !s.AvailabilityStartTime.IsZero() {
		info.AvailabilityStartTime = s.AvailabilityStartTime.UTC().Format(time.RFC3339)
	}
	if !s.PublishTime.IsZero() {
		info.PublishTime = s.PublishTime.UTC().Format(time.RFC3339)
	}

	seenCodec := make(map[string]bool)
	for _, rep := range s.VideoRepresentations() {
		info.Bitrates = append(info.Bitrates, rep.Bandwidth)
		if res := rep.Resolution(); res != "" {
			info.Resolutions = append(info.Resolutions, res)
		}
		if rep.Codecs != "" && !seenCodec[rep.Codecs] {
			seenCodec[rep.Codecs] = true
			info.Codecs = append(info.Codecs, rep.Codecs)
		}
	}
	return info
}
