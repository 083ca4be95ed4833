package manifest

import "time"

// SegmentRef addresses one media segment and its initialization segment.
type SegmentRef struct {
	RepresentationID string `json:"representation_id"`
	Bandwidth        int64  `json:"bandwidth"`
	Number           int64  `json:"number"`
	InitURL          string `json:"init_url,omitempty"`
	MediaURL         string `json:"media_url"`
}

// timelinePoint is one expanded SegmentTimeline entry.
type timelinePoint struct {
	number int64
	time   int64
}

// unbounded marks an unknown timeline end.
const unbounded = -1

// repeats resolves the repeat count of entry i starting at cursor. A
// negative S@r runs until the next entry's S@t or, for the last entry,
// until the segments completed by end. With neither bound it counts once.
func repeats(entries []TimelineEntry, i int, cursor, end int64) int64 {
	e := entries[i]
	if e.R >= 0 {
		return e.R
	}
	if e.D <= 0 {
		return 0
	}
	if i+1 < len(entries) && entries[i+1].HasT {
		next := entries[i+1].T
		if next <= cursor {
			return 0
		}
		// Segments starting before next.
		return (next-cursor+e.D-1)/e.D - 1
	}
	if end == unbounded || end <= cursor {
		return 0
	}
	// Segments finished by end.
	return max((end-cursor)/e.D-1, 0)
}

// expandTimeline flattens repeats into (number, time) pairs, stopping after
// limit points (limit <= 0 means all). end bounds an open-ended last entry.
func expandTimeline(t *SegmentTemplate, limit int, end int64) []timelinePoint {
	var out []timelinePoint
	number := t.StartNumber
	var cursor int64
	for i, e := range t.Timeline {
		if e.HasT {
			cursor = e.T
		}
		n := repeats(t.Timeline, i, cursor, end)
		for k := int64(0); k <= n; k++ {
			out = append(out, timelinePoint{number: number, time: cursor})
			if limit > 0 && len(out) >= limit {
				return out
			}
			number++
			cursor += e.D
		}
	}
	return out
}

// lastTimelinePoint is the final point of expandTimeline without
// materializing the runs in between.
func lastTimelinePoint(t *SegmentTemplate, end int64) timelinePoint {
	var last timelinePoint
	number := t.StartNumber
	var cursor int64
	for i, e := range t.Timeline {
		if e.HasT {
			cursor = e.T
		}
		n := repeats(t.Timeline, i, cursor, end)
		last = timelinePoint{number: number + n, time: cursor + n*e.D}
		number += n + 1
		cursor += (n + 1) * e.D
	}
	return last
}

// timelineEnd is the media time reached at now for a live presentation, in
// timescale units, or unbounded when the stream has no live start.
func (t *SegmentTemplate) timelineEnd(now, liveStart time.Time) int64 {
	if liveStart.IsZero() || !now.After(liveStart) {
		return unbounded
	}
	ts := t.Timescale
	if ts <= 0 {
		ts = 1
	}
	elapsed := now.Sub(liveStart)
	return t.PresentationTimeOffset + int64(elapsed.Seconds()*float64(ts))
}

func (r Representation) templateRef(number, t int64) SegmentRef {
	tmpl := r.Template
	ref := SegmentRef{
		RepresentationID: r.ID,
		Bandwidth:        r.Bandwidth,
		Number:           number,
		MediaURL:         resolveURL(r.BaseURL, expandTemplate(tmpl.Media, r.ID, number, r.Bandwidth, t)),
	}
	if tmpl.Initialization != "" {
		ref.InitURL = resolveURL(r.BaseURL, expandTemplate(tmpl.Initialization, r.ID, number, r.Bandwidth, t))
	}
	return ref
}

func (r Representation) playlistRef(seg MediaSegment) SegmentRef {
	return SegmentRef{
		RepresentationID: r.ID,
		Bandwidth:        r.Bandwidth,
		Number:           seg.Sequence,
		InitURL:          r.InitURL,
		MediaURL:         seg.URL,
	}
}

// EarliestSegments returns up to n segment refs starting at the earliest
// advertised segment. With a SegmentTimeline the numbers follow the timeline;
// otherwise the refs are {startNumber, startNumber+1}.
func (r Representation) EarliestSegments(n int) []SegmentRef {
	if n <= 0 {
		return nil
	}

	if len(r.Segments) > 0 {
		out := make([]SegmentRef, 0, n)
		for _, seg := range r.Segments {
			if len(out) >= n {
				break
			}
			out = append(out, r.playlistRef(seg))
		}
		return out
	}

	if r.Template == nil || r.Template.Media == "" {
		return nil
	}

	if len(r.Template.Timeline) > 0 {
		points := expandTimeline(r.Template, n, unbounded)
		out := make([]SegmentRef, 0, len(points))
		for _, p := range points {
			out = append(out, r.templateRef(p.number, p.time))
		}
		return out
	}

	start := r.Template.StartNumber
	out := []SegmentRef{r.templateRef(start, 0)}
	if n > 1 {
		out = append(out, r.templateRef(start+1, r.Template.Duration))
	}
	return out
}

// LatestSegment returns the newest segment the representation advertises.
//
// For a timeline this is the last expanded entry, with an open-ended final
// repeat running up to now on a live stream. For a numbered template
// with a known live start it is the last segment completed by now. Otherwise
// it falls back to startNumber.
func (r Representation) LatestSegment(now, liveStart time.Time) (SegmentRef, bool) {
	if len(r.Segments) > 0 {
		return r.playlistRef(r.Segments[len(r.Segments)-1]), true
	}
	if r.Template == nil || r.Template.Media == "" {
		return SegmentRef{}, false
	}

	if len(r.Template.Timeline) > 0 {
		last := lastTimelinePoint(r.Template, r.Template.timelineEnd(now, liveStart))
		return r.templateRef(last.number, last.time), true
	}

	number := r.Template.StartNumber
	segDur := r.Template.SegmentDuration()
	if !liveStart.IsZero() && segDur > 0 && now.After(liveStart) {
		completed := int64(now.Sub(liveStart) / segDur)
		if completed > 0 {
			number += completed - 1
		}
	}
	t := (number - r.Template.StartNumber) * r.Template.Duration
	return r.templateRef(number, t), true
}

// LatestSegment resolves a representation's newest segment using the
// snapshot's live start when the presentation is dynamic.
func (s *Snapshot) LatestSegment(rep Representation, now time.Time) (SegmentRef, bool) {
	var liveStart time.Time
	if s.IsLive() {
		liveStart = s.AvailabilityStartTime
	}
	return rep.LatestSegment(now, liveStart)
}

// SegmentInfo describes a representation's nominal segment timing.
type SegmentInfo struct {
	SegmentDurationSeconds float64 `json:"segment_duration"`
	Timescale              int64   `json:"timescale"`
	StartNumber            int64   `json:"start_number"`
}

// SegmentInfo returns timing information for the representation, or false
// when no segment addressing is present.
func (r Representation) SegmentInfo() (SegmentInfo, bool) {
	if r.Template != nil {
		return SegmentInfo{
			SegmentDurationSeconds: r.Template.SegmentDuration().Seconds(),
			Timescale:              r.Template.Timescale,
			StartNumber:            r.Template.StartNumber,
		}, true
	}
	if len(r.Segments) > 0 {
		return SegmentInfo{
			SegmentDurationSeconds: r.Segments[0].Duration.Seconds(),
			Timescale:              1,
			StartNumber:            r.Segments[0].Sequence,
		}, true
	}
	return SegmentInfo{}, false
}
