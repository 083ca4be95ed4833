package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// XML shapes. Tags carry no namespace so elements match by local name,
// which accepts both namespaced (urn:mpeg:dash:schema:mpd:2011) and bare MPDs.
type mpdXML struct {
	XMLName                   xml.Name    `xml:"MPD"`
	Type                      string      `xml:"type,attr"`
	Profiles                  string      `xml:"profiles,attr"`
	AvailabilityStartTime     string      `xml:"availabilityStartTime,attr"`
	PublishTime               string      `xml:"publishTime,attr"`
	MinimumUpdatePeriod       string      `xml:"minimumUpdatePeriod,attr"`
	MediaPresentationDuration string      `xml:"mediaPresentationDuration,attr"`
	BaseURL                   string      `xml:"BaseURL"`
	Periods                   []periodXML `xml:"Period"`
}

type periodXML struct {
	ID             string             `xml:"id,attr"`
	BaseURL        string             `xml:"BaseURL"`
	AdaptationSets []adaptationSetXML `xml:"AdaptationSet"`
}

type adaptationSetXML struct {
	ID              string              `xml:"id,attr"`
	ContentType     string              `xml:"contentType,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	Codecs          string              `xml:"codecs,attr"`
	FrameRate       string              `xml:"frameRate,attr"`
	BaseURL         string              `xml:"BaseURL"`
	SegmentTemplate *segmentTemplateXML `xml:"SegmentTemplate"`
	Representations []representationXML `xml:"Representation"`
}

type representationXML struct {
	ID              string              `xml:"id,attr"`
	Bandwidth       string              `xml:"bandwidth,attr"`
	Width           string              `xml:"width,attr"`
	Height          string              `xml:"height,attr"`
	FrameRate       string              `xml:"frameRate,attr"`
	Codecs          string              `xml:"codecs,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	BaseURL         string              `xml:"BaseURL"`
	SegmentTemplate *segmentTemplateXML `xml:"SegmentTemplate"`
}

type segmentTemplateXML struct {
	Media          string       `xml:"media,attr"`
	Initialization string       `xml:"initialization,attr"`
	StartNumber    string       `xml:"startNumber,attr"`
	Duration       string       `xml:"duration,attr"`
	Timescale      string       `xml:"timescale,attr"`
	PTO            string       `xml:"presentationTimeOffset,attr"`
	Timeline       *timelineXML `xml:"SegmentTimeline"`
}

type timelineXML struct {
	S []struct {
		T string `xml:"t,attr"`
		D string `xml:"d,attr"`
		R string `xml:"r,attr"`
	} `xml:"S"`
}

// ParseDASH parses an MPD document. manifestURL anchors relative BaseURLs.
// Only the first Period is considered.
func ParseDASH(data []byte, manifestURL string, fetchedAt time.Time) (*Snapshot, error) {
	var doc mpdXML
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{URL: manifestURL, Err: err}
	}
	if len(doc.Periods) == 0 {
		return nil, &ParseError{URL: manifestURL, Err: errors.New("MPD has no Period")}
	}

	snap := &Snapshot{
		URL:       manifestURL,
		FetchedAt: fetchedAt,
		Kind:      KindDASH,
		Type:      doc.Type,
		Profiles:  doc.Profiles,
	}
	if snap.Type == "" {
		snap.Type = "static"
	}
	snap.AvailabilityStartTime = parseDateTime(doc.AvailabilityStartTime)
	snap.PublishTime = parseDateTime(doc.PublishTime)
	snap.MinimumUpdatePeriod, _ = ParseISODuration(doc.MinimumUpdatePeriod)
	snap.MediaPresentationDuration, _ = ParseISODuration(doc.MediaPresentationDuration)

	period := doc.Periods[0]
	periodBase := resolveURL(resolveURL(manifestURL, strings.TrimSpace(doc.BaseURL)), strings.TrimSpace(period.BaseURL))

	for i, asx := range period.AdaptationSets {
		asBase := resolveURL(periodBase, strings.TrimSpace(asx.BaseURL))
		ct := ContentType(strings.ToLower(asx.ContentType))
		if ct == ContentUnknown {
			ct = contentTypeFromMime(asx.MimeType)
		}
		parentTmpl, err := convertTemplate(asx.SegmentTemplate)
		if err != nil {
			return nil, &ParseError{URL: manifestURL, Err: fmt.Errorf("adaptation set %d: %w", i, err)}
		}

		as := AdaptationSet{ID: asx.ID, ContentType: ct}
		for _, rx := range asx.Representations {
			rep, err := convertRepresentation(rx, asx, parentTmpl, asBase)
			if err != nil {
				return nil, &ParseError{URL: manifestURL, Err: fmt.Errorf("representation %q: %w", rx.ID, err)}
			}
			if as.ContentType == ContentUnknown {
				as.ContentType = rep.ContentType
			}
			if rep.ContentType == ContentUnknown {
				rep.ContentType = as.ContentType
			}
			as.Representations = append(as.Representations, rep)
		}
		snap.AdaptationSets = append(snap.AdaptationSets, as)
	}

	return snap, nil
}

func convertRepresentation(rx representationXML, asx adaptationSetXML, parent *SegmentTemplate, base string) (Representation, error) {
	rep := Representation{
		ID:        rx.ID,
		Codecs:    firstNonEmpty(rx.Codecs, asx.Codecs),
		FrameRate: firstNonEmpty(rx.FrameRate, asx.FrameRate),
		MimeType:  firstNonEmpty(rx.MimeType, asx.MimeType),
		BaseURL:   resolveURL(base, strings.TrimSpace(rx.BaseURL)),
	}
	var err error
	if rep.Bandwidth, err = parseInt(rx.Bandwidth, 0); err != nil {
		return rep, fmt.Errorf("bandwidth: %w", err)
	}
	if rep.Bandwidth < 0 {
		return rep, fmt.Errorf("bandwidth: negative value %d", rep.Bandwidth)
	}
	w, err := parseInt(rx.Width, 0)
	if err != nil {
		return rep, fmt.Errorf("width: %w", err)
	}
	h, err := parseInt(rx.Height, 0)
	if err != nil {
		return rep, fmt.Errorf("height: %w", err)
	}
	rep.Width, rep.Height = int(w), int(h)
	rep.ContentType = ContentType(strings.ToLower(asx.ContentType))
	if rep.ContentType == ContentUnknown {
		rep.ContentType = contentTypeFromMime(rep.MimeType)
	}

	own, err := convertTemplate(rx.SegmentTemplate)
	if err != nil {
		return rep, err
	}
	rep.Template = mergeTemplate(parent, own)
	return rep, nil
}

func convertTemplate(tx *segmentTemplateXML) (*SegmentTemplate, error) {
	if tx == nil {
		return nil, nil
	}
	t := &SegmentTemplate{
		Media:          tx.Media,
		Initialization: tx.Initialization,
	}
	var err error
	if t.StartNumber, err = parseInt(tx.StartNumber, -1); err != nil {
		return nil, fmt.Errorf("startNumber: %w", err)
	}
	if t.Duration, err = parseInt(tx.Duration, 0); err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	if t.Timescale, err = parseInt(tx.Timescale, 0); err != nil {
		return nil, fmt.Errorf("timescale: %w", err)
	}
	if t.PresentationTimeOffset, err = parseInt(tx.PTO, 0); err != nil {
		return nil, fmt.Errorf("presentationTimeOffset: %w", err)
	}
	if tx.Timeline != nil {
		for _, s := range tx.Timeline.S {
			var e TimelineEntry
			if s.T != "" {
				if e.T, err = parseInt(s.T, 0); err != nil {
					return nil, fmt.Errorf("S@t: %w", err)
				}
				e.HasT = true
			}
			if e.D, err = parseInt(s.D, 0); err != nil {
				return nil, fmt.Errorf("S@d: %w", err)
			}
			if e.R, err = parseInt(s.R, 0); err != nil {
				return nil, fmt.Errorf("S@r: %w", err)
			}
			t.Timeline = append(t.Timeline, e)
		}
	}
	return t, nil
}

// mergeTemplate fills unset child fields from the parent template.
// A startNumber of -1 marks "unset" until defaults are applied.
func mergeTemplate(parent, child *SegmentTemplate) *SegmentTemplate {
	if parent == nil && child == nil {
		return nil
	}
	out := &SegmentTemplate{StartNumber: -1}
	for _, t := range []*SegmentTemplate{parent, child} {
		if t == nil {
			continue
		}
		if t.Media != "" {
			out.Media = t.Media
		}
		if t.Initialization != "" {
			out.Initialization = t.Initialization
		}
		if t.StartNumber >= 0 {
			out.StartNumber = t.StartNumber
		}
		if t.Duration > 0 {
			out.Duration = t.Duration
		}
		if t.Timescale > 0 {
			out.Timescale = t.Timescale
		}
		if t.PresentationTimeOffset > 0 {
			out.PresentationTimeOffset = t.PresentationTimeOffset
		}
		if len(t.Timeline) > 0 {
			out.Timeline = t.Timeline
		}
	}
	if out.StartNumber < 0 {
		out.StartNumber = 1
	}
	if out.Timescale <= 0 {
		out.Timescale = 1
	}
	return out
}

func parseInt(s string, def int64) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDateTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)Y)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses an xs:duration such as "PT1H2M3.5S".
// Years and months are approximated as 365 and 30 days.
func ParseISODuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	units := []time.Duration{
		365 * 24 * time.Hour,
		30 * 24 * time.Hour,
		24 * time.Hour,
		time.Hour,
		time.Minute,
		time.Second,
	}
	var total float64
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		total += v * float64(unit)
	}
	return time.Duration(total), nil
}
