package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/manifest"
)

// DefaultToolTimeout bounds one ffprobe/ffmpeg invocation (including download).
const DefaultToolTimeout = 30 * time.Second

// QualityInfo is what one segment probe yields.
type QualityInfo struct {
	Bitrate     int64   `json:"bitrate"`
	Duration    float64 `json:"duration"`
	Codec       string  `json:"codec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	PixelFormat string  `json:"pixel_format"`
	FrameCount  int64   `json:"frame_count"`
}

// ffprobeOutput is the subset of `ffprobe -print_format json` we read.
type ffprobeOutput struct {
	Format struct {
		BitRate  string `json:"bit_rate"`
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecName    string `json:"codec_name"`
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		PixFmt       string `json:"pix_fmt"`
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
		BitRate      string `json:"bit_rate"`
	} `json:"streams"`
}

// Tools probes segments with ffprobe and compares them with ffmpeg's SSIM
// filter. Segments are downloaded (init + media, concatenated) into
// temporary files that are removed after each call.
type Tools struct {
	FFprobePath string
	FFmpegPath  string
	Runner      Runner
	Client      *http.Client
	UserAgent   string
	TempDir     string
	Timeout     time.Duration
}

// ProbeQuality downloads ref and inspects its first video stream.
func (t *Tools) ProbeQuality(ctx context.Context, ref manifest.SegmentRef) (QualityInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()

	path, err := t.download(ctx, ref)
	if err != nil {
		return QualityInfo{}, err
	}
	defer os.Remove(path)

	stdout, _, err := t.Runner.Run(ctx, t.ffprobe(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-count_frames",
		"-select_streams", "v:0",
		path,
	)
	if err != nil {
		return QualityInfo{}, err
	}
	return ParseFFprobe(stdout)
}

// ParseFFprobe extracts QualityInfo from ffprobe JSON output.
func ParseFFprobe(data []byte) (QualityInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return QualityInfo{}, &ProbeError{Tool: "ffprobe", ExitCode: 0, Err: fmt.Errorf("parse output: %w", err)}
	}
	if len(out.Streams) == 0 {
		return QualityInfo{}, &ProbeError{Tool: "ffprobe", ExitCode: 0, Err: errors.New("no video stream")}
	}
	s := out.Streams[0]

	info := QualityInfo{
		Codec:       s.CodecName,
		Width:       s.Width,
		Height:      s.Height,
		PixelFormat: s.PixFmt,
		FPS:         parseRational(s.RFrameRate),
	}
	info.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	if info.Bitrate == 0 {
		info.Bitrate, _ = strconv.ParseInt(s.BitRate, 10, 64)
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.FrameCount, _ = strconv.ParseInt(firstSet(s.NbReadFrames, s.NbFrames), 10, 64)
	return info, nil
}

var ssimAll = regexp.MustCompile(`All:([0-9.]+)`)

// Similarity returns the SSIM "All" score between two segments, in [0,1].
func (t *Tools) Similarity(ctx context.Context, a, b manifest.SegmentRef) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()

	pa, err := t.download(ctx, a)
	if err != nil {
		return 0, err
	}
	defer os.Remove(pa)
	pb, err := t.download(ctx, b)
	if err != nil {
		return 0, err
	}
	defer os.Remove(pb)

	_, stderr, err := t.Runner.Run(ctx, t.ffmpeg(),
		"-hide_banner",
		"-i", pa,
		"-i", pb,
		"-lavfi", "ssim",
		"-f", "null", "-",
	)
	if err != nil {
		return 0, err
	}
	return ParseSSIM(stderr)
}

// ParseSSIM extracts the last "All:<score>" value from ffmpeg's ssim output.
func ParseSSIM(stderr []byte) (float64, error) {
	matches := ssimAll.FindAllSubmatch(stderr, -1)
	if len(matches) == 0 {
		return 0, &ProbeError{Tool: "ffmpeg", ExitCode: 0, Err: errors.New("no SSIM score in output")}
	}
	v, err := strconv.ParseFloat(string(matches[len(matches)-1][1]), 64)
	if err != nil {
		return 0, &ProbeError{Tool: "ffmpeg", ExitCode: 0, Err: fmt.Errorf("parse SSIM: %w", err)}
	}
	return v, nil
}

func (t *Tools) download(ctx context.Context, ref manifest.SegmentRef) (string, error) {
	f, err := os.CreateTemp(t.TempDir, "segment-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	for _, u := range []string{ref.InitURL, ref.MediaURL} {
		if u == "" {
			continue
		}
		if err := t.fetchInto(ctx, u, f); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func (t *Tools) fetchInto(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &manifest.TransportError{URL: url, Err: err}
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &manifest.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &manifest.TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &manifest.TransportError{URL: url, Err: err}
	}
	return nil
}

func (t *Tools) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultToolTimeout
}

func (t *Tools) ffprobe() string {
	if t.FFprobePath != "" {
		return t.FFprobePath
	}
	return FindFFprobe(t.ffmpeg())
}

func (t *Tools) ffmpeg() string {
	if t.FFmpegPath != "" {
		return t.FFmpegPath
	}
	return "ffmpeg"
}

// parseRational parses "30000/1001" or "25" into a float. Invalid input is 0.
func parseRational(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" && v != "N/A" {
			return v
		}
	}
	return ""
}
