// Package process runs the external media-inspection tools (ffprobe, ffmpeg)
// used to derive segment quality attributes.
package process

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/logging"
)

// Runner executes an external tool and returns its captured output.
// This interface allows the probes to be tested without the real binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools with os/exec. Each line of stderr is also fed to a
// ToolOutput handler so failures are visible in the logs.
type ExecRunner struct {
	Logger  *slog.Logger
	Verbose bool
}

// Run executes name with args. A non-zero exit is returned as *ProbeError.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tool := filepath.Base(name)
	out := logging.NewToolOutput(tool, logger, r.Verbose)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out.HandleReader(bytes.NewReader(stderr.Bytes()))

	if err != nil {
		pe := &ProbeError{Tool: tool, ExitCode: -1, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			pe.Err = ctx.Err()
		}
		pe.Detail = strings.Join(out.RecentLines(3), " | ")
		return stdout.Bytes(), stderr.Bytes(), pe
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// FindFFprobe returns the path to ffprobe.
// It looks in the same directory as ffmpeg, or falls back to PATH.
func FindFFprobe(ffmpegPath string) string {
	const ffmpegSuffix = "ffmpeg"
	if len(ffmpegPath) > len(ffmpegSuffix) && strings.HasSuffix(ffmpegPath, ffmpegSuffix) {
		// e.g., /usr/local/bin/ffmpeg -> /usr/local/bin/ffprobe
		candidate := strings.TrimSuffix(ffmpegPath, ffmpegSuffix) + "ffprobe"
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate
		}
	}
	return "ffprobe"
}
