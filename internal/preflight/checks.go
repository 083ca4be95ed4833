// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/process"
)

// fdHeadroom is the descriptor count below which a warning is shown.
const fdHeadroom = 256

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options selects what RunAll verifies.
type Options struct {
	OutputDir   string
	FFprobePath string
	FFmpegPath  string

	// NeedTools makes missing ffprobe/ffmpeg fatal. Without it they are
	// reported as warnings.
	NeedTools bool

	Runner  process.Runner
	Timeout time.Duration
}

func (c Check) symbol() string {
	switch {
	case !c.Passed:
		return "✗"
	case c.Warning:
		return "⚠"
	default:
		return "✓"
	}
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", c.symbol(), c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", c.symbol(), c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	if opts.Runner == nil {
		opts.Runner = process.ExecRunner{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}
	result.add(checkOutputDir(opts.OutputDir))
	result.add(checkTool(ctx, opts, "ffprobe", opts.FFprobePath))
	result.add(checkTool(ctx, opts, "ffmpeg", opts.FFmpegPath))
	result.add(checkFileDescriptors())
	return result
}

// checkOutputDir creates dir if needed and verifies a file can be written.
func checkOutputDir(dir string) Check {
	c := Check{Name: "output_dir"}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return c
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		c.Message = fmt.Sprintf("%s not writable: %v", dir, err)
		return c
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	c.Passed = true
	c.Message = abs + " writable"
	return c
}

// checkTool runs "<path> -version" and extracts the version string.
func checkTool(ctx context.Context, opts Options, name, path string) Check {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	stdout, _, err := opts.Runner.Run(ctx, path, "-version")
	if err != nil {
		c := Check{Name: name, Message: fmt.Sprintf("not found at %s: %v", path, err)}
		if !opts.NeedTools {
			c.Passed = true
			c.Warning = true
			c.Message += " (quality analysis unavailable)"
		}
		return c
	}

	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, parseVersion(stdout)),
	}
}

// parseVersion reads "ffprobe version 6.1 Copyright ..." style output.
func parseVersion(out []byte) string {
	first, _, _ := strings.Cut(string(out), "\n")
	parts := strings.Fields(first)
	if len(parts) >= 3 && parts[1] == "version" {
		return parts[2]
	}
	return "unknown"
}

// checkFileDescriptors warns when the soft descriptor limit is low.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: "unable to check",
		}
	}
	actual := int(limit.Cur)
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Warning: actual < fdHeadroom,
		Message: fmt.Sprintf("ulimit -n %d (recommend %d)", actual, fdHeadroom),
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		line := check.String()
		switch {
		case !check.Passed:
			failColor.Fprintln(w, line)
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		case check.Warning:
			warnColor.Fprintln(w, line)
		default:
			passColor.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "output_dir":
		return "choose a writable directory with -o"
	case "ffprobe", "ffmpeg":
		return "install ffmpeg (apt install ffmpeg / brew install ffmpeg) or pass -ffprobe/-ffmpeg"
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
