package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single tool output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per tool invocation.
	MaxBufferedLines = 100
)

// ToolOutput handles stderr from an ffprobe or ffmpeg invocation.
// It keeps the most recent lines for error reporting and logs them.
type ToolOutput struct {
	tool    string
	logger  *slog.Logger
	verbose bool

	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewToolOutput creates an output handler for one tool run.
func NewToolOutput(tool string, logger *slog.Logger, verbose bool) *ToolOutput {
	return &ToolOutput{
		tool:    tool,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader processes each line read from r until EOF.
func (h *ToolOutput) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleLine stores and logs a single line.
func (h *ToolOutput) HandleLine(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	level := classifyLine(line)
	if !h.verbose && level == slog.LevelDebug {
		return
	}
	h.logger.Log(context.Background(), level, "tool_stderr",
		"tool", h.tool,
		"line", line,
	)
}

// classifyLine picks a log level from the content of a tool output line.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "invalid data found"),
		strings.Contains(lower, "no such file"),
		strings.Contains(lower, "could not find codec"),
		strings.Contains(lower, "error") && strings.Contains(lower, "failed"),
		strings.Contains(lower, "[error]"):
		return slog.LevelWarn
	case strings.Contains(lower, "[warning]"),
		strings.Contains(lower, "deprecated"),
		strings.Contains(lower, "non-monotonous"):
		return slog.LevelWarn
	}
	// Progress and SSIM summary lines are debug-only.
	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *ToolOutput) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}
	return lines
}

// ErrorPatterns are tool failure signatures counted by CountErrors.
var ErrorPatterns = []string{
	"Invalid data found",
	"No such file",
	"Could not find codec",
	"moov atom not found",
	"Conversion failed",
}

// CountErrors counts buffered lines matching each of ErrorPatterns.
func (h *ToolOutput) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}
