package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/logging"
)

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var logs bytes.Buffer
	r := ExecRunner{Logger: logging.NewLoggerWithWriter(&logs, "text", "debug")}

	t.Run("success", func(t *testing.T) {
		stdout, _, err := r.Run(context.Background(), "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if strings.TrimSpace(string(stdout)) != "hello" {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		_, _, err := r.Run(context.Background(), "sh", "-c", "echo 'x: Invalid data found' >&2; exit 3")
		var pe *ProbeError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want *ProbeError", err)
		}
		if pe.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", pe.ExitCode)
		}
		if !strings.Contains(pe.Detail, "Invalid data found") {
			t.Errorf("Detail = %q", pe.Detail)
		}
		if !strings.Contains(logs.String(), "tool_stderr") {
			t.Error("stderr warning line should be logged")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := r.Run(ctx, "sh", "-c", "sleep 5")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
