package process

import "fmt"

// ProbeError reports an external tool failure or unusable tool output.
// ExitCode is -1 when the tool did not exit normally.
type ProbeError struct {
	Tool     string
	ExitCode int
	Detail   string
	Err      error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("%s failed (exit %d): %v", e.Tool, e.ExitCode, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ProbeError) Unwrap() error { return e.Err }
