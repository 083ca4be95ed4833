// Package main provides the stream-latency-analyzer CLI entry point.
//
// stream-latency-analyzer times manifest and segment requests and keeps rolling
// latency, timeout and error-rate windows.
package main

import (
	"os"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/config"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/stream-latency-analyzer
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	return orchestrator.Main(config.ToolLatency, os.Args[1:], version)
}
