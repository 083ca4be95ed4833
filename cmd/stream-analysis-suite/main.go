// Package main provides the stream-analysis-suite CLI entry point.
//
// stream-analysis-suite runs the quality, latency and adaptation analyzers against one
// DASH or HLS stream and periodically fuses their results into a stream health
// score with recommendations.
package main

import (
	"os"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/config"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/stream-analysis-suite
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	return orchestrator.Main(config.ToolSuite, os.Args[1:], version)
}
