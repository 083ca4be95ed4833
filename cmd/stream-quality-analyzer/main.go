// Package main provides the stream-quality-analyzer CLI entry point.
//
// stream-quality-analyzer samples segments of the first video representation
// and reports bitrate, codec and visual similarity figures using ffprobe and
// ffmpeg.
package main

import (
	"os"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/config"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/stream-quality-analyzer
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	return orchestrator.Main(config.ToolQuality, os.Args[1:], version)
}
