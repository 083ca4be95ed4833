// Package main provides the stream-adaptation-analyzer CLI entry point.
//
// stream-adaptation-analyzer tracks which bitrate ladder rungs are being served
// and scores how often and how far the served bitrate switches.
package main

import (
	"os"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/config"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/stream-adaptation-analyzer
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	return orchestrator.Main(config.ToolAdaptation, os.Args[1:], version)
}
