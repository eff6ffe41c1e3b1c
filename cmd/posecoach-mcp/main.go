package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/form"
	"github.com/claude/posecoach/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "PoseCoach server URL (e.g. https://posecoach.tail1234.ts.net)")
	sideView := flag.Bool("side-view", false, "enable form checks that assume a side-on camera")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("posecoach-mcp", Version)
		return
	}

	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: posecoach-mcp -server <URL> [-side-view]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	engine := coach.NewEngine(log, form.Options{SideViewChecks: *sideView})
	s := mcp.New(mcp.NewHTTPClient(*serverURL), engine, Version, log)

	log.Info("posecoach-mcp serving on stdio", "server", *serverURL)
	if err := server.ServeStdio(s); err != nil {
		log.Error("stdio server failed", "error", err)
		os.Exit(1)
	}
}
