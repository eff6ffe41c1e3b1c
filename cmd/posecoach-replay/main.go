package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/form"
	"github.com/claude/posecoach/internal/replay"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "PoseCoach server URL (e.g. https://posecoach.tail1234.ts.net)")
	path := flag.String("path", "", "recording (.jsonl) or directory of recordings")
	apiKey := flag.String("api-key", os.Getenv("POSECOACH_AUTH_API_KEY"), "ingest API key (default $POSECOACH_AUTH_API_KEY)")
	user := flag.String("user", "", "login to file the sets under (default: server's local user)")
	dryRun := flag.Bool("dry-run", false, "replay and print summaries but don't send to server")
	sideView := flag.Bool("side-view", false, "enable form checks that assume a side-on camera")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("posecoach-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *path == "" {
		fmt.Fprintf(os.Stderr, "Usage: posecoach-replay -server <URL> -path <recordings> [-dry-run] [-side-view]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}
	if *apiKey == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -api-key is required (or use -dry-run)\n")
		os.Exit(1)
	}

	*serverURL = strings.TrimRight(*serverURL, "/")

	// Open state database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	stateDir := filepath.Join(homeDir, ".posecoach-replay")

	state, err := replay.OpenStateDB(stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Create client (nil-safe in dry-run mode)
	var client *replay.Client
	if !*dryRun {
		client = replay.NewClient(*serverURL, *apiKey, *user)
	} else {
		log.Info("DRY RUN mode: recordings are replayed but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := coach.NewEngine(log, form.Options{SideViewChecks: *sideView})
	stats, err := replay.New(client, state, engine, *path, *dryRun, log).Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
	log.Info("replay complete")
}

func printStats(stats *replay.Stats) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files replayed:   %d\n", stats.FilesReplayed)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Sets:             %d\n", stats.Sets)
	fmt.Printf("  Frames:           %d\n", stats.Frames)
	fmt.Printf("  Reps:             %d\n", stats.Reps)
	fmt.Printf("  Sets stored:      %d\n", stats.SetsInserted)
	fmt.Printf("  Duplicates:       %d\n", stats.Duplicates)
	fmt.Println()
}
