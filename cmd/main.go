// Package main is the entry point for the BallisticIntel pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
)

func printHelp() {
	fmt.Print(`BallisticIntel intelligence pipeline

Usage:
  pipeline run [flags]    Execute one pipeline run
  pipeline version        Print version
  pipeline help           Show this help

Run flags:
  --mode string            incremental, backfill, or dry-run (default from RUN_MODE)
  --lookback int           days of lookback for incremental mode
  --start string           backfill window start (YYYY-MM-DD)
  --end string             backfill window end (YYYY-MM-DD)
  --feeds string           path to a YAML feeds file
  --p2-concurrency int     relevance classification workers
  --p3-concurrency int     extraction workers
  --log-level string       debug, info, warn, error

Environment:
  GEMINI_API_KEY, SUPABASE_URL, SUPABASE_SERVICE_KEY,
  GOOGLE_APPLICATION_CREDENTIALS, BIGQUERY_PROJECT, and the RUN_* /
  *_CONCURRENCY variables mirrored by the flags above.
`)
}

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "ballisticintel", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Local .env can override.
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			os.Exit(runCommand(os.Args[2:]))
		case "version", "-v", "--version":
			fmt.Printf("pipeline %s\n", Version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			printHelp()
			os.Exit(2)
		}
	}

	// Default: one pipeline run.
	os.Exit(runCommand(os.Args[1:]))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
