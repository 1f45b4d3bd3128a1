// Package main implements the sshchic command, a multi-core search for
// ed25519 SSH keys whose public key or fingerprint matches a regular
// expression.
//
// The command:
//   - Compiles the pattern (a bad pattern is reported before any work starts)
//   - Starts one worker per CPU plus a rate monitor
//   - Prints every match; in single-shot mode saves the first one and exits
//   - Stops cleanly on Ctrl+C or SIGTERM
//
// Configuration (lowest to highest precedence):
//   - Built-in defaults
//   - YAML file given by --config or SSHCHIC_CONFIG
//   - SSHCHIC_WORKERS, SSHCHIC_JOURNAL, SSHCHIC_WEBHOOK
//   - Command line flags
//
// Example usage:
//
//	# Keys ending with "SSH"
//	sshchic --regex 'SSH$'
//
//	# Case-insensitive "github" in the fingerprint
//	sshchic --regex github --insensitive --fingerprint
//
//	# Keep finding keys that start with AAAA and journal them
//	sshchic --regex '^ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAI' --streaming --journal keys.db
//
// Exit codes:
//   - 0: Match saved, budget exhausted, or interrupted cleanly
//   - 1: Configuration error (bad pattern, flags or config file)
//   - 2: The matched key could not be saved
//   - 3: A worker failed unexpectedly
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/sshchic/internal/config"
	"github.com/dreamware/sshchic/internal/report"
	"github.com/dreamware/sshchic/internal/search"
	"github.com/dreamware/sshchic/internal/storage"
)

const (
	exitOK = iota
	exitConfig
	exitPersist
	exitFault
)

// configError marks failures that happen before the search starts.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command with args and returns the process exit code.
// Canceling ctx interrupts a running search.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	log.SetOutput(stderr)
	cmd := newRootCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps a command error to a process exit code.
func exitCode(err error) int {
	var perr *search.PersistError
	var fault *search.WorkerFault
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &perr):
		return exitPersist
	case errors.As(err, &fault):
		return exitFault
	default:
		return exitConfig
	}
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	var configPath string
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           "sshchic",
		Short:         "Search for ed25519 SSH keys matching a pattern",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return &configError{err}
			}
			applyFlags(cmd, &loaded, cfg)
			if !cmd.Flags().Changed("regex") && loaded.Regex == "" {
				return &configError{errors.New(`required flag "regex" not set`)}
			}
			return runSearch(cmd.Context(), loaded, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", getenv("SSHCHIC_CONFIG", ""), "YAML configuration file")
	f.StringVarP(&cfg.Regex, "regex", "r", "", "Regex pattern to search for")
	f.BoolVarP(&cfg.Insensitive, "insensitive", "i", false, "Enable case-insensitive matching")
	f.BoolVarP(&cfg.Streaming, "streaming", "s", false, "Keep processing keys, even after a match")
	f.BoolVarP(&cfg.Fingerprint, "fingerprint", "f", false, "Match against fingerprint instead of public key")
	f.StringVar(&cfg.FingerprintFormat, "fingerprint-format", cfg.FingerprintFormat, "Fingerprint rendering: base64 (ssh-keygen), hex, base58, or raw (padded base64 of the bare key digest)")
	f.IntVarP(&cfg.Workers, "workers", "w", 0, "Worker count (0 = one per CPU)")
	f.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Private key file name; the public key gets a .pub suffix")
	f.StringVar(&cfg.Dir, "dir", cfg.Dir, "Directory for the key files")
	f.StringVar(&cfg.Comment, "comment", cfg.Comment, "Comment stored with the key")
	f.StringVar(&cfg.Journal, "journal", "", "Record every match in this SQLite database")
	f.StringVar(&cfg.Webhook, "webhook", "", "POST the public part of every match to this URL")
	f.BoolVar(&cfg.JSON, "json", false, "Print matches as JSON lines")
	f.Uint64Var(&cfg.MaxKeys, "max-keys", 0, "Stop after examining this many keys (0 = unlimited)")
	f.DurationVar(&cfg.Monitor.Interval, "interval", cfg.Monitor.Interval, "Progress sampling period")
	f.DurationVar(&cfg.Monitor.Window, "window", cfg.Monitor.Window, "Rate smoothing window")
	return cmd
}

// applyFlags copies every explicitly set flag from flags into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags config.Config) {
	set := cmd.Flags().Changed
	if set("regex") {
		cfg.Regex = flags.Regex
	}
	if set("insensitive") {
		cfg.Insensitive = flags.Insensitive
	}
	if set("streaming") {
		cfg.Streaming = flags.Streaming
	}
	if set("fingerprint") {
		cfg.Fingerprint = flags.Fingerprint
	}
	if set("fingerprint-format") {
		cfg.FingerprintFormat = flags.FingerprintFormat
	}
	if set("workers") {
		cfg.Workers = flags.Workers
	}
	if set("output") {
		cfg.Output = flags.Output
	}
	if set("dir") {
		cfg.Dir = flags.Dir
	}
	if set("comment") {
		cfg.Comment = flags.Comment
	}
	if set("journal") {
		cfg.Journal = flags.Journal
	}
	if set("webhook") {
		cfg.Webhook = flags.Webhook
	}
	if set("json") {
		cfg.JSON = flags.JSON
	}
	if set("max-keys") {
		cfg.MaxKeys = flags.MaxKeys
	}
	if set("interval") {
		cfg.Monitor.Interval = flags.Monitor.Interval
	}
	if set("window") {
		cfg.Monitor.Window = flags.Monitor.Window
	}
}

// runSearch wires the configured components together and runs one search.
func runSearch(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return &configError{err}
	}
	matcher, err := cfg.Matcher()
	if err != nil {
		return &configError{err}
	}
	enc := cfg.Encoder()

	var console *report.Console
	var reporters report.Multi
	if cfg.JSON {
		reporters = append(reporters, report.NewJSON(stdout, enc))
	} else {
		console = report.NewConsole(stdout, enc)
		reporters = append(reporters, console)
		fmt.Fprintf(stdout, "Using regex pattern: %s\n", matcher)
		fmt.Fprintln(stdout, "Press Ctrl+C to stop")
	}

	if cfg.Journal != "" {
		journal, err := storage.OpenJournal(cfg.Journal, enc)
		if err != nil {
			return &configError{err}
		}
		defer journal.Close()
		reporters = append(reporters, journal)
	}
	if cfg.Webhook != "" {
		webhook := report.NewWebhook(cfg.Webhook, enc)
		defer webhook.Close()
		reporters = append(reporters, webhook)
	}

	coord := search.NewCoordinator(matcher, cfg.SearchOptions())
	coord.SetReporter(reporters)
	if !cfg.Streaming {
		coord.SetPersister(storage.NewFilePersister(cfg.Dir, cfg.Output, enc))
	}

	outcome, err := coord.Run(ctx)
	if console != nil {
		console.Finish()
		if outcome.Saved {
			console.Saved(outcome.Files)
		}
	}

	rate := 0.0
	if secs := outcome.Elapsed.Seconds(); secs > 0 {
		rate = float64(outcome.Examined) / secs
	}
	log.Printf("examined %d keys in %v (%.2f kKeys/s), %d matches",
		outcome.Examined, outcome.Elapsed.Round(time.Millisecond), rate/1000, outcome.Matches)

	if err == nil && console != nil {
		fmt.Fprintln(stdout, "Done!")
	}
	return err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
