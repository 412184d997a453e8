package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Error loading .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	err := root.ParseAndRun(ctx, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_SCANNER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// rootConfig holds flags shared by every subcommand
type rootConfig struct {
	flags    *ff.FlagSet
	logLevel *string
}

func newRootCommand() *ff.Command {
	cfg := &rootConfig{flags: ff.NewFlagSet("invoice-scanner")}
	cfg.logLevel = cfg.flags.StringLong("log-level", "info", "Log level: debug, info, warn, or error")
	cfg.flags.StringLong("config", "", "Config file with one flag per line (optional)")
	cfg.flags.BoolLong("version", "Show version information")

	return &ff.Command{
		Name:      "invoice-scanner",
		Usage:     "invoice-scanner [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "extract, review, and export invoice data",
		Flags:     cfg.flags,
		Subcommands: []*ff.Command{
			newBackendCommand(cfg),
			newReviewCommand(cfg),
			newExtractCommand(cfg),
		},
	}
}

// setup applies the shared flags once parsing is done
func (cfg *rootConfig) setup() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(*cfg.logLevel)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
