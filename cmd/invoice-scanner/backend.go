package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-scanner/internal/backend"
	"github.com/zombor/invoice-scanner/internal/scanning"
)

func newBackendCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("backend").SetParent(root.flags)
	var (
		port        = fs.IntLong("port", 8000, "HTTP server port")
		dbPath      = fs.StringLong("db", "invoice-scanner.db", "Extraction cache file path")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "backend",
		Usage:     "invoice-scanner backend [FLAGS]",
		ShortHelp: "serve the extraction backend",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}

			// Initialize database
			slog.Info("Initializing extraction cache...", "path", *dbPath)
			db, err := backend.NewBoltDB(*dbPath)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			defer db.Close()

			scanner, err := newScanner(ctx, *scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
			if err != nil {
				return err
			}
			defer scanner.Close()

			service := backend.NewService(db, scanner)
			basicAuth := backend.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			}
			server := backend.NewServer(service, basicAuth, version)

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			select {
			case err := <-errc:
				return fmt.Errorf("serving: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down...")
				return nil
			}
		},
	}
}

// newScanner builds the configured scanner
func newScanner(ctx context.Context, scannerType, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Scanner, error) {
	switch scannerType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", geminiModel)
		scanner, err := scanning.NewGemini(ctx, apiKey, geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini: %w", err)
		}
		return scanner, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", ollamaURL, "model", ollamaModel)
		scanner, err := scanning.NewOllama(ollamaURL, ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Ollama: %w", err)
		}
		return scanner, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: use gemini or ollama", scannerType)
	}
}
