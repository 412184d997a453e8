package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-scanner/internal/extraction"
	"github.com/zombor/invoice-scanner/internal/review"
	"github.com/zombor/invoice-scanner/internal/workflow"
)

func newReviewCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("review").SetParent(root.flags)
	var (
		port       = fs.IntLong("port", 8080, "HTTP server port")
		backendURL = fs.StringLong("backend-url", "http://localhost:8000", "Extraction backend base URL")
		timeout    = fs.DurationLong("timeout", 2*time.Minute, "Extraction request timeout")
		authUser   = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass   = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "review",
		Usage:     "invoice-scanner review [FLAGS]",
		ShortHelp: "serve the upload, review, and export workflow",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}

			client := extraction.NewClient(*backendURL, *timeout)
			checkBackend(ctx, client, *backendURL)

			controller := workflow.NewController(client)
			controller.Observe(func(s workflow.Snapshot) {
				slog.Debug("Workflow state", "state", s.State, "generation", s.Generation, "candidate", s.Candidate)
			})

			server := review.NewServer(ctx, controller, review.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "backend", *backendURL)
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

// checkBackend logs whether the backend answers; an unreachable backend is not fatal
func checkBackend(ctx context.Context, client *extraction.Client, url string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := client.Health(ctx)
	if err != nil {
		slog.Warn("Extraction backend is not reachable", "url", url, "error", err)
		return
	}
	slog.Info("Extraction backend is up", "url", url, "status", status.Status, "version", status.Version)
}
