package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-scanner/internal/export"
	"github.com/zombor/invoice-scanner/internal/extraction"
	"github.com/zombor/invoice-scanner/internal/render"
	"github.com/zombor/invoice-scanner/internal/upload"
	"github.com/zombor/invoice-scanner/internal/workflow"
)

func newExtractCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("extract").SetParent(root.flags)
	var (
		backendURL = fs.StringLong("backend-url", "http://localhost:8000", "Extraction backend base URL")
		timeout    = fs.DurationLong("timeout", 2*time.Minute, "Extraction request timeout")
		outputDir  = fs.StringLong("output", ".", "Directory to write exports to")
		formats    = fs.StringLong("format", "json", "Comma separated export formats: json, xlsx")
		quiet      = fs.BoolLong("quiet", "Do not print the invoice summary")
		strict     = fs.BoolLong("strict", "Fail when a numeric field is not a number")
	)

	return &ff.Command{
		Name:      "extract",
		Usage:     "invoice-scanner extract [FLAGS] FILE",
		ShortHelp: "extract one invoice and export it",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}
			if len(args) != 1 {
				return fmt.Errorf("extract takes exactly one FILE argument")
			}

			var exportFormats []export.Format
			for _, name := range strings.Split(*formats, ",") {
				format, err := export.ParseFormat(strings.TrimSpace(name))
				if err != nil {
					return err
				}
				exportFormats = append(exportFormats, format)
			}

			store, err := export.NewLocalStorage(*outputDir)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}

			controller := workflow.NewController(extraction.NewClient(*backendURL, *timeout))
			if !*quiet {
				controller.Observe(func(s workflow.Snapshot) {
					fmt.Fprintln(os.Stderr, render.Status(s))
				})
			}

			return extractFile(ctx, controller, store, args[0], exportFormats, *quiet, *strict)
		},
	}
}

// extractFile runs one document through the workflow and writes each export
func extractFile(ctx context.Context, controller *workflow.Controller, store export.Storage, path string, formats []export.Format, quiet, strict bool) error {
	candidate, err := upload.FromFile(path)
	if err != nil {
		return err
	}
	if _, err := controller.Select(candidate); err != nil {
		return err
	}

	if err := controller.Submit(ctx); err != nil {
		var netErr *extraction.NetworkError
		if errors.As(err, &netErr) {
			slog.Debug("Backend unreachable", "error", netErr.Err)
		}
		if msg := controller.State().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}

	snapshot := controller.State()
	if !quiet {
		fmt.Println(render.Invoice(*snapshot.Record))
	}

	for _, format := range formats {
		exportFn := controller.Export
		if strict {
			exportFn = controller.ExportStrict
		}
		artifact, err := exportFn(format)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", format, err)
		}
		if format == export.FormatJSON {
			if err := export.Validate(artifact.Data); err != nil {
				slog.Warn("Exported invoice does not match schema", "file", artifact.FileName, "error", err)
			}
		}
		saved, err := store.Save(artifact)
		if err != nil {
			return fmt.Errorf("saving %s: %w", artifact.FileName, err)
		}
		slog.Info("Exported invoice", "path", saved, "bytes", len(artifact.Data))
	}
	return nil
}
