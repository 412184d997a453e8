package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-scanner/internal/scanning"
)

// IDGenerator generates unique IDs for extractions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service scans invoices, remembering each result by document content
type Service struct {
	db          DB
	scanner     scanning.Scanner
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessInvoice scans a document, or returns the earlier result for identical content
func (s *Service) ProcessInvoice(ctx context.Context, filename string, data []byte, contentType string) (*Extraction, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	cached, err := s.db.GetExtraction(hash)
	switch {
	case err == nil:
		slog.Info("Using cached extraction", "filename", filename, "hash", hash, "id", cached.ID)
		return cached, nil
	case !errors.Is(err, ErrNotFound):
		slog.Warn("Failed to read extraction cache", "hash", hash, "error", err)
	}

	record, err := s.scanner.ScanInvoice(ctx, scanning.Document{Name: filename, MediaType: contentType, Data: data})
	if err != nil {
		slog.Error("Failed to scan invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}

	extraction := &Extraction{
		ID:          s.idGenerator.Generate(),
		Hash:        hash,
		Filename:    filename,
		ContentType: contentType,
		Size:        len(data),
		Record:      record,
		CreatedAt:   s.timeSource.Now(),
	}

	if err := s.db.SaveExtraction(extraction); err != nil {
		slog.Warn("Failed to cache extraction", "hash", hash, "error", err)
	}

	return extraction, nil
}

// ListExtractions returns every cached extraction
func (s *Service) ListExtractions() ([]*Extraction, error) {
	extractions, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	return extractions, nil
}

// ForgetExtraction drops a cached result so the next upload of that document is rescanned
func (s *Service) ForgetExtraction(hash string) error {
	if _, err := s.db.GetExtraction(hash); err != nil {
		return fmt.Errorf("getting extraction for deletion: %w", err)
	}
	if err := s.db.DeleteExtraction(hash); err != nil {
		return fmt.Errorf("deleting extraction: %w", err)
	}
	return nil
}
