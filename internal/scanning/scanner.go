package scanning

import (
	"context"
	"errors"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

// ErrNoText means nothing readable could be taken from the document
var ErrNoText = errors.New("could not extract text from the provided file")

// Document is an uploaded invoice file
type Document struct {
	Name      string
	MediaType string
	Data      []byte
}

// Scanner defines the interface for invoice scanning operations
type Scanner interface {
	// ScanInvoice analyzes an invoice document and extracts its fields
	ScanInvoice(ctx context.Context, doc Document) (invoice.Record, error)
	// Close closes the scanner and releases resources
	Close() error
}
