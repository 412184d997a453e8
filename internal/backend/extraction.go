package backend

import (
	"time"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

// Extraction is a scanned document and the record taken from it
type Extraction struct {
	ID          string         `json:"id"`
	Hash        string         `json:"hash"` // hex SHA-256 of the document
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Size        int            `json:"size"`
	Record      invoice.Record `json:"record"`
	CreatedAt   time.Time      `json:"created_at"`
}
