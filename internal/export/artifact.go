package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

// Format is an export file format
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	mediaTypeJSON = "application/json"
	mediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseFormat maps a format name to a Format. An empty name means JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// Artifact is a serialized invoice ready to be saved or downloaded
type Artifact struct {
	Data      []byte
	FileName  string
	MediaType string
}

// ToArtifact serializes record in the given format
func ToArtifact(record invoice.Record, format Format) (Artifact, error) {
	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return Artifact{}, fmt.Errorf("encoding invoice: %w", err)
		}
		return Artifact{Data: data, FileName: FileName(record, FormatJSON), MediaType: mediaTypeJSON}, nil
	case FormatXLSX:
		data, err := workbook(record)
		if err != nil {
			return Artifact{}, err
		}
		return Artifact{Data: data, FileName: FileName(record, FormatXLSX), MediaType: mediaTypeXLSX}, nil
	default:
		return Artifact{}, fmt.Errorf("unsupported export format %q", format)
	}
}

// ParseJSON reads a JSON artifact back into a record
func ParseJSON(data []byte) (invoice.Record, error) {
	var r invoice.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return invoice.Record{}, fmt.Errorf("decoding invoice: %w", err)
	}
	return r, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName is "invoice-<invoice number>.<ext>", or "invoice-data.<ext>" without a number
func FileName(record invoice.Record, format Format) string {
	if format == "" {
		format = FormatJSON
	}
	number := unsafeFileChars.ReplaceAllString(strings.TrimSpace(record.InvoiceNumberText()), "_")
	number = strings.Trim(number, "._")
	if number == "" {
		number = "data"
	}
	return fmt.Sprintf("invoice-%s.%s", number, format)
}
