package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

// dateFormats are the layouts a model sometimes answers with instead of YYYY-MM-DD
var dateFormats = []string{
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// parseInvoiceJSON parses the JSON object out of a model's response
func parseInvoiceJSON(text string) (invoice.Record, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return invoice.Record{}, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return invoice.Record{}, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var r invoice.Record
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return invoice.Record{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	r.VendorName = trimmed(r.VendorName)
	r.InvoiceNumber = trimmed(r.InvoiceNumber)
	r.Date = normalizeDate(r.Date)
	r.DueDate = normalizeDate(r.DueDate)

	return r, nil
}

// normalizeDate rewrites a recognised date as YYYY-MM-DD. Anything else is kept as the model
// wrote it so the reviewer can fix it.
func normalizeDate(date *string) *string {
	date = trimmed(date)
	if date == nil {
		return nil
	}
	if d, err := time.Parse("2006-01-02", *date); err == nil {
		return invoice.Ptr(d.Format("2006-01-02"))
	}
	for _, format := range dateFormats {
		if d, err := time.Parse(format, *date); err == nil {
			return invoice.Ptr(d.Format("2006-01-02"))
		}
	}
	return date
}

// trimmed drops surrounding whitespace; blank means absent
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
