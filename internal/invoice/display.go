package invoice

import (
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
)

// Field is a named additional value prepared for display
type Field struct {
	Key   string
	Label string
	Value Value
}

// AdditionalKeys returns the keys of the additional fields in lexical order
func (r Record) AdditionalKeys() []string {
	return sortedKeys(r.Additional)
}

// VisibleAdditional returns the non-empty additional fields in lexical key order
func (r Record) VisibleAdditional() []Field {
	fields := make([]Field, 0, len(r.Additional))
	for _, key := range r.AdditionalKeys() {
		v := r.Additional[key]
		if v.IsEmpty() {
			continue
		}
		fields = append(fields, Field{Key: key, Label: Label(key), Value: v})
	}
	return fields
}

// InvoiceNumberText returns the invoice number as text. A number the backend sent with the
// wrong type (say 1042 instead of "1042") still counts.
func (r Record) InvoiceNumberText() string {
	if r.InvoiceNumber != nil {
		return *r.InvoiceNumber
	}
	if v, ok := r.Additional[FieldInvoiceNumber]; ok {
		switch v.Kind() {
		case KindText, KindNumber:
			return v.String()
		}
	}
	return ""
}

// Label turns a field key into a human label: "payment_terms" and "paymentTerms" both
// become "Payment terms".
func Label(key string) string {
	var words []string
	for _, part := range strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	}) {
		for _, w := range camelcase.Split(part) {
			if strings.TrimSpace(w) == "" {
				continue
			}
			words = append(words, strings.ToLower(w))
		}
	}
	if len(words) == 0 {
		return key
	}

	label := strings.Join(words, " ")
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
