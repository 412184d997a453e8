package invoice

import (
	"errors"
	"maps"
	"strconv"
	"strings"
)

// Form is the editable projection of a Record. Every value is text, because the review
// surface accepts free-form input; types come back only through Form.Record.
//
// A Form is a snapshot. The edit functions never modify their input; each returns a new
// Form that shares no slices or maps with the old one.
type Form struct {
	VendorName    string                    `json:"vendor_name"`
	InvoiceNumber string                    `json:"invoice_number"`
	Date          string                    `json:"date"`
	DueDate       string                    `json:"due_date"`
	Subtotal      string                    `json:"subtotal"`
	Tax           string                    `json:"tax"`
	Total         string                    `json:"total"`
	LineItems     []LineItemForm            `json:"line_items"`
	Additional    map[string]AdditionalText `json:"additional,omitempty"`

	// Extracted holds the value each known field had in the source record, keyed by field
	// name. A key is present only if the record had that field.
	Extracted map[string]Value `json:"-"`
}

// LineItemForm is one editable line item row
type LineItemForm struct {
	Description string                    `json:"description"`
	Quantity    string                    `json:"quantity"`
	UnitPrice   string                    `json:"unit_price"`
	Amount      string                    `json:"amount"`
	Additional  map[string]AdditionalText `json:"additional,omitempty"`

	Extracted map[string]Value `json:"-"`
}

// AdditionalText is an additional field as text, remembering the kind it was decoded as so
// an untouched value converts back to the same type
type AdditionalText struct {
	Value string `json:"value"`
	Kind  Kind   `json:"kind"`
}

// NewForm projects r into an editable Form. Additional values stored under a known key
// (a mistyped known field) are moved into that known field's text; the value itself is
// kept in Extracted so an untouched field exports exactly as it arrived.
func NewForm(r Record) Form {
	f := Form{LineItems: make([]LineItemForm, 0, len(r.LineItems))}
	p := newProjection(r.Additional)

	f.VendorName = p.text(FieldVendorName, r.VendorName)
	f.InvoiceNumber = p.text(FieldInvoiceNumber, r.InvoiceNumber)
	f.Date = p.text(FieldDate, r.Date)
	f.DueDate = p.text(FieldDueDate, r.DueDate)
	f.Subtotal = p.number(FieldSubtotal, r.Subtotal)
	f.Tax = p.number(FieldTax, r.Tax)
	f.Total = p.number(FieldTotal, r.Total)

	for _, li := range r.LineItems {
		ip := newProjection(li.Additional)
		row := LineItemForm{
			Description: ip.text(ItemDescription, li.Description),
			Quantity:    ip.number(ItemQuantity, li.Quantity),
			UnitPrice:   ip.number(ItemUnitPrice, li.UnitPrice),
			Amount:      ip.number(ItemAmount, li.Amount),
		}
		row.Additional = toAdditionalText(ip.extra)
		row.Extracted = ip.extracted
		f.LineItems = append(f.LineItems, row)
	}

	// A mistyped line_items value has no row shape; it stays an additional field
	f.Additional = toAdditionalText(p.extra)
	f.Extracted = p.extracted
	return f
}

// Record converts the form back to a Record. It never fails:
//   - a known field whose text still reads as extracted gets its extracted value back,
//     with its original type;
//   - empty text is absent;
//   - numeric text that does not parse is kept as text in Additional under the field's key.
//
// Use Check first when every numeric field must be a number.
func (f Form) Record() Record {
	rd := newReader(f.Extracted)
	r := Record{
		VendorName:    rd.text(FieldVendorName, f.VendorName),
		InvoiceNumber: rd.text(FieldInvoiceNumber, f.InvoiceNumber),
		Date:          rd.text(FieldDate, f.Date),
		DueDate:       rd.text(FieldDueDate, f.DueDate),
		Subtotal:      rd.number(FieldSubtotal, f.Subtotal),
		Tax:           rd.number(FieldTax, f.Tax),
		Total:         rd.number(FieldTotal, f.Total),
		Additional:    rd.merge(fromAdditionalText(f.Additional)),
	}

	if len(f.LineItems) > 0 {
		r.LineItems = make([]LineItem, len(f.LineItems))
		for i, row := range f.LineItems {
			ird := newReader(row.Extracted)
			r.LineItems[i] = LineItem{
				Description: ird.text(ItemDescription, row.Description),
				Quantity:    ird.number(ItemQuantity, row.Quantity),
				UnitPrice:   ird.number(ItemUnitPrice, row.UnitPrice),
				Amount:      ird.number(ItemAmount, row.Amount),
			}
			r.LineItems[i].Additional = ird.merge(fromAdditionalText(row.Additional))
		}
	}
	return r
}

// Check reports every known numeric field whose text is not a number, as joined
// *FieldErrors. Empty text passes.
func (f Form) Check() error {
	var errs []error
	check := func(field, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		if _, ok := parseNumberText(text); !ok {
			errs = append(errs, &FieldError{Field: field, Text: text, Err: ErrNotNumber})
		}
	}

	check(FieldSubtotal, f.Subtotal)
	check(FieldTax, f.Tax)
	check(FieldTotal, f.Total)
	for i, row := range f.LineItems {
		check(itemPath(i, ItemQuantity), row.Quantity)
		check(itemPath(i, ItemUnitPrice), row.UnitPrice)
		check(itemPath(i, ItemAmount), row.Amount)
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of f
func (f Form) Clone() Form {
	out := f
	out.Additional = maps.Clone(f.Additional)
	out.Extracted = maps.Clone(f.Extracted)
	if f.LineItems != nil {
		out.LineItems = make([]LineItemForm, len(f.LineItems))
		for i, row := range f.LineItems {
			row.Additional = maps.Clone(row.Additional)
			row.Extracted = maps.Clone(row.Extracted)
			out.LineItems[i] = row
		}
	}
	return out
}

// projection collects the text of known fields and remembers what they held
type projection struct {
	extra     map[string]Value
	extracted map[string]Value
}

func newProjection(additional map[string]Value) *projection {
	return &projection{extra: cloneValues(additional)}
}

func (p *projection) text(key string, v *string) string {
	if v != nil {
		p.remember(key, Text(*v))
		return *v
	}
	return p.take(key)
}

func (p *projection) number(key string, v *float64) string {
	if v != nil {
		n := Number(*v)
		p.remember(key, n)
		return n.String()
	}
	return p.take(key)
}

// take moves a mistyped known value out of the additional fields
func (p *projection) take(key string) string {
	v, ok := p.extra[key]
	if !ok {
		return ""
	}
	delete(p.extra, key)
	p.remember(key, v)
	return v.String()
}

func (p *projection) remember(key string, v Value) {
	if p.extracted == nil {
		p.extracted = make(map[string]Value)
	}
	p.extracted[key] = v
}

// reader turns known field text back into typed values. Values that do not fit the
// field's type are set aside for Additional.
type reader struct {
	extracted map[string]Value
	aside     map[string]Value
}

func newReader(extracted map[string]Value) *reader {
	return &reader{extracted: extracted}
}

// unchanged returns the extracted value of key when text still reads as it
func (rd *reader) unchanged(key, text string) (Value, bool) {
	v, ok := rd.extracted[key]
	if !ok || v.String() != text {
		return Value{}, false
	}
	return v, true
}

func (rd *reader) text(key, text string) *string {
	if v, ok := rd.unchanged(key, text); ok {
		if s, isText := v.AsText(); isText {
			return &s
		}
		rd.setAside(key, v)
		return nil
	}
	if text == "" {
		return nil
	}
	return &text
}

func (rd *reader) number(key, text string) *float64 {
	v, ok := rd.unchanged(key, text)
	if !ok {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if v, ok = parseNumberText(text); !ok {
			rd.setAside(key, Text(text))
			return nil
		}
	}
	if f, isNumber := v.AsNumber(); isNumber && v.exact() {
		return &f
	}
	rd.setAside(key, v)
	return nil
}

func (rd *reader) setAside(key string, v Value) {
	if rd.aside == nil {
		rd.aside = make(map[string]Value)
	}
	rd.aside[key] = v
}

// merge adds the set-aside values to m, which must be a private copy or nil
func (rd *reader) merge(m map[string]Value) map[string]Value {
	if len(rd.aside) == 0 {
		return m
	}
	if m == nil {
		m = make(map[string]Value, len(rd.aside))
	}
	for k, v := range rd.aside {
		m[k] = v
	}
	return m
}

func toAdditionalText(m map[string]Value) map[string]AdditionalText {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]AdditionalText, len(m))
	for k, v := range m {
		out[k] = AdditionalText{Value: v.String(), Kind: v.Kind()}
	}
	return out
}

func fromAdditionalText(m map[string]AdditionalText) map[string]Value {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, t := range m {
		out[k] = t.value()
	}
	return out
}

// value converts the text back using the remembered kind. Additional fields have no
// schema, so text that no longer fits its kind simply becomes text.
func (t AdditionalText) value() Value {
	switch t.Kind {
	case KindNumber:
		if v, ok := parseNumberText(t.Value); ok {
			return v
		}
	case KindBool:
		if b, err := strconv.ParseBool(strings.TrimSpace(t.Value)); err == nil {
			return Bool(b)
		}
	case KindRaw:
		trimmed := strings.TrimSpace(t.Value)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if v, err := Raw([]byte(t.Value)); err == nil {
				return v
			}
		}
	case KindNull:
		if t.Value == "" {
			return Null()
		}
	}
	return Text(t.Value)
}
