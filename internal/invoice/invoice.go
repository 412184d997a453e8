package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Known JSON keys of an extraction result
const (
	FieldVendorName    = "vendor_name"
	FieldInvoiceNumber = "invoice_number"
	FieldDate          = "date"
	FieldDueDate       = "due_date"
	FieldSubtotal      = "subtotal"
	FieldTax           = "tax"
	FieldTotal         = "total"
	FieldLineItems     = "line_items"
)

// Known JSON keys of a line item
const (
	ItemDescription = "description"
	ItemQuantity    = "quantity"
	ItemUnitPrice   = "unit_price"
	ItemAmount      = "amount"
)

// KnownFields lists the top-level keys with a fixed meaning, in display order
var KnownFields = []string{
	FieldVendorName,
	FieldInvoiceNumber,
	FieldDate,
	FieldDueDate,
	FieldSubtotal,
	FieldTax,
	FieldTotal,
	FieldLineItems,
}

var lineItemFields = []string{ItemDescription, ItemQuantity, ItemUnitPrice, ItemAmount}

// Record is one extraction result. Known fields are typed and optional; everything else the
// backend returned is kept in Additional under its original key.
//
// A known key whose JSON type does not match (an invoice number sent as a number, a total
// sent as a string) is stored in Additional instead, so nothing the backend sent is lost.
type Record struct {
	VendorName    *string
	InvoiceNumber *string
	Date          *string
	DueDate       *string
	Subtotal      *float64
	Tax           *float64
	Total         *float64
	// LineItems is nil when the backend sent no line items
	LineItems  []LineItem
	Additional map[string]Value
}

// LineItem is one row of an invoice's itemized charges
type LineItem struct {
	Description *string
	Quantity    *float64
	UnitPrice   *float64
	// Amount is the line's extended total
	Amount     *float64
	Additional map[string]Value
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// DisplayQuantity returns the quantity shown for a row; an absent quantity reads as 1
func (li LineItem) DisplayQuantity() float64 {
	if li.Quantity == nil {
		return 1
	}
	return *li.Quantity
}

// Clone returns a deep copy of r
func (r Record) Clone() Record {
	out := r
	out.VendorName = clonePtr(r.VendorName)
	out.InvoiceNumber = clonePtr(r.InvoiceNumber)
	out.Date = clonePtr(r.Date)
	out.DueDate = clonePtr(r.DueDate)
	out.Subtotal = clonePtr(r.Subtotal)
	out.Tax = clonePtr(r.Tax)
	out.Total = clonePtr(r.Total)
	out.Additional = cloneValues(r.Additional)
	if r.LineItems != nil {
		out.LineItems = make([]LineItem, len(r.LineItems))
		for i, li := range r.LineItems {
			out.LineItems[i] = LineItem{
				Description: clonePtr(li.Description),
				Quantity:    clonePtr(li.Quantity),
				UnitPrice:   clonePtr(li.UnitPrice),
				Amount:      clonePtr(li.Amount),
				Additional:  cloneValues(li.Additional),
			}
		}
	}
	return out
}

// Validate reports structural problems a consumer may care about. Decoding never fails on
// these; they only surface when asked for.
func (r Record) Validate() error {
	var errs []error
	for i, li := range r.LineItems {
		if li.Description == nil || *li.Description == "" {
			errs = append(errs, &FieldError{Field: itemPath(i, ItemDescription), Err: ErrMissing})
		}
		if li.Amount == nil {
			errs = append(errs, &FieldError{Field: itemPath(i, ItemAmount), Err: ErrMissing})
		}
	}
	return errors.Join(errs...)
}

// MarshalJSON writes known fields first, in KnownFields order, then additional fields in
// lexical key order. A known field that is set wins over an additional entry with its key.
func (r Record) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()

	w.stringField(FieldVendorName, r.VendorName)
	w.stringField(FieldInvoiceNumber, r.InvoiceNumber)
	w.stringField(FieldDate, r.Date)
	w.stringField(FieldDueDate, r.DueDate)
	w.numberField(FieldSubtotal, r.Subtotal)
	w.numberField(FieldTax, r.Tax)
	w.numberField(FieldTotal, r.Total)
	if r.LineItems != nil {
		w.field(FieldLineItems, r.LineItems)
	}
	w.additional(r.Additional)

	return w.close()
}

// UnmarshalJSON decodes any JSON object. It fails only when data is not an object.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding invoice record: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("decoding invoice record: not an object")
	}

	var out Record
	extra := make(map[string]Value)

	for key, raw := range fields {
		var ok bool
		switch key {
		case FieldVendorName:
			out.VendorName, ok = decodeString(raw)
		case FieldInvoiceNumber:
			out.InvoiceNumber, ok = decodeString(raw)
		case FieldDate:
			out.Date, ok = decodeString(raw)
		case FieldDueDate:
			out.DueDate, ok = decodeString(raw)
		case FieldSubtotal:
			out.Subtotal, ok = decodeNumber(raw)
		case FieldTax:
			out.Tax, ok = decodeNumber(raw)
		case FieldTotal:
			out.Total, ok = decodeNumber(raw)
		case FieldLineItems:
			out.LineItems, ok = decodeLineItems(raw)
		}
		if ok {
			continue
		}

		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("decoding field %q: %w", key, err)
		}
		extra[key] = v
	}

	if len(extra) > 0 {
		out.Additional = extra
	}
	*r = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (li LineItem) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.stringField(ItemDescription, li.Description)
	w.numberField(ItemQuantity, li.Quantity)
	w.numberField(ItemUnitPrice, li.UnitPrice)
	w.numberField(ItemAmount, li.Amount)
	w.additional(li.Additional)
	return w.close()
}

// UnmarshalJSON implements json.Unmarshaler
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding line item: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("decoding line item: not an object")
	}

	var out LineItem
	extra := make(map[string]Value)

	for key, raw := range fields {
		var ok bool
		switch key {
		case ItemDescription:
			out.Description, ok = decodeString(raw)
		case ItemQuantity:
			out.Quantity, ok = decodeNumber(raw)
		case ItemUnitPrice:
			out.UnitPrice, ok = decodeNumber(raw)
		case ItemAmount:
			out.Amount, ok = decodeNumber(raw)
		}
		if ok {
			continue
		}

		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("decoding line item field %q: %w", key, err)
		}
		extra[key] = v
	}

	if len(extra) > 0 {
		out.Additional = extra
	}
	*li = out
	return nil
}

// decodeString accepts a JSON string or null (absent)
func decodeString(raw json.RawMessage) (*string, bool) {
	if isNull(raw) {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// decodeNumber accepts a JSON number or null (absent). Numeric strings are not coerced, and
// a literal float64 cannot hold exactly is left for Additional.
func decodeNumber(raw json.RawMessage) (*float64, bool) {
	if isNull(raw) {
		return nil, true
	}
	v, err := numberLiteral(bytes.TrimSpace(raw))
	if err != nil || !v.exact() {
		return nil, false
	}
	f, _ := v.AsNumber()
	return &f, true
}

// decodeLineItems accepts an array of objects; anything else is left for Additional
func decodeLineItems(raw json.RawMessage) ([]LineItem, bool) {
	if isNull(raw) {
		return nil, true
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	items := make([]LineItem, 0, len(elems))
	for _, elem := range elems {
		var li LineItem
		if err := json.Unmarshal(elem, &li); err != nil {
			return nil, false
		}
		items = append(items, li)
	}
	return items, true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneValues(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, v := range m {
		if v.kind == KindRaw {
			v.raw = append(json.RawMessage(nil), v.raw...)
		}
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itemPath(index int, field string) string {
	return fmt.Sprintf("%s[%d].%s", FieldLineItems, index, field)
}

// objectWriter builds a JSON object with a fixed key order
type objectWriter struct {
	buf  bytes.Buffer
	seen map[string]bool
	err  error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{seen: make(map[string]bool)}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v any) {
	if w.err != nil || w.seen[key] {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("encoding field %q: %w", key, err)
		return
	}
	if len(w.seen) > 0 {
		w.buf.WriteByte(',')
	}
	name, _ := json.Marshal(key)
	w.buf.Write(name)
	w.buf.WriteByte(':')
	w.buf.Write(data)
	w.seen[key] = true
}

func (w *objectWriter) stringField(key string, v *string) {
	if v != nil {
		w.field(key, *v)
	}
}

func (w *objectWriter) numberField(key string, v *float64) {
	if v != nil {
		w.field(key, *v)
	}
}

func (w *objectWriter) additional(m map[string]Value) {
	for _, key := range sortedKeys(m) {
		w.field(key, m[key])
	}
}

func (w *objectWriter) close() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
