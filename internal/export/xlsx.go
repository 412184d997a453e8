package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

const (
	invoiceSheet   = "Invoice"
	lineItemsSheet = "Line Items"
)

// workbook writes the record as a two-sheet XLSX file: one row per field on "Invoice", one
// row per line item on "Line Items"
func workbook(record invoice.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	row := 1
	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(invoiceSheet, 1, row, "Field")
	write(invoiceSheet, 2, row, "Value")
	row++

	fields := []struct {
		key   string
		value any
	}{
		{invoice.FieldVendorName, deref(record.VendorName)},
		{invoice.FieldInvoiceNumber, deref(record.InvoiceNumber)},
		{invoice.FieldDate, deref(record.Date)},
		{invoice.FieldDueDate, deref(record.DueDate)},
		{invoice.FieldSubtotal, deref(record.Subtotal)},
		{invoice.FieldTax, deref(record.Tax)},
		{invoice.FieldTotal, deref(record.Total)},
	}
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		write(invoiceSheet, 1, row, invoice.Label(field.key))
		write(invoiceSheet, 2, row, field.value)
		row++
	}
	for _, field := range record.VisibleAdditional() {
		write(invoiceSheet, 1, row, field.Label)
		write(invoiceSheet, 2, row, cellValue(field.Value))
		row++
	}
	_ = f.SetColWidth(invoiceSheet, "A", "A", 24)
	_ = f.SetColWidth(invoiceSheet, "B", "B", 48)

	extra := itemKeys(record.LineItems)
	headers := append([]string{"Description", "Quantity", "Unit Price", "Amount"}, labels(extra)...)
	for i, h := range headers {
		write(lineItemsSheet, i+1, 1, h)
	}
	for i, li := range record.LineItems {
		row := i + 2
		write(lineItemsSheet, 1, row, deref(li.Description))
		write(lineItemsSheet, 2, row, li.DisplayQuantity())
		write(lineItemsSheet, 3, row, deref(li.UnitPrice))
		write(lineItemsSheet, 4, row, deref(li.Amount))
		for j, key := range extra {
			if v, ok := li.Additional[key]; ok {
				write(lineItemsSheet, 5+j, row, cellValue(v))
			}
		}
	}
	_ = f.SetColWidth(lineItemsSheet, "A", "A", 40)
	_ = f.SetColWidth(lineItemsSheet, "B", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// deref returns nil for a nil pointer so the cell stays empty
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func cellValue(v invoice.Value) any {
	if n, ok := v.AsNumber(); ok {
		return n
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	return v.String()
}

func itemKeys(items []invoice.LineItem) []string {
	seen := make(map[string]struct{})
	for _, li := range items {
		for k := range li.Additional {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labels(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = invoice.Label(k)
	}
	return out
}
