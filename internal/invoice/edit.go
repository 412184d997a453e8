package invoice

// SetField returns a copy of form with exactly one top-level field replaced. A name that is
// neither known nor already additional becomes a new additional text field. line_items is
// not a text field; naming it returns form unchanged.
//
// No parsing happens here. The editor accepts any text; Form.Record is where numbers are
// checked.
func SetField(form Form, name, text string) Form {
	if name == FieldLineItems {
		return form
	}

	out := form.Clone()
	switch name {
	case FieldVendorName:
		out.VendorName = text
	case FieldInvoiceNumber:
		out.InvoiceNumber = text
	case FieldDate:
		out.Date = text
	case FieldDueDate:
		out.DueDate = text
	case FieldSubtotal:
		out.Subtotal = text
	case FieldTax:
		out.Tax = text
	case FieldTotal:
		out.Total = text
	default:
		out.Additional = setAdditional(out.Additional, name, text)
	}
	return out
}

// SetLineItemField returns a copy of form with one attribute of the line item at index
// replaced. An index outside the table returns form unchanged: indices come from the rendered
// table, and a stale one is not an error worth surfacing.
func SetLineItemField(form Form, index int, name, text string) Form {
	if index < 0 || index >= len(form.LineItems) {
		return form
	}

	out := form.Clone()
	row := &out.LineItems[index]
	switch name {
	case ItemDescription:
		row.Description = text
	case ItemQuantity:
		row.Quantity = text
	case ItemUnitPrice:
		row.UnitPrice = text
	case ItemAmount:
		row.Amount = text
	default:
		row.Additional = setAdditional(row.Additional, name, text)
	}
	return out
}

// AppendLineItem returns a copy of form with an empty row added at the end
func AppendLineItem(form Form) Form {
	out := form.Clone()
	out.LineItems = append(out.LineItems, LineItemForm{})
	return out
}

// RemoveLineItem returns a copy of form without the row at index; out of range is a no-op
func RemoveLineItem(form Form, index int) Form {
	if index < 0 || index >= len(form.LineItems) {
		return form
	}

	out := form.Clone()
	out.LineItems = append(out.LineItems[:index], out.LineItems[index+1:]...)
	return out
}

// setAdditional writes text into m (which must already be a private copy), keeping the
// remembered kind of an existing entry
func setAdditional(m map[string]AdditionalText, name, text string) map[string]AdditionalText {
	if m == nil {
		m = make(map[string]AdditionalText)
	}
	entry, ok := m[name]
	if !ok {
		entry.Kind = KindText
	}
	entry.Value = text
	m[name] = entry
	return m
}
