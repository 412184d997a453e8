package invoice

import (
	"encoding/json"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

func sampleRecord() Record {
	var r Record
	payload := `{
		"vendor_name": "Acme Co",
		"invoice_number": "INV-1",
		"date": "2024-01-15",
		"subtotal": 100,
		"tax": 23.45,
		"total": 123.45,
		"currency": "USD",
		"paid": false,
		"line_items": [
			{"description": "Widget", "amount": 100},
			{"description": "Gadget", "quantity": 2, "unit_price": 11.725, "amount": 23.45, "sku": "G-2"}
		]
	}`
	Expect(json.Unmarshal([]byte(payload), &r)).To(Succeed())
	return r
}

var _ = ginkgo.Describe("NewForm", func() {
	var form Form

	ginkgo.BeforeEach(func() {
		form = NewForm(sampleRecord())
	})

	ginkgo.It("should render every known field as text", func() {
		Expect(form.VendorName).To(Equal("Acme Co"))
		Expect(form.InvoiceNumber).To(Equal("INV-1"))
		Expect(form.Date).To(Equal("2024-01-15"))
		Expect(form.DueDate).To(BeEmpty())
		Expect(form.Subtotal).To(Equal("100"))
		Expect(form.Tax).To(Equal("23.45"))
		Expect(form.Total).To(Equal("123.45"))
	})

	ginkgo.It("should render line items as text rows", func() {
		Expect(form.LineItems).To(HaveLen(2))
		Expect(form.LineItems[0].Description).To(Equal("Widget"))
		Expect(form.LineItems[0].Quantity).To(BeEmpty())
		Expect(form.LineItems[0].Amount).To(Equal("100"))
		Expect(form.LineItems[0].Additional).To(BeNil())
		Expect(form.LineItems[1]).To(MatchFields(IgnoreExtras, Fields{
			"Description": Equal("Gadget"),
			"Quantity":    Equal("2"),
			"UnitPrice":   Equal("11.725"),
			"Amount":      Equal("23.45"),
			"Additional":  Equal(map[string]AdditionalText{"sku": {Value: "G-2", Kind: KindText}}),
		}))
	})

	ginkgo.It("should remember which known fields were present", func() {
		Expect(form.Extracted).To(HaveKeyWithValue(FieldTotal, Number(123.45)))
		Expect(form.Extracted).To(HaveKeyWithValue(FieldVendorName, Text("Acme Co")))
		Expect(form.Extracted).NotTo(HaveKey(FieldDueDate))
		Expect(form.LineItems[0].Extracted).NotTo(HaveKey(ItemQuantity))
	})

	ginkgo.It("should remember the kind of additional fields", func() {
		Expect(form.Additional).To(Equal(map[string]AdditionalText{
			"currency": {Value: "USD", Kind: KindText},
			"paid":     {Value: "false", Kind: KindBool},
		}))
	})

	ginkgo.When("a known field arrived with the wrong type", func() {
		ginkgo.BeforeEach(func() {
			var r Record
			Expect(json.Unmarshal([]byte(`{"invoice_number": 1042, "total": "$1,234.50",
				"line_items": [{"description": "W", "amount": "12.00 USD"}]}`), &r)).To(Succeed())
			form = NewForm(r)
		})

		ginkgo.It("should show the value in the known field", func() {
			Expect(form.InvoiceNumber).To(Equal("1042"))
			Expect(form.Total).To(Equal("$1,234.50"))
			Expect(form.LineItems[0].Amount).To(Equal("12.00 USD"))
			Expect(form.Additional).To(BeEmpty())
		})

		ginkgo.It("should give it back with its original type when untouched", func() {
			r := form.Record()
			Expect(r.InvoiceNumber).To(BeNil())
			Expect(r.Total).To(BeNil())
			Expect(r.Additional).To(Equal(map[string]Value{
				FieldInvoiceNumber: Number(1042),
				FieldTotal:         Text("$1,234.50"),
			}))
			Expect(r.LineItems[0].Amount).To(BeNil())
			Expect(r.LineItems[0].Additional).To(HaveKeyWithValue(ItemAmount, Text("12.00 USD")))

			data, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{"invoice_number": 1042, "total": "$1,234.50",
				"line_items": [{"description": "W", "amount": "12.00 USD"}]}`))
		})

		ginkgo.It("should type the field once it is edited", func() {
			form = SetField(form, FieldInvoiceNumber, "1043")
			form = SetField(form, FieldTotal, "1234.50")
			r := form.Record()
			Expect(r.InvoiceNumber).To(HaveValue(Equal("1043")))
			Expect(r.Total).To(HaveValue(Equal(1234.5)))
			Expect(r.Additional).To(BeEmpty())
		})
	})
})

var _ = ginkgo.Describe("Form.Record", func() {
	ginkgo.It("should give back the original record when nothing was edited", func() {
		original := sampleRecord()
		Expect(NewForm(original).Record()).To(Equal(original))
	})

	ginkgo.It("should treat empty text as absent", func() {
		Expect(Form{}.Record()).To(Equal(Record{}))
	})

	ginkgo.When("a known field arrived as empty text", func() {
		var form Form

		ginkgo.BeforeEach(func() {
			var r Record
			Expect(json.Unmarshal([]byte(`{"vendor_name": "", "total": 5}`), &r)).To(Succeed())
			form = NewForm(r)
		})

		ginkgo.It("should keep it", func() {
			r := form.Record()
			Expect(r.VendorName).To(HaveValue(BeEmpty()))

			data, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{"vendor_name": "", "total": 5}`))
		})

		ginkgo.It("should drop a field the reviewer cleared", func() {
			r := SetField(form, FieldTotal, "").Record()
			Expect(r.Total).To(BeNil())
			Expect(r.Additional).To(BeEmpty())
		})
	})

	ginkgo.It("should keep numeric text that does not parse as text under its key", func() {
		form := SetField(NewForm(sampleRecord()), FieldTotal, "lots")
		r := form.Record()
		Expect(r.Total).To(BeNil())
		Expect(r.Additional).To(HaveKeyWithValue(FieldTotal, Text("lots")))
	})

	ginkgo.It("should keep integers beyond float precision", func() {
		form := SetField(NewForm(sampleRecord()), FieldTotal, "12345678901234567890")
		data, err := json.Marshal(form.Record())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"total":12345678901234567890`))
	})

	ginkgo.It("should fall back to text for additional values that no longer fit their kind", func() {
		form := SetField(NewForm(sampleRecord()), "paid", "not yet")
		Expect(form.Record().Additional["paid"]).To(Equal(Text("not yet")))
	})

	ginkgo.It("should keep the kind of additional values that still fit", func() {
		form := SetField(NewForm(sampleRecord()), "paid", "true")
		Expect(form.Record().Additional["paid"]).To(Equal(Bool(true)))
	})
})

var _ = ginkgo.Describe("Form.Check", func() {
	ginkgo.It("should pass an untouched well typed form", func() {
		Expect(NewForm(sampleRecord()).Check()).To(Succeed())
	})

	ginkgo.It("should report every numeric field that is not a number", func() {
		form := NewForm(sampleRecord())
		form = SetField(form, FieldTotal, "lots")
		form = SetLineItemField(form, 1, ItemAmount, "12,50")

		err := form.Check()
		Expect(err).To(MatchError(ErrNotNumber))
		Expect(err.Error()).To(ContainSubstring(`total: "lots"`))
		Expect(err.Error()).To(ContainSubstring(`line_items[1].amount: "12,50"`))
	})

	ginkgo.It("should pass empty numeric fields", func() {
		form := SetField(NewForm(sampleRecord()), FieldTax, "")
		Expect(form.Check()).To(Succeed())
	})
})

var _ = ginkgo.Describe("SetField", func() {
	var (
		form   Form
		edited Form
	)

	ginkgo.BeforeEach(func() {
		form = NewForm(sampleRecord())
	})

	ginkgo.When("editing a known field", func() {
		ginkgo.JustBeforeEach(func() {
			edited = SetField(form, FieldVendorName, "Acme")
		})

		ginkgo.It("should change only that field", func() {
			expected := form.Clone()
			expected.VendorName = "Acme"
			Expect(edited).To(Equal(expected))
		})

		ginkgo.It("should not modify the input snapshot", func() {
			Expect(form.VendorName).To(Equal("Acme Co"))
		})

		ginkgo.It("should be idempotent", func() {
			Expect(SetField(edited, FieldVendorName, "Acme")).To(Equal(edited))
		})
	})

	ginkgo.When("editing an additional field", func() {
		ginkgo.JustBeforeEach(func() {
			edited = SetField(form, "currency", "EUR")
		})

		ginkgo.It("should not leak into the input's map", func() {
			Expect(edited.Additional["currency"].Value).To(Equal("EUR"))
			Expect(form.Additional["currency"].Value).To(Equal("USD"))
		})
	})

	ginkgo.When("naming a field the form does not have yet", func() {
		ginkgo.JustBeforeEach(func() {
			edited = SetField(form, "reference", "PO-7")
		})

		ginkgo.It("should add it as additional text", func() {
			Expect(edited.Additional["reference"]).To(Equal(AdditionalText{Value: "PO-7", Kind: KindText}))
			Expect(form.Additional).NotTo(HaveKey("reference"))
		})
	})

	ginkgo.When("naming the line item table", func() {
		ginkgo.JustBeforeEach(func() {
			edited = SetField(form, FieldLineItems, "nothing")
		})

		ginkgo.It("should return the form unchanged", func() {
			Expect(edited).To(Equal(form))
		})
	})

	ginkgo.It("should accept text that is not a number without complaint", func() {
		edited = SetField(form, FieldTotal, "about a hundred")
		Expect(edited.Total).To(Equal("about a hundred"))
	})
})

var _ = ginkgo.Describe("SetLineItemField", func() {
	var form Form

	ginkgo.BeforeEach(func() {
		form = NewForm(sampleRecord())
	})

	ginkgo.It("should change one attribute of one row", func() {
		edited := SetLineItemField(form, 1, ItemQuantity, "3")

		expected := form.Clone()
		expected.LineItems[1].Quantity = "3"
		Expect(edited).To(Equal(expected))
		Expect(form.LineItems[1].Quantity).To(Equal("2"))
	})

	ginkgo.It("should keep row order", func() {
		edited := SetLineItemField(form, 0, ItemDescription, "Sprocket")
		Expect(edited.LineItems[0].Description).To(Equal("Sprocket"))
		Expect(edited.LineItems[1].Description).To(Equal("Gadget"))
	})

	ginkgo.It("should store unknown attributes on the row", func() {
		edited := SetLineItemField(form, 0, "sku", "W-1")
		Expect(edited.LineItems[0].Additional).To(HaveKeyWithValue("sku", AdditionalText{Value: "W-1", Kind: KindText}))
		Expect(form.LineItems[0].Additional).To(BeNil())
	})

	ginkgo.DescribeTable("out of range indices",
		func(index int) {
			Expect(SetLineItemField(form, index, ItemAmount, "1")).To(Equal(form))
		},
		ginkgo.Entry("past the end", 2),
		ginkgo.Entry("far past the end", 99),
		ginkgo.Entry("negative", -1),
	)
})

var _ = ginkgo.Describe("AppendLineItem and RemoveLineItem", func() {
	var form Form

	ginkgo.BeforeEach(func() {
		form = NewForm(sampleRecord())
	})

	ginkgo.It("should append an empty row without touching the input", func() {
		edited := AppendLineItem(form)
		Expect(edited.LineItems).To(HaveLen(3))
		Expect(edited.LineItems[2]).To(Equal(LineItemForm{}))
		Expect(form.LineItems).To(HaveLen(2))
	})

	ginkgo.It("should remove the row at index", func() {
		edited := RemoveLineItem(form, 0)
		Expect(edited.LineItems).To(HaveLen(1))
		Expect(edited.LineItems[0].Description).To(Equal("Gadget"))
		Expect(form.LineItems[0].Description).To(Equal("Widget"))
	})

	ginkgo.It("should ignore an index outside the table", func() {
		Expect(RemoveLineItem(form, 5)).To(Equal(form))
	})
})
