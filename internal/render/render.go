package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zombor/invoice-scanner/internal/invoice"
	"github.com/zombor/invoice-scanner/internal/workflow"
)

const notAvailable = "N/A"

var (
	accent  = lipgloss.Color("#4F46E5") // indigo
	fg      = lipgloss.Color("#E8E6E3")
	dim     = lipgloss.Color("#6B7280")
	faint   = lipgloss.Color("#3F3F46")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	labelStyle    = lipgloss.NewStyle().Foreground(dim).Width(12)
	valueStyle    = lipgloss.NewStyle().Foreground(fg)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	totalStyle    = lipgloss.NewStyle().Bold(true).Foreground(success)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	numberStyle   = cellStyle.Align(lipgloss.Right)
	tableHeader   = cellStyle.Bold(true).Foreground(dim)
	separatorLine = lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("─", 56))

	printer = message.NewPrinter(language.AmericanEnglish)
)

// Invoice renders a record the way the review screen lays it out: the basics, the line
// item table with totals, then any additional information.
func Invoice(record invoice.Record) string {
	var b strings.Builder

	basics := []string{
		field("Vendor", text(record.VendorName)),
		field("Invoice #", orNA(record.InvoiceNumberText())),
		field("Date", Date(record.Date)),
		field("Due Date", Date(record.DueDate)),
	}
	b.WriteString(boxStyle.Render(headerStyle.Render("Invoice Details") + "\n\n" + strings.Join(basics, "\n")))
	b.WriteString("\n")

	if len(record.LineItems) > 0 {
		b.WriteString("\n")
		b.WriteString(lineItems(record))
		b.WriteString("\n")
	}

	if extra := record.VisibleAdditional(); len(extra) > 0 {
		b.WriteString("\n  " + separatorLine + "\n\n")
		b.WriteString("  " + titleStyle.Render("Additional Information") + "\n")
		for _, f := range extra {
			b.WriteString("  " + field(f.Label, f.Value.String()) + "\n")
		}
	}

	if err := record.Validate(); err != nil {
		b.WriteString("\n")
		for _, line := range strings.Split(err.Error(), "\n") {
			b.WriteString("  " + warnStyle.Render("! "+line) + "\n")
		}
	}

	return b.String()
}

func lineItems(record invoice.Record) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		Headers("Description", "Qty", "Unit Price", "Amount").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeader
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})

	for _, li := range record.LineItems {
		t.Row(
			text(li.Description),
			invoice.Number(li.DisplayQuantity()).String(),
			Currency(li.UnitPrice),
			Currency(li.Amount),
		)
	}

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(totalLine("Subtotal", Currency(record.Subtotal), dimStyle))
	// A zero tax reads as no tax
	if record.Tax != nil && *record.Tax != 0 {
		b.WriteString(totalLine("Tax", Currency(record.Tax), dimStyle))
	}
	b.WriteString(totalLine("Total", Currency(record.Total), totalStyle))
	return b.String()
}

func totalLine(label, value string, style lipgloss.Style) string {
	return fmt.Sprintf("%s %s\n", lipgloss.NewStyle().Width(40).Align(lipgloss.Right).Render(dimStyle.Render(label)), style.Render(value))
}

// Status renders a one-line description of where the workflow is
func Status(s workflow.Snapshot) string {
	switch s.State {
	case workflow.Uploading:
		return dimStyle.Render("Uploading " + s.Candidate + "...")
	case workflow.Processing:
		return dimStyle.Render("Processing invoice...")
	case workflow.Completed:
		return totalStyle.Render("Extracted " + s.Candidate)
	case workflow.Failed:
		return errorStyle.Render("Error: ") + valueStyle.Render(s.Error)
	default:
		if s.ValidationError != "" {
			return errorStyle.Render(s.ValidationError)
		}
		if s.Candidate != "" {
			return dimStyle.Render("Ready to submit " + s.Candidate)
		}
		return dimStyle.Render("Select an invoice to begin")
	}
}

// Currency formats an amount as US dollars; nil reads as N/A
func Currency(amount *float64) string {
	if amount == nil {
		return notAvailable
	}
	if *amount < 0 {
		return printer.Sprintf("-$%.2f", -*amount)
	}
	return printer.Sprintf("$%.2f", *amount)
}

// Date formats an ISO date as "Jan 15, 2024". Anything else is shown as written.
func Date(date *string) string {
	if date == nil || *date == "" {
		return notAvailable
	}
	t, err := time.Parse(time.DateOnly, *date)
	if err != nil {
		return *date
	}
	return t.Format("Jan 2, 2006")
}

func field(label, value string) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(value)
}

func text(s *string) string {
	if s == nil {
		return notAvailable
	}
	return orNA(*s)
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
