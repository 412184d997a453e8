package scanning

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/zombor/invoice-scanner/internal/upload"
)

// invoiceScanPrompt is the shared prompt used by all LLM providers for scanning invoices
const invoiceScanPrompt = `You are analyzing an invoice. Carefully read all of its text and extract the following information:

1. **Vendor**: the business that issued the invoice, usually at the top.
2. **Invoice number**: the identifier printed next to "Invoice #", "Invoice No." or similar.
3. **Dates**: the issue date and, if present, the due date. Convert both to ISO 8601 format (YYYY-MM-DD).
4. **Amounts**: subtotal, tax and total as numbers without currency symbols (e.g., 42.75 for $42.75).
5. **Line items**: every billed row with its description, quantity, unit price and amount.

Return ONLY valid JSON in this format:
{
  "vendor_name": "Vendor Name",
  "invoice_number": "INV-0001",
  "date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "subtotal": 0.00,
  "tax": 0.00,
  "total": 0.00,
  "line_items": [
    {"description": "Item", "quantity": 1, "unit_price": 0.00, "amount": 0.00}
  ]
}

Important:
- Amounts, quantities and prices must be numbers (not strings)
- If you cannot find a field, use null for that field
- Add any other information printed on the invoice (currency, payment terms, addresses, tax IDs) as extra keys in snake_case
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// maxImageSide bounds the longer side of an image sent to a model
const maxImageSide = 2000

// prepared is a document reduced to what a model can read: a PNG image, text, or both
type prepared struct {
	image []byte
	text  string
}

// prepareDocument converts doc into model input based on its media type
func prepareDocument(doc Document) (prepared, error) {
	mediaType := upload.NormalizeMediaType(doc.MediaType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = upload.TypeForExtension(doc.Name)
	}

	var (
		p   prepared
		err error
	)
	switch mediaType {
	case upload.TypePDF:
		p, err = preparePDF(doc.Data)
		if err != nil {
			return prepared{}, fmt.Errorf("converting PDF: %w", err)
		}
	case upload.TypePNG, upload.TypeJPEG:
		p.image, err = imageToPNG(doc.Data)
		if err != nil {
			return prepared{}, fmt.Errorf("converting image to PNG: %w", err)
		}
	case upload.TypeDOCX:
		p.text, err = docxText(doc.Data)
		if err != nil {
			return prepared{}, fmt.Errorf("reading DOCX: %w", err)
		}
	default:
		return prepared{}, fmt.Errorf("unsupported media type %q", doc.MediaType)
	}

	if p.image == nil && strings.TrimSpace(p.text) == "" {
		return prepared{}, ErrNoText
	}
	return p, nil
}

// preparePDF renders the first page as PNG and collects the text layer of every page
func preparePDF(pdfData []byte) (prepared, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return prepared{}, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return prepared{}, fmt.Errorf("rendering PDF page: %w", err)
	}
	encoded, err := encodePNG(imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos))
	if err != nil {
		return prepared{}, err
	}

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return prepared{}, fmt.Errorf("reading PDF text on page %d: %w", i+1, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return prepared{image: encoded, text: strings.Join(pages, "\n")}, nil
}

// imageToPNG decodes a JPEG or PNG, shrinks it to fit maxImageSide, and re-encodes it as PNG
func imageToPNG(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// docxText returns the paragraphs of word/document.xml, one per line
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}

	f, err := zr.Open("word/document.xml")
	if err != nil {
		return "", fmt.Errorf("opening document part: %w", err)
	}
	defer f.Close()

	var (
		out       strings.Builder
		paragraph strings.Builder
		inText    bool
	)
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document part: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString(paragraph.String())
				out.WriteByte('\n')
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
