package scanning

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-scanner/internal/upload"
)

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

func encodedPNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func encodedJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

func docx(documentXML string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	Expect(err).NotTo(HaveOccurred())
	_, err = w.Write([]byte(documentXML))
	Expect(err).NotTo(HaveOccurred())
	Expect(zw.Close()).To(Succeed())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Acme Co</w:t></w:r></w:p>
    <w:p><w:r><w:t>Invoice </w:t></w:r><w:r><w:t>INV-1</w:t></w:r></w:p>
    <w:p><w:r><w:t>Total</w:t><w:tab/><w:t>123.45</w:t></w:r></w:p>
  </w:body>
</w:document>`

var _ = Describe("prepareDocument", func() {
	var (
		doc Document
		p   prepared
		err error
	)

	JustBeforeEach(func() {
		p, err = prepareDocument(doc)
	})

	When("the document is a small PNG", func() {
		BeforeEach(func() {
			doc = Document{Name: "invoice.png", MediaType: upload.TypePNG, Data: encodedPNG(solidImage(40, 20))}
		})

		It("should produce a PNG of the same size", func() {
			Expect(err).NotTo(HaveOccurred())
			img, format, err := image.Decode(bytes.NewReader(p.image))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
			Expect(img.Bounds().Dx()).To(Equal(40))
			Expect(img.Bounds().Dy()).To(Equal(20))
		})
	})

	When("the document is a large JPEG", func() {
		BeforeEach(func() {
			doc = Document{Name: "scan.jpg", MediaType: upload.TypeJPEG, Data: encodedJPEG(solidImage(4000, 1000))}
		})

		It("should shrink it to fit and convert it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			img, format, err := image.Decode(bytes.NewReader(p.image))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
			Expect(img.Bounds().Dx()).To(Equal(maxImageSide))
			Expect(img.Bounds().Dy()).To(Equal(500))
		})
	})

	When("the image data is corrupt", func() {
		BeforeEach(func() {
			doc = Document{Name: "broken.png", MediaType: upload.TypePNG, Data: []byte("not an image")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("decoding image")))
		})
	})

	When("the document is a DOCX", func() {
		BeforeEach(func() {
			doc = Document{Name: "invoice.docx", MediaType: upload.TypeDOCX, Data: docx(documentXML)}
		})

		It("should extract one line per paragraph", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(p.image).To(BeNil())
			Expect(p.text).To(Equal("Acme Co\nInvoice INV-1\nTotal\t123.45"))
		})
	})

	When("the DOCX has no text", func() {
		BeforeEach(func() {
			doc = Document{Name: "empty.docx", MediaType: upload.TypeDOCX, Data: docx(`<w:document xmlns:w="x"><w:body><w:p/></w:body></w:document>`)}
		})

		It("should return ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the DOCX is not an archive", func() {
		BeforeEach(func() {
			doc = Document{Name: "invoice.docx", MediaType: upload.TypeDOCX, Data: []byte("plain text")}
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("the media type is missing", func() {
		BeforeEach(func() {
			doc = Document{Name: "invoice.docx", Data: docx(documentXML)}
		})

		It("should fall back to the extension", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(p.text).To(HavePrefix("Acme Co"))
		})
	})

	When("the media type is not supported", func() {
		BeforeEach(func() {
			doc = Document{Name: "notes.txt", MediaType: "text/plain", Data: []byte("hello")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported media type")))
		})
	})

	When("the PDF is corrupt", func() {
		BeforeEach(func() {
			doc = Document{Name: "invoice.pdf", MediaType: upload.TypePDF, Data: []byte("%PDF-garbage")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("converting PDF")))
		})
	})
})
