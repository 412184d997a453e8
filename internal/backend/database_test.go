package backend

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newExtraction := func(hash string) *Extraction {
		var record invoice.Record
		Expect(record.UnmarshalJSON([]byte(`{"vendor_name": "Acme Co", "total": 123.45, "currency": "USD"}`))).To(Succeed())
		return &Extraction{
			ID:          "id-" + hash,
			Hash:        hash,
			Filename:    "invoice.pdf",
			ContentType: "application/pdf",
			Size:        42,
			Record:      record,
			CreatedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		}
	}

	Describe("SaveExtraction and GetExtraction", func() {
		var saved *Extraction

		BeforeEach(func() {
			saved = newExtraction("abc")
			Expect(db.SaveExtraction(saved)).To(Succeed())
		})

		It("should return an equal extraction", func() {
			got, err := db.GetExtraction("abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(saved))
		})

		It("should keep additional fields of the record", func() {
			got, err := db.GetExtraction("abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Record.Additional).To(HaveKeyWithValue("currency", invoice.Text("USD")))
		})

		It("should overwrite on the same hash", func() {
			again := newExtraction("abc")
			again.Filename = "renamed.pdf"
			Expect(db.SaveExtraction(again)).To(Succeed())

			got, err := db.GetExtraction("abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Filename).To(Equal("renamed.pdf"))
		})
	})

	Describe("GetExtraction", func() {
		It("returns ErrNotFound for a missing hash", func() {
			_, err := db.GetExtraction("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListExtractions", func() {
		When("the cache is empty", func() {
			It("should return an empty list", func() {
				extractions, err := db.ListExtractions()
				Expect(err).NotTo(HaveOccurred())
				Expect(extractions).To(BeEmpty())
			})
		})

		When("extractions exist", func() {
			BeforeEach(func() {
				Expect(db.SaveExtraction(newExtraction("b"))).To(Succeed())
				Expect(db.SaveExtraction(newExtraction("a"))).To(Succeed())
			})

			It("should return them in hash order", func() {
				extractions, err := db.ListExtractions()
				Expect(err).NotTo(HaveOccurred())
				Expect(extractions).To(HaveLen(2))
				Expect(extractions[0].Hash).To(Equal("a"))
				Expect(extractions[1].Hash).To(Equal("b"))
			})
		})
	})

	Describe("DeleteExtraction", func() {
		It("should remove the extraction", func() {
			Expect(db.SaveExtraction(newExtraction("abc"))).To(Succeed())
			Expect(db.DeleteExtraction("abc")).To(Succeed())

			_, err := db.GetExtraction("abc")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("reopening", func() {
		It("should keep saved extractions", func() {
			Expect(db.SaveExtraction(newExtraction("abc"))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = db.GetExtraction("abc")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
