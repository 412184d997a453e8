package backend

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-scanner/internal/scanning"
	"github.com/zombor/invoice-scanner/internal/upload"
)

func multipartBody(filename string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

type responseBody struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeBody(resp *http.Response) responseBody {
	defer resp.Body.Close()
	var body responseBody
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		scanner     *mockScanner
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
		now         time.Time
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service := NewServiceWithDeps(db, scanner, &mockIDGenerator{id: "ext-1"}, &mockTimeSource{now: now})
		server = NewServerWithMux(service, auth, "1.0.0", &mockTimeSource{now: now}, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = true
		ghttpServer.UnhandledRequestStatusCode = http.StatusInternalServerError
		ghttpServer.RouteToHandler("GET", "/health", server.ServeHTTP)
		ghttpServer.RouteToHandler("POST", "/api/process-invoice", server.ServeHTTP)
		ghttpServer.RouteToHandler("OPTIONS", "/api/process-invoice", server.ServeHTTP)
		ghttpServer.RouteToHandler("GET", "/api/extractions", server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		auth = BasicAuth{}
		now = time.Date(2024, 1, 15, 12, 30, 0, 0, time.FixedZone("EST", -5*60*60))
		ghttpServer = nil
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	post := func(filename string, data []byte) *http.Response {
		body, contentType := multipartBody(filename, data)
		resp, err := http.Post(ghttpServer.URL()+"/api/process-invoice", contentType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("handleHealth", func() {
		It("should report healthy with a UTC timestamp", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var status HealthStatus
			Expect(json.NewDecoder(resp.Body).Decode(&status)).To(Succeed())
			Expect(status).To(Equal(HealthStatus{Status: "healthy", Version: "1.0.0", Timestamp: "2024-01-15T17:30:00Z"}))
		})

		It("should set CORS headers", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("handleProcessInvoice", func() {
		When("the upload is a supported invoice", func() {
			It("should return the record in a success envelope", func() {
				resp := post("invoice.pdf", []byte("%PDF-1.4"))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))

				body := decodeBody(resp)
				Expect(body.Success).To(BeTrue())
				Expect(string(body.Data)).To(MatchJSON(`{"vendor_name": "Acme Co", "total": 123.45}`))
			})

			It("should pass the media type derived from the extension", func() {
				resp := post("scan.JPG", []byte("jpeg bytes"))
				resp.Body.Close()
				Expect(scanner.docs).To(HaveLen(1))
				Expect(scanner.docs[0].MediaType).To(Equal(upload.TypeJPEG))
			})

			It("should scan identical content only once", func() {
				post("invoice.pdf", []byte("%PDF-1.4")).Body.Close()
				post("copy.pdf", []byte("%PDF-1.4")).Body.Close()
				Expect(scanner.docs).To(HaveLen(1))
			})
		})

		When("the extension is not allowed", func() {
			It("should return 400 with the allowed list", func() {
				resp := post("invoice.txt", []byte("hello"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				body := decodeBody(resp)
				Expect(body.Success).To(BeFalse())
				Expect(body.Error).To(Equal("Unsupported file type. Allowed types: pdf, png, jpg, jpeg, docx"))
				Expect(string(body.Data)).To(Equal("null"))
				Expect(scanner.docs).To(BeEmpty())
			})
		})

		When("the file is larger than 10MB", func() {
			It("should return 413", func() {
				resp := post("big.pdf", bytes.Repeat([]byte("a"), upload.MaxSize+1))
				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))

				body := decodeBody(resp)
				Expect(body.Error).To(Equal("File too large. Max size is 10MB"))
				Expect(scanner.docs).To(BeEmpty())
			})
		})

		When("no file is sent", func() {
			It("should return 400", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("other", "x")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/process-invoice", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeBody(resp).Error).To(Equal("No file provided"))
			})
		})

		When("the document has no readable text", func() {
			BeforeEach(func() {
				scanner.err = scanning.ErrNoText
			})

			It("should return 400", func() {
				resp := post("blank.docx", []byte("PK"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeBody(resp).Error).To(Equal("Could not extract text from the provided file"))
			})
		})

		When("scanning fails", func() {
			BeforeEach(func() {
				scanner.err = errors.New("model unavailable")
			})

			It("should return 500 with the cause", func() {
				resp := post("invoice.pdf", []byte("%PDF-1.4"))
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				body := decodeBody(resp)
				Expect(body.Success).To(BeFalse())
				Expect(body.Error).To(HavePrefix("Error processing invoice: "))
				Expect(body.Error).To(ContainSubstring("model unavailable"))
			})
		})

		When("basic auth is configured", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should reject requests without credentials", func() {
				resp := post("invoice.pdf", []byte("%PDF-1.4"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
				resp.Body.Close()
			})

			It("should accept requests with credentials", func() {
				body, contentType := multipartBody("invoice.pdf", []byte("%PDF-1.4"))
				req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/process-invoice", body)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", contentType)
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))

				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})

			It("should leave health open", func() {
				resp, err := http.Get(ghttpServer.URL() + "/health")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})

	Describe("preflight requests", func() {
		It("should answer with CORS headers and no body", func() {
			req, err := http.NewRequest("OPTIONS", ghttpServer.URL()+"/api/process-invoice", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(BeEmpty())
		})
	})

	Describe("handleListExtractions", func() {
		It("should list cached extractions", func() {
			post("invoice.pdf", []byte("%PDF-1.4")).Body.Close()

			resp, err := http.Get(ghttpServer.URL() + "/api/extractions")
			Expect(err).NotTo(HaveOccurred())
			body := decodeBody(resp)
			var extractions []Extraction
			Expect(json.Unmarshal(body.Data, &extractions)).To(Succeed())
			Expect(extractions).To(HaveLen(1))
			Expect(extractions[0].Filename).To(Equal("invoice.pdf"))
		})
	})
})
