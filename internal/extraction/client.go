package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-scanner/internal/invoice"
	"github.com/zombor/invoice-scanner/internal/upload"
)

const (
	processPath = "/api/process-invoice"
	healthPath  = "/health"
	// RequestIDHeader carries the client-generated request ID to the backend
	RequestIDHeader = "X-Request-ID"
)

// Client submits documents to the extraction backend
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Client. Extraction can take a while, so the timeout should be
// generous; zero means two minutes.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a new Client with a custom http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// processResponse is the body of POST /api/process-invoice
type processResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Extract sends the candidate to the backend and waits for the outcome. uploaded, if not
// nil, is called once when the request body has been fully handed to the transport.
//
// A failure is a *NetworkError when no response arrived and a *BackendError otherwise. The
// client never retries.
func (c *Client) Extract(ctx context.Context, candidate upload.Candidate, uploaded func()) (invoice.Record, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body, contentType, err := multipartBody(candidate)
	if err != nil {
		return invoice.Record{}, fmt.Errorf("building request body: %w", err)
	}

	var reader io.Reader = body
	if uploaded != nil {
		reader = &progressReader{r: body, remaining: int64(body.Len()), done: uploaded}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, reader)
	if err != nil {
		return invoice.Record{}, fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = int64(body.Len())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)

	slog.Info("Submitting document", "req_id", reqID, "name", candidate.Name, "media_type", candidate.MediaType, "size", candidate.Size)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("Extraction request failed", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return invoice.Record{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Error reading extraction response", "req_id", reqID, "error", err)
		return invoice.Record{}, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}

	slog.Info("Extraction response", "req_id", reqID, "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return invoice.Record{}, failure(resp.StatusCode, raw)
	}

	var parsed processResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return invoice.Record{}, &BackendError{StatusCode: resp.StatusCode, Message: GenericFailure, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return invoice.Record{}, &BackendError{StatusCode: resp.StatusCode, Message: GenericFailure, Err: fmt.Errorf("response has no data")}
	}

	var record invoice.Record
	if err := json.Unmarshal(parsed.Data, &record); err != nil {
		return invoice.Record{}, &BackendError{StatusCode: resp.StatusCode, Message: GenericFailure, Err: err}
	}
	return record, nil
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Health asks the backend whether it is up
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return HealthStatus{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return HealthStatus{}, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return HealthStatus{}, failure(resp.StatusCode, raw)
	}

	var status HealthStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return HealthStatus{}, fmt.Errorf("decoding health response: %w", err)
	}
	return status, nil
}

// failure turns a non-2xx response into a BackendError, using the server's message when
// the body carries one
func failure(status int, body []byte) *BackendError {
	var parsed processResponse
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error) != "" {
		return &BackendError{StatusCode: status, Message: parsed.Error}
	}
	return &BackendError{StatusCode: status, Message: GenericFailure}
}

// multipartBody wraps the candidate's bytes in a single "file" part carrying its declared
// media type
func multipartBody(candidate upload.Candidate) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, candidate.Name))
	h.Set("Content-Type", candidate.MediaType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(candidate.Data); err != nil {
		return nil, "", fmt.Errorf("writing form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// progressReader calls done once the last byte has been read
type progressReader struct {
	r         io.Reader
	remaining int64
	once      sync.Once
	done      func()
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.remaining -= int64(n)
	if p.remaining <= 0 || err == io.EOF {
		p.once.Do(p.done)
	}
	return n, err
}
