package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zombor/invoice-scanner/internal/scanning"
	"github.com/zombor/invoice-scanner/internal/upload"
)

// requestIDHeader correlates a client submission with backend log lines
const requestIDHeader = "X-Request-ID"

// allowedExtensions are checked by name, not by declared media type
var allowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "docx"}

// envelope is the body of every /api/process-invoice response
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data"`
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes {"success": false, "error": message, "data": null}
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, envelope{Success: false, Error: message})
}

// handleHealth reports that the backend is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: s.timeSource.Now().UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// handleProcessInvoice scans an uploaded invoice and returns the extracted record
func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := slog.With("request_id", requestID)

	// Leave room for the multipart framing around a file of exactly MaxSize
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+1<<20)
	if err := r.ParseMultipartForm(upload.MaxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, tooLargeMessage(), http.StatusRequestEntityTooLarge)
			return
		}
		logger.Error("Error parsing multipart form", "error", err)
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, header, err := r.FormFile("file")
	if err != nil {
		logger.Error("Error getting file from form", "error", err)
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > upload.MaxSize {
		writeError(w, tooLargeMessage(), http.StatusRequestEntityTooLarge)
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !allowedExtension(ext) {
		writeError(w, fmt.Sprintf("Unsupported file type. Allowed types: %s", strings.Join(allowedExtensions, ", ")), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		logger.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := upload.TypeForExtension(header.Filename)

	extraction, err := s.service.ProcessInvoice(r.Context(), header.Filename, data, contentType)
	if err != nil {
		logger.Error("Error processing invoice", "filename", header.Filename, "error", err)
		if errors.Is(err, scanning.ErrNoText) {
			writeError(w, "Could not extract text from the provided file", http.StatusBadRequest)
			return
		}
		writeError(w, fmt.Sprintf("Error processing invoice: %v", err), http.StatusInternalServerError)
		return
	}

	logger.Info("Processed invoice", "filename", header.Filename, "hash", extraction.Hash, "id", extraction.ID)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: extraction.Record})
}

// handleListExtractions returns every cached extraction
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := s.service.ListExtractions()
	if err != nil {
		slog.Error("Error listing extractions", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: extractions})
}

// handleDeleteExtraction forgets one cached extraction
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if err := s.service.ForgetExtraction(hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, "Extraction not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting extraction", "hash", hash, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func allowedExtension(ext string) bool {
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func tooLargeMessage() string {
	return fmt.Sprintf("File too large. Max size is %dMB", upload.MaxSize>>20)
}
