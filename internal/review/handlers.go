package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/zombor/invoice-scanner/internal/export"
	"github.com/zombor/invoice-scanner/internal/invoice"
	"github.com/zombor/invoice-scanner/internal/upload"
	"github.com/zombor/invoice-scanner/internal/workflow"
)

// editRequest is the body of a field or line item edit
type editRequest struct {
	Value string `json:"value"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeWorkflowError maps controller and validation errors to status codes
func writeWorkflowError(w http.ResponseWriter, err error) {
	var validationErr *upload.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, validationErr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, invoice.ErrNotNumber):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrNoCandidate), errors.Is(err, workflow.ErrNotReviewing):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Workflow request failed", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleState returns the current snapshot
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.State())
}

// handleSelectFile validates an uploaded document and makes it the pending candidate
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+1<<20)
	if err := r.ParseMultipartForm(upload.MaxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// Let the selector record the rejection like any other oversized candidate
			_, err = s.controller.Select(upload.Candidate{Size: max(r.ContentLength, upload.MaxSize+1)})
			writeWorkflowError(w, err)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}

	candidate, err := upload.FromMultipart(header)
	if err != nil {
		slog.Error("Error reading upload", "filename", header.Filename, "error", err)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	if _, err := s.controller.Select(candidate); err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.State())
}

// handleSubmit starts extraction in the background and returns at once
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	done, err := s.controller.SubmitAsync(s.ctx)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	go func() {
		if err := <-done; err != nil && !errors.Is(err, workflow.ErrStale) {
			slog.Warn("Submission failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, s.controller.State())
}

// handleReset returns the workflow to Idle
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.controller.Reset()
	writeJSON(w, http.StatusOK, s.controller.State())
}

// handleEditField replaces one top-level field of the review form
func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	form, err := s.controller.EditField(r.PathValue("name"), req.Value)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// handleEditLineItem replaces one attribute of one line item
func (s *Server) handleEditLineItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Invalid line item index", http.StatusBadRequest)
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	form, err := s.controller.EditLineItem(index, r.PathValue("field"), req.Value)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// handleAddLineItem appends an empty line item
func (s *Server) handleAddLineItem(w http.ResponseWriter, r *http.Request) {
	form, err := s.controller.AddLineItem()
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

// handleRemoveLineItem drops one line item
func (s *Server) handleRemoveLineItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Invalid line item index", http.StatusBadRequest)
		return
	}

	form, err := s.controller.RemoveLineItem(index)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// handleExport downloads the reviewed invoice. strict=true refuses numeric fields that do
// not parse.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	strict := false
	if v := r.URL.Query().Get("strict"); v != "" {
		if strict, err = strconv.ParseBool(v); err != nil {
			writeError(w, "Invalid strict flag", http.StatusBadRequest)
			return
		}
	}

	exportFn := s.controller.Export
	if strict {
		exportFn = s.controller.ExportStrict
	}
	artifact, err := exportFn(format)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	if format == export.FormatJSON {
		if err := export.Validate(artifact.Data); err != nil {
			slog.Warn("Exported invoice does not match schema", "file", artifact.FileName, "error", err)
		}
	}

	w.Header().Set("Content-Type", artifact.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.FileName}))
	w.Header().Set("Content-Length", fmt.Sprint(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		slog.Error("Error writing export", "file", artifact.FileName, "error", err)
	}
}
