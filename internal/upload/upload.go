package upload

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// MaxSize is the largest accepted document, inclusive
const MaxSize = 10 << 20 // 10MB

// Accepted media types
const (
	TypePDF  = "application/pdf"
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var acceptedTypes = map[string]struct{}{
	TypePDF:  {},
	TypeJPEG: {},
	TypePNG:  {},
	TypeDOCX: {},
}

var extensionTypes = map[string]string{
	".pdf":  TypePDF,
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
	".png":  TypePNG,
	".docx": TypeDOCX,
}

// Candidate is a document the user picked, not yet submitted
type Candidate struct {
	Name      string
	MediaType string
	Size      int64
	Data      []byte
}

// Accepted reports whether mediaType is one of the accepted document types
func Accepted(mediaType string) bool {
	_, ok := acceptedTypes[NormalizeMediaType(mediaType)]
	return ok
}

// NormalizeMediaType lowercases a media type and strips any parameters
func NormalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	return strings.ToLower(mediaType)
}

// TypeForExtension returns the media type implied by a file name, or "" if the extension is
// not one we know
func TypeForExtension(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// FromFile builds a candidate from a file on disk; the declared type comes from the
// extension
func FromFile(path string) (Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("reading file: %w", err)
	}
	mediaType := TypeForExtension(path)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return Candidate{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      int64(len(data)),
		Data:      data,
	}, nil
}

// FromMultipart builds a candidate from an uploaded form file. The part's Content-Type
// wins; the extension fills in when the client sent none.
func FromMultipart(header *multipart.FileHeader) (Candidate, error) {
	f, err := header.Open()
	if err != nil {
		return Candidate{}, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Candidate{}, fmt.Errorf("reading upload: %w", err)
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || NormalizeMediaType(mediaType) == "application/octet-stream" {
		if byExt := TypeForExtension(header.Filename); byExt != "" {
			mediaType = byExt
		}
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	return Candidate{
		Name:      header.Filename,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Data:      data,
	}, nil
}
