package upload

import (
	"log/slog"
)

// Reason says why a candidate was rejected
type Reason int

const (
	TooLarge Reason = iota + 1
	UnsupportedType
)

func (r Reason) String() string {
	switch r {
	case TooLarge:
		return "too_large"
	case UnsupportedType:
		return "unsupported_type"
	default:
		return "unknown"
	}
}

// ValidationError rejects a candidate before any network use
type ValidationError struct {
	Reason    Reason
	Name      string
	Size      int64
	MediaType string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case TooLarge:
		return "File size must be less than 10MB"
	default:
		return "Please upload a valid file (PDF, JPG, PNG, or DOCX)"
	}
}

// Validate checks a candidate's size and declared type
func Validate(c Candidate) error {
	if c.Size > MaxSize {
		return &ValidationError{Reason: TooLarge, Name: c.Name, Size: c.Size, MediaType: c.MediaType}
	}
	if !Accepted(c.MediaType) {
		return &ValidationError{Reason: UnsupportedType, Name: c.Name, Size: c.Size, MediaType: c.MediaType}
	}
	return nil
}

// Selector holds at most one pending candidate and the last validation error. Drag-and-drop
// and direct selection both arrive here as a Candidate.
//
// Selector is not safe for concurrent use; its owner serializes access.
type Selector struct {
	pending *Candidate
	err     error
}

// NewSelector creates an empty Selector
func NewSelector() *Selector {
	return &Selector{}
}

// Select validates c. On success c replaces any pending candidate and the previous
// validation error is cleared. On failure the pending candidate is left alone.
func (s *Selector) Select(c Candidate) (Candidate, error) {
	if err := Validate(c); err != nil {
		slog.Warn("Rejected document", "name", c.Name, "size", c.Size, "media_type", c.MediaType, "error", err)
		s.err = err
		return Candidate{}, err
	}

	c.MediaType = NormalizeMediaType(c.MediaType)
	s.pending = &c
	s.err = nil
	return c, nil
}

// Pending returns the pending candidate, if any
func (s *Selector) Pending() (Candidate, bool) {
	if s.pending == nil {
		return Candidate{}, false
	}
	return *s.pending, true
}

// Err returns the last validation error, or nil
func (s *Selector) Err() error {
	return s.err
}

// Take hands the pending candidate off and forgets it
func (s *Selector) Take() (Candidate, bool) {
	c, ok := s.Pending()
	s.pending = nil
	return c, ok
}

// Clear drops the pending candidate and any validation error
func (s *Selector) Clear() {
	s.pending = nil
	s.err = nil
}
