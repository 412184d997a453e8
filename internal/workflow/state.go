package workflow

import (
	"github.com/zombor/invoice-scanner/internal/invoice"
)

// State is a workflow phase
type State int

const (
	// Idle: nothing submitted, or the workflow was reset
	Idle State = iota
	// Uploading: the document is being transferred
	Uploading
	// Processing: the transfer finished and the backend is extracting
	Processing
	// Completed: a record is available for review
	Completed
	// Failed: the submission ended in an error message
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InFlight reports whether a submission is outstanding in this state
func (s State) InFlight() bool {
	return s == Uploading || s == Processing
}

// Snapshot is a copy of the controller's state, safe to hand to a renderer
type Snapshot struct {
	State State `json:"state"`
	// Generation increases on every submission and every reset
	Generation   uint64 `json:"generation"`
	SubmissionID string `json:"submission_id,omitempty"`
	// Candidate is the name of the pending or submitted document
	Candidate       string          `json:"candidate,omitempty"`
	ValidationError string          `json:"validation_error,omitempty"`
	Error           string          `json:"error,omitempty"`
	Record          *invoice.Record `json:"record,omitempty"`
	Form            *invoice.Form   `json:"form,omitempty"`
}
