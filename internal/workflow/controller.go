package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/invoice-scanner/internal/export"
	"github.com/zombor/invoice-scanner/internal/invoice"
	"github.com/zombor/invoice-scanner/internal/upload"
)

var (
	// ErrBusy is returned by Submit outside Idle
	ErrBusy = errors.New("a submission is already in progress or awaiting reset")
	// ErrNoCandidate is returned by Submit when nothing valid was selected
	ErrNoCandidate = errors.New("no document selected")
	// ErrNotReviewing is returned by review operations outside Completed
	ErrNotReviewing = errors.New("no extracted invoice to review")
	// ErrStale is returned by Submit when a reset happened while the extraction was running
	ErrStale = errors.New("submission was reset before it finished")
)

// Extractor turns a candidate into a record. uploaded is called once the document has been
// transferred.
type Extractor interface {
	Extract(ctx context.Context, candidate upload.Candidate, uploaded func()) (invoice.Record, error)
}

// IDGenerator generates submission IDs
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Controller owns one upload -> extract -> review cycle
type Controller struct {
	mu          sync.Mutex
	extractor   Extractor
	selector    *upload.Selector
	idGenerator IDGenerator
	observer    func(Snapshot)

	state        State
	generation   uint64
	submissionID string
	candidate    string
	record       *invoice.Record
	form         *invoice.Form
	errMsg       string
}

// NewController creates a Controller in Idle
func NewController(extractor Extractor) *Controller {
	return NewControllerWithDeps(extractor, upload.NewSelector(), uuidGenerator{})
}

// NewControllerWithDeps creates a Controller with custom dependencies for testing
func NewControllerWithDeps(extractor Extractor, selector *upload.Selector, idGen IDGenerator) *Controller {
	return &Controller{
		extractor:   extractor,
		selector:    selector,
		idGenerator: idGen,
	}
}

// Observe registers fn to receive a snapshot after every state change. fn runs while the
// controller is locked and must not call back into it.
func (c *Controller) Observe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Select validates a candidate. A rejected candidate leaves the workflow alone; an accepted
// one outside Idle starts over first.
func (c *Controller) Select(candidate upload.Candidate) (upload.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accepted, err := c.selector.Select(candidate)
	if err != nil {
		if c.state == Idle {
			c.notify()
		}
		return upload.Candidate{}, err
	}

	if c.state != Idle {
		slog.Info("Starting over for new document", "name", accepted.Name, "previous_state", c.state)
		c.clear()
	}
	c.candidate = accepted.Name
	c.notify()
	return accepted, nil
}

// submission is one accepted Submit call
type submission struct {
	id         string
	generation uint64
	candidate  upload.Candidate
}

// Submit sends the pending candidate to the extractor and blocks until the result is applied.
// The returned error is informational; the state already reflects it.
func (c *Controller) Submit(ctx context.Context) error {
	sub, err := c.begin()
	if err != nil {
		return err
	}
	return c.run(ctx, sub)
}

// SubmitAsync checks and starts a submission like Submit, then extracts in the background. The
// channel receives Submit's result once it is applied.
func (c *Controller) SubmitAsync(ctx context.Context) (<-chan error, error) {
	sub, err := c.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- c.run(ctx, sub)
	}()
	return done, nil
}

// begin takes the pending candidate and enters Uploading
func (c *Controller) begin() (submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return submission{}, ErrBusy
	}
	candidate, ok := c.selector.Take()
	if !ok {
		return submission{}, ErrNoCandidate
	}
	c.generation++
	c.submissionID = c.idGenerator.Generate()
	c.candidate = candidate.Name
	c.transition(Uploading)

	return submission{id: c.submissionID, generation: c.generation, candidate: candidate}, nil
}

// run calls the extractor without holding the lock and applies the result if it is still
// current
func (c *Controller) run(ctx context.Context, sub submission) error {
	slog.Info("Submitting document", "submission_id", sub.id, "name", sub.candidate.Name, "size", sub.candidate.Size)

	record, err := c.extractor.Extract(ctx, sub.candidate, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation == sub.generation && c.state == Uploading {
			c.transition(Processing)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != sub.generation {
		slog.Info("Discarding stale extraction result", "submission_id", sub.id)
		return ErrStale
	}
	if c.state == Uploading {
		c.transition(Processing)
	}

	if err != nil {
		slog.Error("Failed to extract invoice", "submission_id", sub.id, "error", err)
		c.errMsg = err.Error()
		c.transition(Failed)
		return fmt.Errorf("extracting %s: %w", sub.candidate.Name, err)
	}

	slog.Info("Extracted invoice", "submission_id", sub.id, "line_items", len(record.LineItems))
	form := invoice.NewForm(record)
	c.record = &record
	c.form = &form
	c.transition(Completed)
	return nil
}

// Reset returns to Idle and discards any pending candidate, result, or in-flight submission
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selector.Clear()
	c.clear()
	c.notify()
}

// State returns a copy of the current state
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// EditField replaces one top-level form field
func (c *Controller) EditField(name, text string) (invoice.Form, error) {
	return c.edit(func(f invoice.Form) invoice.Form {
		return invoice.SetField(f, name, text)
	})
}

// EditLineItem replaces one attribute of one line item
func (c *Controller) EditLineItem(index int, name, text string) (invoice.Form, error) {
	return c.edit(func(f invoice.Form) invoice.Form {
		return invoice.SetLineItemField(f, index, name, text)
	})
}

// AddLineItem appends an empty line item
func (c *Controller) AddLineItem() (invoice.Form, error) {
	return c.edit(invoice.AppendLineItem)
}

// RemoveLineItem drops the line item at index
func (c *Controller) RemoveLineItem(index int) (invoice.Form, error) {
	return c.edit(func(f invoice.Form) invoice.Form {
		return invoice.RemoveLineItem(f, index)
	})
}

// Export serializes the reviewed form. Fields the reviewer left alone are written exactly as
// extracted, whatever their type.
func (c *Controller) Export(format export.Format) (export.Artifact, error) {
	return c.export(format, false)
}

// ExportStrict is Export for consumers that need typed numbers: it refuses, with joined
// *invoice.FieldErrors, while any numeric field holds text that is not a number.
func (c *Controller) ExportStrict(format export.Format) (export.Artifact, error) {
	return c.export(format, true)
}

func (c *Controller) export(format export.Format, strict bool) (export.Artifact, error) {
	c.mu.Lock()
	if c.state != Completed {
		c.mu.Unlock()
		return export.Artifact{}, ErrNotReviewing
	}
	form := c.form.Clone()
	c.mu.Unlock()

	if strict {
		if err := form.Check(); err != nil {
			return export.Artifact{}, fmt.Errorf("checking form: %w", err)
		}
	}
	return export.ToArtifact(form.Record(), format)
}

func (c *Controller) edit(apply func(invoice.Form) invoice.Form) (invoice.Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Completed {
		return invoice.Form{}, ErrNotReviewing
	}
	form := apply(*c.form)
	c.form = &form
	c.notify()
	return form.Clone(), nil
}

// clear drops everything but the selector and moves to Idle. Callers hold mu.
func (c *Controller) clear() {
	c.generation++
	c.submissionID = ""
	c.candidate = ""
	c.record = nil
	c.form = nil
	c.errMsg = ""
	if c.state != Idle {
		slog.Info("Workflow reset", "from", c.state)
	}
	c.state = Idle
}

// transition moves to next and notifies. Callers hold mu.
func (c *Controller) transition(next State) {
	slog.Debug("Workflow transition", "submission_id", c.submissionID, "from", c.state, "to", next)
	c.state = next
	c.notify()
}

func (c *Controller) notify() {
	if c.observer != nil {
		c.observer(c.snapshot())
	}
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		State:        c.state,
		Generation:   c.generation,
		SubmissionID: c.submissionID,
		Candidate:    c.candidate,
		Error:        c.errMsg,
	}
	if pending, ok := c.selector.Pending(); ok {
		s.Candidate = pending.Name
	}
	if err := c.selector.Err(); err != nil {
		s.ValidationError = err.Error()
	}
	if c.record != nil {
		r := c.record.Clone()
		s.Record = &r
	}
	if c.form != nil {
		f := c.form.Clone()
		s.Form = &f
	}
	return s
}
