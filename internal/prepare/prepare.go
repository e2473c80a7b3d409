// Package prepare assembles evaluation tasks: it selects the base-channel
// buffers an expression needs, copies them into transferable form, and
// fixes the progress cadence.
package prepare

import (
	"errors"
	"fmt"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/eval"
)

// Cadence clamp bounds, in samples between progress frames.
const (
	MinCadence = 1
	MaxCadence = 10000
)

// Binding pairs an expression identifier with its sample buffer.
type Binding struct {
	Name    string
	Samples []float64
}

// Task is the transient descriptor handed to an evaluation worker.
//
// Binding buffers are owned by the task until Detach moves them out; after
// the move the task's own references are nil and must not be read.
type Task struct {
	Expression  string
	Bindings    []Binding
	SampleCount int

	// Cadence is the number of samples between progress frames.
	Cadence int
}

// Detach moves the binding buffers out of the task. The task's own buffer
// references become nil, modeling the transfer list: after posting, the
// preparing side must not retain a usable view.
func (t *Task) Detach() []Binding {
	moved := make([]Binding, len(t.Bindings))
	copy(moved, t.Bindings)
	for i := range t.Bindings {
		t.Bindings[i].Samples = nil
	}
	return moved
}

// MissingChannelError indicates a referenced channel was unavailable at
// prepare time.
type MissingChannelError struct {
	ID string
}

// Error implements the error interface.
func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("MISSING_CHANNEL: channel %q unavailable at prepare time", e.ID)
}

// IsMissingChannel reports whether err is a MissingChannelError.
func IsMissingChannel(err error) bool {
	var e *MissingChannelError
	return errors.As(err, &e)
}

// Preparer builds evaluation tasks from validated expressions.
type Preparer struct {
	rec     *channel.Recording
	cadence int // 0 means derive from N
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithCadence overrides the derived progress cadence. The value is clamped
// to [MinCadence, MaxCadence].
func WithCadence(samples int) Option {
	return func(p *Preparer) {
		p.cadence = samples
	}
}

// New creates a Preparer over the given recording.
func New(rec *channel.Recording, opts ...Option) *Preparer {
	p := &Preparer{rec: rec}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare builds a task for a validated expression.
//
// Every referenced channel buffer is copied: the recording retains its own
// buffers for the chart layer, and the copies are what move to the worker.
// Digital channels are bound as float64 like everything else, so evaluator
// arithmetic is uniform.
//
// Fails with MissingChannelError if a referenced id is absent.
func (p *Preparer) Prepare(v *eval.Validation) (*Task, error) {
	n := p.rec.SampleCount()
	bindings := make([]Binding, 0, len(v.Refs))
	for _, id := range v.Refs {
		base := p.rec.Get(id)
		if base == nil {
			return nil, &MissingChannelError{ID: id}
		}
		buf := make([]float64, n)
		copy(buf, base.Samples)
		bindings = append(bindings, Binding{Name: channel.NormalizeID(id), Samples: buf})
	}

	return &Task{
		Expression:  v.Expression,
		Bindings:    bindings,
		SampleCount: n,
		Cadence:     p.cadenceFor(n),
	}, nil
}

// cadenceFor returns the progress cadence for an N-sample task: the
// configured override if set, otherwise one frame per 1% of N, clamped to
// [MinCadence, MaxCadence].
func (p *Preparer) cadenceFor(n int) int {
	cadence := p.cadence
	if cadence == 0 {
		cadence = n / 100
	}
	if cadence < MinCadence {
		cadence = MinCadence
	}
	if cadence > MaxCadence {
		cadence = MaxCadence
	}
	return cadence
}
