// Package channel defines the signal data model shared by the whole
// pipeline: base channels read from a recording, computed channels derived
// from expressions, and the recording registry that owns the time base.
package channel

import (
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes analog waveforms from digital (0/1) status signals.
type Kind string

const (
	// KindAnalog is a sampled analog waveform (currents, voltages).
	KindAnalog Kind = "analog"
	// KindDigital is a 0/1 status signal. Digital samples are stored as
	// float64 so downstream arithmetic is uniform.
	KindDigital Kind = "digital"
)

// BaseChannel is a signal read directly from the recording.
//
// Base channels are immutable once loaded: the loader creates them, nothing
// mutates them, and they are dropped only when the whole recording is
// unloaded. Samples always holds exactly SampleCount() values.
type BaseChannel struct {
	ID         string
	Label      string
	Unit       string
	Kind       Kind
	SampleRate float64
	Samples    []float64
}

// SampleCount returns the number of samples in the channel.
func (c *BaseChannel) SampleCount() int {
	return len(c.Samples)
}

// Provenance records how and when a computed channel was produced.
type Provenance struct {
	ElapsedMs float64
	CreatedAt time.Time
}

// ComputedChannel is a derived signal produced by evaluating an expression
// over base channels sample-by-sample. Downstream consumers cannot tell it
// apart from a recorded channel: it has the same sample count and time base
// as the recording it was derived from.
//
// A computed channel is replaced wholesale when the user re-runs the same
// id; individual fields are never mutated in place.
type ComputedChannel struct {
	ID         string
	Label      string
	Unit       string
	SourceTeX  string
	Expression string
	Refs       []string // referenced base-channel ids
	Samples    []float64
	Provenance Provenance
}

// SampleCount returns the number of samples in the channel.
func (c *ComputedChannel) SampleCount() int {
	return len(c.Samples)
}

// Clone returns a deep copy. Store snapshots hand out clones so subscribers
// never observe a live buffer.
func (c *ComputedChannel) Clone() *ComputedChannel {
	out := *c
	out.Refs = append([]string(nil), c.Refs...)
	out.Samples = append([]float64(nil), c.Samples...)
	return &out
}

// Recording is the registry of base channels loaded from one COMTRADE
// record. It fixes the sample count N that every channel, base or computed,
// must agree on.
//
// The recording is immutable after Load; lookups are safe from any
// goroutine.
type Recording struct {
	sampleCount int
	sampleRate  float64
	order       []string
	byID        map[string]*BaseChannel
}

// NewRecording builds a recording from loaded base channels.
// Channel ids are NFC-normalized before registration so that lookups from
// translated expressions match regardless of Unicode composition.
//
// Returns an error on duplicate ids or on a channel whose sample count
// disagrees with the first channel's.
func NewRecording(channels []*BaseChannel) (*Recording, error) {
	r := &Recording{byID: make(map[string]*BaseChannel, len(channels))}
	for _, c := range channels {
		id := NormalizeID(c.ID)
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("duplicate channel id %q", c.ID)
		}
		if len(r.order) == 0 {
			r.sampleCount = c.SampleCount()
			r.sampleRate = c.SampleRate
		} else if c.SampleCount() != r.sampleCount {
			return nil, fmt.Errorf("channel %q has %d samples, recording has %d",
				c.ID, c.SampleCount(), r.sampleCount)
		}
		r.byID[id] = c
		r.order = append(r.order, id)
	}
	return r, nil
}

// SampleCount returns the recording's N. Zero for an empty recording.
func (r *Recording) SampleCount() int { return r.sampleCount }

// SampleRate returns the recording's sample rate in Hz.
func (r *Recording) SampleRate() float64 { return r.sampleRate }

// Get returns the base channel with the given id, or nil if absent.
func (r *Recording) Get(id string) *BaseChannel {
	return r.byID[NormalizeID(id)]
}

// Has reports whether a base channel with the given id exists.
func (r *Recording) Has(id string) bool {
	_, ok := r.byID[NormalizeID(id)]
	return ok
}

// IDs returns base-channel ids in load order.
func (r *Recording) IDs() []string {
	return append([]string(nil), r.order...)
}

// NormalizeID returns the NFC normalization of an identifier. Translated
// expressions and channel registrations both pass through here so the two
// sides always compare equal byte-wise.
func NormalizeID(id string) string {
	return norm.NFC.String(id)
}
