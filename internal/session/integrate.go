package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/worker"
)

// LengthMismatchError indicates a worker returned a buffer whose length
// disagrees with the recording's sample count.
type LengthMismatchError struct {
	Expected int
	Got      int
}

// Error implements the error interface.
func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("LENGTH_MISMATCH: expected %d samples, got %d", e.Expected, e.Got)
}

// IsLengthMismatch reports whether err is a LengthMismatchError.
func IsLengthMismatch(err error) bool {
	var e *LengthMismatchError
	return errors.As(err, &e)
}

// ErrorSink receives user-visible failure messages. Implemented by the UI
// layer; a no-op sink is used when none is wired.
type ErrorSink interface {
	ShowError(message string)
}

// Persister is the optional host-storage collaborator. The in-memory store
// stays authoritative; persistence failures are logged, not fatal.
type Persister interface {
	SaveComputed(ctx context.Context, ch *channel.ComputedChannel) error
	DeleteComputed(ctx context.Context, id string) error
}

// Submission is the opaque context threaded through the worker and handed
// back to the integrator on success.
type Submission struct {
	// ChannelID is set when the user re-runs an existing computed channel;
	// empty for a first run.
	ChannelID string
	Label     string
	Unit      string
	SourceTeX string
	Refs      []string
}

// Integrator turns successful worker results into computed channels and
// records them in the store. On error it surfaces the failure and leaves
// the store untouched.
type Integrator struct {
	store   *Store
	rec     *channel.Recording
	ids     channel.IDGenerator
	persist Persister
	errSink ErrorSink
	clock   func() time.Time
	log     *slog.Logger
}

// IntegratorOption configures an Integrator.
type IntegratorOption func(*Integrator)

// WithIDGenerator overrides the id generator (tests use FixedGenerator).
func WithIDGenerator(gen channel.IDGenerator) IntegratorOption {
	return func(g *Integrator) { g.ids = gen }
}

// WithPersister wires the optional host-storage collaborator.
func WithPersister(p Persister) IntegratorOption {
	return func(g *Integrator) { g.persist = p }
}

// WithErrorSink wires the user-visible error collaborator.
func WithErrorSink(sink ErrorSink) IntegratorOption {
	return func(g *Integrator) { g.errSink = sink }
}

// WithIntegratorClock injects the creation-timestamp source.
func WithIntegratorClock(now func() time.Time) IntegratorOption {
	return func(g *Integrator) { g.clock = now }
}

// WithIntegratorLogger sets the integrator's logger.
func WithIntegratorLogger(log *slog.Logger) IntegratorOption {
	return func(g *Integrator) { g.log = log }
}

// NewIntegrator creates an Integrator over the store and its recording.
func NewIntegrator(store *Store, rec *channel.Recording, opts ...IntegratorOption) *Integrator {
	g := &Integrator{
		store: store,
		rec:   rec,
		ids:   channel.UUIDv7Generator{},
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnSuccess builds a computed channel from a worker result and inserts or
// replaces it in the store. The returned channel is the stored snapshot.
//
// Fails with LengthMismatchError when the returned buffer's length does not
// equal the recording's sample count; the store is left untouched on any
// failure.
func (g *Integrator) OnSuccess(res worker.Result) (*channel.ComputedChannel, error) {
	sub, ok := res.Context.(Submission)
	if !ok {
		return nil, fmt.Errorf("unexpected submission context %T", res.Context)
	}

	if len(res.Samples) != g.rec.SampleCount() || res.SampleCount != g.rec.SampleCount() {
		err := &LengthMismatchError{Expected: g.rec.SampleCount(), Got: len(res.Samples)}
		g.fail(err.Error())
		return nil, err
	}

	id := sub.ChannelID
	replace := id != "" && g.store.Has(id)
	if id == "" {
		id = g.ids.Generate()
	}

	ch := &channel.ComputedChannel{
		ID:         id,
		Label:      sub.Label,
		Unit:       res.Unit,
		SourceTeX:  sub.SourceTeX,
		Expression: res.Expression,
		Refs:       append([]string(nil), sub.Refs...),
		Samples:    res.Samples,
		Provenance: channel.Provenance{
			ElapsedMs: res.ElapsedMs,
			CreatedAt: g.clock(),
		},
	}

	var err error
	if replace {
		err = g.store.Replace(id, ch)
	} else {
		err = g.store.Add(ch)
	}
	if err != nil {
		g.fail(err.Error())
		return nil, err
	}

	if g.persist != nil {
		if perr := g.persist.SaveComputed(context.Background(), ch); perr != nil {
			// The in-memory store is authoritative; a persistence failure
			// is diagnostic only.
			g.log.Error("persist computed channel failed", "id", id, "error", perr)
		}
	}

	g.log.Info("evaluation integrated",
		"id", id,
		"label", sub.Label,
		"elapsed_ms", res.ElapsedMs,
		"replaced", replace,
	)
	return g.store.Get(id), nil
}

// OnError surfaces a worker failure to the user. The store is never
// mutated on the error path.
func (g *Integrator) OnError(message string) {
	g.log.Error("evaluation failed", "error", message)
	g.fail(message)
}

func (g *Integrator) fail(message string) {
	if g.errSink != nil {
		g.errSink.ShowError(message)
	}
}
