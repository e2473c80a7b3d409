// Package pipeline ties the computed-channel components together: one
// Submit call runs translation, validation and task preparation
// synchronously, then hands the task to a background worker and delivers
// progress and the final outcome on the returned run's channels.
package pipeline

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/config"
	"github.com/recwave/recwave/internal/eval"
	"github.com/recwave/recwave/internal/latex"
	"github.com/recwave/recwave/internal/prepare"
	"github.com/recwave/recwave/internal/session"
	"github.com/recwave/recwave/internal/worker"
)

// SubmitRequest describes one computed-channel submission.
type SubmitRequest struct {
	// ChannelID re-runs an existing computed channel when set; empty mints
	// a fresh id.
	ChannelID string
	Label     string
	Unit      string
	LaTeX     string
}

// Outcome is the terminal result of a run: exactly one of Channel or Err
// is set. A cancelled run carries ErrCancelled.
type Outcome struct {
	Channel *channel.ComputedChannel
	Err     error
}

// Run is the caller's view of an in-flight evaluation.
//
// Progress is buffered and lossy: if the caller does not drain it, older
// frames are dropped rather than blocking the worker. Done delivers
// exactly one Outcome.
type Run struct {
	ChannelID  string
	Expression string
	Progress   <-chan worker.Progress
	Done       <-chan Outcome
}

// inflight pairs a controller with its outcome plumbing.
type inflight struct {
	ctrl     *worker.Controller
	progress chan worker.Progress
	done     chan Outcome
	once     sync.Once
}

// finish delivers the single terminal outcome.
func (f *inflight) finish(o Outcome) {
	f.once.Do(func() {
		f.done <- o
		close(f.done)
	})
}

// Pipeline orchestrates computed-channel evaluations over one recording.
//
// Synchronous-phase errors (empty expression, syntax, unknown identifier,
// missing channel, busy) return from Submit directly, before any worker is
// spawned. Worker-phase errors arrive on the run's Done channel. The store
// is mutated only on clean success.
type Pipeline struct {
	rec        *channel.Recording
	store      *session.Store
	integrator *session.Integrator
	preparer   *prepare.Preparer
	ids        channel.IDGenerator
	policy     string
	log        *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	running map[string]*inflight
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPolicy sets the resubmit policy (config.PolicyReject or
// config.PolicyPreempt).
func WithPolicy(policy string) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(gen channel.IDGenerator) Option {
	return func(p *Pipeline) { p.ids = gen }
}

// WithLogger sets the pipeline's logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithClock injects the time source handed to worker controllers.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline over a recording. The store and integrator are
// shared with the caller so the chart layer can subscribe to the store
// directly.
func New(rec *channel.Recording, store *session.Store, integrator *session.Integrator, preparer *prepare.Preparer, opts ...Option) *Pipeline {
	p := &Pipeline{
		rec:        rec,
		store:      store,
		integrator: integrator,
		preparer:   preparer,
		ids:        channel.UUIDv7Generator{},
		policy:     config.PolicyReject,
		log:        slog.Default(),
		now:        time.Now,
		running:    make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the computed-channel store, for subscribers.
func (p *Pipeline) Store() *session.Store {
	return p.store
}

// Submit runs the synchronous phases and, if they pass, starts a
// background evaluation. The returned Run carries the assigned channel id,
// the translated expression, and the progress/outcome channels.
func (p *Pipeline) Submit(req SubmitRequest) (*Run, error) {
	if strings.TrimSpace(req.LaTeX) == "" {
		return nil, eval.NewEmptyExpressionError()
	}

	expression := latex.Translate(req.LaTeX)
	v, err := eval.Validate(expression, p.rec)
	if err != nil {
		return nil, err
	}

	task, err := p.preparer.Prepare(v)
	if err != nil {
		return nil, err
	}

	id := req.ChannelID
	if id == "" {
		id = p.ids.Generate()
	}

	// Resolve the resubmit race before spawning anything.
	p.mu.Lock()
	if prior, ok := p.running[id]; ok {
		if p.policy == config.PolicyReject {
			p.mu.Unlock()
			return nil, &BusyError{ChannelID: id}
		}
		p.log.Info("preempting prior evaluation", "id", id)
		prior.ctrl.Cancel()
		prior.finish(Outcome{Err: ErrCancelled})
	}
	f := &inflight{
		progress: make(chan worker.Progress, 16),
		done:     make(chan Outcome, 1),
	}
	p.running[id] = f
	p.mu.Unlock()

	sub := session.Submission{
		ChannelID: id,
		Label:     req.Label,
		Unit:      req.Unit,
		SourceTeX: strings.TrimSpace(req.LaTeX),
		Refs:      v.Refs,
	}

	p.log.Info("evaluation submitted",
		"id", id,
		"label", req.Label,
		"expression", expression,
		"refs", len(v.Refs),
		"samples", task.SampleCount,
	)

	f.ctrl = worker.Start(task, worker.Callbacks{
		OnProgress: func(percent, processed, total int) {
			select {
			case f.progress <- worker.Progress{Percent: percent, Processed: processed, Total: total}:
			default:
				// Drop the frame; progress is advisory.
			}
		},
		OnSuccess: func(res worker.Result) {
			ch, err := p.integrator.OnSuccess(res)
			p.release(id, f)
			if err != nil {
				f.finish(Outcome{Err: err})
				return
			}
			f.finish(Outcome{Channel: ch})
		},
		OnError: func(message string) {
			p.integrator.OnError(message)
			p.release(id, f)
			f.finish(Outcome{Err: &EvaluationError{
				Message: strings.TrimPrefix(message, worker.CrashPrefix),
				Crash:   strings.HasPrefix(message, worker.CrashPrefix),
			}})
		},
	},
		worker.WithUnit(req.Unit),
		worker.WithContext(sub),
		worker.WithClock(p.now),
		worker.WithLogger(p.log),
	)

	return &Run{
		ChannelID:  id,
		Expression: expression,
		Progress:   f.progress,
		Done:       f.done,
	}, nil
}

// Cancel terminates the in-flight evaluation for a channel id, if any.
// The run's Done channel receives ErrCancelled; no callbacks fire and no
// partial result is surfaced. Returns false when nothing was running.
func (p *Pipeline) Cancel(channelID string) bool {
	p.mu.Lock()
	f, ok := p.running[channelID]
	if ok {
		delete(p.running, channelID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	f.ctrl.Cancel()
	f.finish(Outcome{Err: ErrCancelled})
	p.log.Info("evaluation cancelled", "id", channelID)
	return true
}

// Running reports whether an evaluation is in flight for the channel id.
func (p *Pipeline) Running(channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[channelID]
	return ok
}

// release drops the in-flight entry if it still belongs to this run.
func (p *Pipeline) release(id string, f *inflight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.running[id]; ok && cur == f {
		delete(p.running, id)
	}
}
