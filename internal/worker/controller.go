package worker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/recwave/recwave/internal/prepare"
)

// Result is delivered to OnSuccess when a worker completes.
type Result struct {
	Samples     []float64
	SampleCount int
	ElapsedMs   float64
	Unit        string
	Expression  string

	// Context is the caller-supplied submission context, passed through
	// untouched.
	Context any
}

// Callbacks receive the worker's multiplexed message stream. Nil callbacks
// are skipped. All callbacks are invoked from the controller's dispatch
// goroutine, one at a time.
type Callbacks struct {
	OnProgress func(percent, processed, total int)
	OnSuccess  func(Result)
	OnError    func(message string)
}

// Controller owns one evaluation worker: the task, the start timestamp, and
// the callbacks, dispatching on the tagged message variants the worker
// emits.
//
// Lifecycle: Start spawns the worker; the terminal frame (complete or
// error) terminates it; Terminate is an idempotent no-op the second time.
// Cancel terminates immediately, invokes neither OnSuccess nor OnError, and
// causes any further worker messages to be ignored.
type Controller struct {
	unit    string
	context any
	cb      Callbacks
	now     func() time.Time
	log     *slog.Logger

	msgs chan Message
	quit chan struct{}
	done chan struct{}

	mu         sync.Mutex
	terminated bool
	cancelled  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the time source used for elapsed-ms measurement.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithUnit sets the unit string passed through to OnSuccess.
func WithUnit(unit string) Option {
	return func(c *Controller) { c.unit = unit }
}

// WithContext attaches an opaque submission context passed through to
// OnSuccess.
func WithContext(ctx any) Option {
	return func(c *Controller) { c.context = ctx }
}

// Start records the start timestamp, detaches the task's buffers (the
// transfer: after Start the task's own binding references are nil), spawns
// the evaluation worker, and begins dispatching its messages.
func Start(task *prepare.Task, cb Callbacks, opts ...Option) *Controller {
	c := &Controller{
		cb:   cb,
		now:  time.Now,
		log:  slog.Default(),
		msgs: make(chan Message),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	start := c.now()
	expression := task.Expression
	bindings := task.Detach()

	c.log.Debug("worker starting",
		"expression", expression,
		"samples", task.SampleCount,
		"cadence", task.Cadence,
	)

	go runTask(expression, bindings, task.SampleCount, task.Cadence, c.msgs, c.quit)
	go c.dispatch(start, expression)
	return c
}

// dispatch routes worker messages into callbacks until a terminal frame
// arrives or the controller is terminated.
func (c *Controller) dispatch(start time.Time, expression string) {
	defer close(c.done)
	for {
		select {
		case msg := <-c.msgs:
			if c.Cancelled() {
				// A frame can race the cancel; drop it.
				return
			}
			switch m := msg.(type) {
			case Progress:
				if c.cb.OnProgress != nil {
					c.cb.OnProgress(m.Percent, m.Processed, m.Total)
				}

			case Complete:
				elapsed := float64(c.now().Sub(start)) / float64(time.Millisecond)
				c.log.Debug("worker complete",
					"samples", m.SampleCount,
					"elapsed_ms", elapsed,
				)
				if c.cb.OnSuccess != nil {
					c.cb.OnSuccess(Result{
						Samples:     m.Results,
						SampleCount: m.SampleCount,
						ElapsedMs:   elapsed,
						Unit:        c.unit,
						Expression:  expression,
						Context:     c.context,
					})
				}
				c.Terminate()
				return

			case Failure:
				// Worker-level failures are logged here so they are never
				// swallowed, whatever the OnError callback does with them.
				if m.Crash {
					c.log.Error("worker crashed", "error", m.Message, "expression", expression)
				} else {
					c.log.Error("evaluation failed", "error", m.Message, "expression", expression)
				}
				if c.cb.OnError != nil {
					c.cb.OnError(m.Message)
				}
				c.Terminate()
				return
			}

		case <-c.quit:
			return
		}
	}
}

// Cancel terminates the worker immediately. Neither OnSuccess nor OnError
// is invoked, and any message the worker emits afterwards is ignored. No
// partial result is surfaced.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.Terminate()
}

// Terminate tears the worker down. Safe to call more than once; the second
// call is a no-op.
func (c *Controller) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return
	}
	c.terminated = true
	close(c.quit)
}

// Cancelled reports whether the controller was cancelled before a terminal
// frame arrived.
func (c *Controller) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Done returns a channel closed when the dispatch loop has exited, either
// on the terminal frame or on termination.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}
