// Package harness runs conformance scenarios against the full
// computed-channel pipeline: each scenario builds a recording fixture,
// submits expressions end to end, and checks outcomes against expect
// clauses and golden trace files.
//
// Determinism comes from two injected doubles: a FixedGenerator mints
// predictable channel ids (ch-1, ch-2, ...) and a stepping test clock makes
// every successful run report the same elapsed time. Everything else is the
// production code path.
package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/cli"
	"github.com/recwave/recwave/internal/pipeline"
	"github.com/recwave/recwave/internal/prepare"
	"github.com/recwave/recwave/internal/session"
	"github.com/recwave/recwave/internal/testutil"
)

// clockStep is the deterministic duration of every worker run in a
// scenario, as observed through the injected clock.
const clockStep = 250 * time.Millisecond

// TraceEvent is one step's record in the scenario trace.
type TraceEvent struct {
	Step       int      `json:"step"`
	LaTeX      string   `json:"latex"`
	ChannelID  string   `json:"channel_id,omitempty"`
	Expression string   `json:"expression,omitempty"`
	Outcome    string   `json:"outcome"` // "ok" or an error code
	Samples    []string `json:"samples,omitempty"`
	ElapsedMs  float64  `json:"elapsed_ms,omitempty"`
}

// Result is the outcome of running one scenario.
type Result struct {
	Name   string
	Errors []string
	Trace  []TraceEvent
}

// Passed reports whether every expect clause held.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// AddError records an expectation failure.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run executes a scenario and returns its result. Steps run sequentially;
// each submission is waited to completion before the next starts.
func Run(scenario *Scenario) (*Result, error) {
	rec, err := buildRecording(&scenario.Recording)
	if err != nil {
		return nil, fmt.Errorf("building recording: %w", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), clockStep)

	ids := make([]string, len(scenario.Steps))
	for i := range ids {
		ids[i] = fmt.Sprintf("ch-%d", i+1)
	}

	store := session.NewStore(rec, log)
	integrator := session.NewIntegrator(store, rec, session.WithIntegratorLogger(log))
	p := pipeline.New(rec, store, integrator, prepare.New(rec),
		pipeline.WithIDGenerator(channel.NewFixedGenerator(ids...)),
		pipeline.WithLogger(log),
		pipeline.WithClock(clock.Now),
	)

	result := &Result{Name: scenario.Name}
	for i, step := range scenario.Steps {
		ev := runStep(p, i+1, step)
		result.Trace = append(result.Trace, ev)
		checkExpect(result, i+1, step.Expect, ev)
	}
	return result, nil
}

// runStep submits one expression and waits for its terminal outcome.
func runStep(p *pipeline.Pipeline, n int, step Step) TraceEvent {
	ev := TraceEvent{Step: n, LaTeX: step.LaTeX}

	run, err := p.Submit(pipeline.SubmitRequest{
		ChannelID: step.ID,
		Label:     step.Label,
		Unit:      step.Unit,
		LaTeX:     step.LaTeX,
	})
	if err != nil {
		ev.Outcome = cli.ClassifyError(err)
		return ev
	}

	ev.ChannelID = run.ChannelID
	ev.Expression = run.Expression

	o := <-run.Done
	if o.Err != nil {
		ev.Outcome = cli.ClassifyError(o.Err)
		return ev
	}

	ev.Outcome = "ok"
	ev.Samples = formatSamples(o.Channel.Samples)
	ev.ElapsedMs = o.Channel.Provenance.ElapsedMs
	return ev
}

// checkExpect validates a step's trace event against its expect clause.
func checkExpect(result *Result, n int, expect *Expect, ev TraceEvent) {
	if expect == nil {
		if ev.Outcome != "ok" {
			result.AddError("step %d: expected success, got %s", n, ev.Outcome)
		}
		return
	}

	if expect.Error != "" {
		if ev.Outcome != expect.Error {
			result.AddError("step %d: expected error %s, got %s", n, expect.Error, ev.Outcome)
		}
		return
	}

	if ev.Outcome != "ok" {
		result.AddError("step %d: expected success, got %s", n, ev.Outcome)
		return
	}
	if expect.Expression != "" && ev.Expression != expect.Expression {
		result.AddError("step %d: expected expression %q, got %q", n, expect.Expression, ev.Expression)
	}
	if len(expect.Samples) > 0 {
		if len(ev.Samples) != len(expect.Samples) {
			result.AddError("step %d: expected %d samples, got %d", n, len(expect.Samples), len(ev.Samples))
			return
		}
		for i := range expect.Samples {
			if ev.Samples[i] != expect.Samples[i] {
				result.AddError("step %d: sample %d: expected %s, got %s", n, i, expect.Samples[i], ev.Samples[i])
			}
		}
	}
}

// buildRecording turns the inline fixture into a base-channel registry.
func buildRecording(spec *RecordingSpec) (*channel.Recording, error) {
	channels := make([]*channel.BaseChannel, 0, len(spec.Channels))
	for _, c := range spec.Channels {
		kind := channel.KindAnalog
		if c.Kind == string(channel.KindDigital) {
			kind = channel.KindDigital
		}
		channels = append(channels, &channel.BaseChannel{
			ID:         c.ID,
			Unit:       c.Unit,
			Kind:       kind,
			SampleRate: spec.SampleRate,
			Samples:    c.Samples,
		})
	}
	return channel.NewRecording(channels)
}

// formatSamples renders result samples for trace comparison. Inf and NaN
// spell as "+Inf", "-Inf" and "NaN".
func formatSamples(samples []float64) []string {
	out := make([]string, len(samples))
	for i, v := range samples {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
