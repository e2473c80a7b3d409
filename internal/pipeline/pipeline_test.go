package pipeline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/config"
	"github.com/recwave/recwave/internal/eval"
	"github.com/recwave/recwave/internal/prepare"
	"github.com/recwave/recwave/internal/session"
	"github.com/recwave/recwave/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRecording(t *testing.T) *channel.Recording {
	t.Helper()
	rec, err := channel.NewRecording([]*channel.BaseChannel{
		{ID: "IA", Kind: channel.KindAnalog, SampleRate: 4800, Samples: []float64{1, 2, 3}},
		{ID: "IB", Kind: channel.KindAnalog, SampleRate: 4800, Samples: []float64{10, 20, 30}},
	})
	require.NoError(t, err)
	return rec
}

// bigRecording keeps a worker busy long enough for cancellation tests.
func bigRecording(t *testing.T) *channel.Recording {
	t.Helper()
	samples := make([]float64, 5_000_000)
	for i := range samples {
		samples[i] = float64(i)
	}
	rec, err := channel.NewRecording([]*channel.BaseChannel{
		{ID: "IA", Kind: channel.KindAnalog, SampleRate: 4800, Samples: samples},
	})
	require.NoError(t, err)
	return rec
}

func testPipeline(t *testing.T, rec *channel.Recording, opts ...Option) *Pipeline {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore(rec, log)
	integrator := session.NewIntegrator(store, rec, session.WithIntegratorLogger(log))
	base := []Option{WithLogger(log)}
	return New(rec, store, integrator, prepare.New(rec), append(base, opts...)...)
}

func waitOutcome(t *testing.T, run *Run) Outcome {
	t.Helper()
	select {
	case o := <-run.Done:
		return o
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return Outcome{}
	}
}

func TestSubmit_Success(t *testing.T) {
	rec := testRecording(t)
	p := testPipeline(t, rec, WithIDGenerator(channel.NewFixedGenerator("ch-1")))

	run, err := p.Submit(SubmitRequest{
		Label: "Sum",
		Unit:  "A",
		LaTeX: `I_{A} + I_{B}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "ch-1", run.ChannelID)
	assert.Equal(t, "IA + IB", run.Expression)

	o := waitOutcome(t, run)
	require.NoError(t, o.Err)
	require.NotNil(t, o.Channel)
	assert.Equal(t, "ch-1", o.Channel.ID)
	assert.Equal(t, "Sum", o.Channel.Label)
	assert.Equal(t, "A", o.Channel.Unit)
	assert.Equal(t, []float64{11, 22, 33}, o.Channel.Samples)
	assert.Equal(t, []string{"IA", "IB"}, o.Channel.Refs)

	assert.True(t, p.Store().Has("ch-1"))
	assert.False(t, p.Running("ch-1"))
}

func TestSubmit_ProgressReachesCaller(t *testing.T) {
	rec := testRecording(t)
	p := testPipeline(t, rec, WithIDGenerator(channel.NewFixedGenerator("ch-1")))

	run, err := p.Submit(SubmitRequest{Label: "Sum", LaTeX: `I_{A}`})
	require.NoError(t, err)

	o := waitOutcome(t, run)
	require.NoError(t, o.Err)

	frames := drained(run)
	require.NotEmpty(t, frames)
	assert.Equal(t, 100, frames[len(frames)-1].Percent)
}

// drained returns the progress frames buffered so far, in emission order.
func drained(run *Run) []worker.Progress {
	var out []worker.Progress
	for {
		select {
		case pr := <-run.Progress:
			out = append(out, pr)
		default:
			return out
		}
	}
}

func TestSubmit_EmptyExpression(t *testing.T) {
	p := testPipeline(t, testRecording(t))

	_, err := p.Submit(SubmitRequest{LaTeX: "   "})
	require.Error(t, err)
	assert.True(t, eval.IsEmptyExpression(err))
	assert.Empty(t, p.Store().List())
}

func TestSubmit_UnknownIdentifier(t *testing.T) {
	p := testPipeline(t, testRecording(t))

	_, err := p.Submit(SubmitRequest{LaTeX: `I_{A} + I_{X}`})
	require.Error(t, err)
	assert.True(t, eval.IsUnknownIdentifier(err))
	assert.Empty(t, p.Store().List())
}

func TestSubmit_RejectPolicyBusy(t *testing.T) {
	rec := bigRecording(t)
	p := testPipeline(t, rec)

	run, err := p.Submit(SubmitRequest{ChannelID: "c1", LaTeX: `\sqrt{I_{A}}`})
	require.NoError(t, err)
	require.True(t, p.Running("c1"))

	_, err = p.Submit(SubmitRequest{ChannelID: "c1", LaTeX: `I_{A}`})
	require.Error(t, err)
	assert.True(t, IsBusy(err))

	require.True(t, p.Cancel("c1"))
	o := waitOutcome(t, run)
	assert.ErrorIs(t, o.Err, ErrCancelled)
}

func TestSubmit_PreemptPolicyCancelsPrior(t *testing.T) {
	rec := bigRecording(t)
	p := testPipeline(t, rec, WithPolicy(config.PolicyPreempt))

	first, err := p.Submit(SubmitRequest{ChannelID: "c1", LaTeX: `\sqrt{I_{A}}`})
	require.NoError(t, err)

	second, err := p.Submit(SubmitRequest{ChannelID: "c1", Label: "v2", LaTeX: `I_{A}`})
	require.NoError(t, err)

	o1 := waitOutcome(t, first)
	assert.ErrorIs(t, o1.Err, ErrCancelled)

	o2 := waitOutcome(t, second)
	require.NoError(t, o2.Err)
	require.NotNil(t, o2.Channel)
	assert.Equal(t, "v2", o2.Channel.Label)
}

func TestCancel(t *testing.T) {
	rec := bigRecording(t)
	p := testPipeline(t, rec)

	run, err := p.Submit(SubmitRequest{ChannelID: "c1", LaTeX: `I_{A} * I_{A}`})
	require.NoError(t, err)

	require.True(t, p.Cancel("c1"))
	o := waitOutcome(t, run)
	assert.ErrorIs(t, o.Err, ErrCancelled)

	assert.False(t, p.Running("c1"))
	assert.False(t, p.Store().Has("c1"))

	// Nothing left in flight.
	assert.False(t, p.Cancel("c1"))
}

func TestSubmit_RerunReplaces(t *testing.T) {
	rec := testRecording(t)
	p := testPipeline(t, rec, WithIDGenerator(channel.NewFixedGenerator("ch-1")))

	first, err := p.Submit(SubmitRequest{Label: "v1", LaTeX: `I_{A}`})
	require.NoError(t, err)
	o := waitOutcome(t, first)
	require.NoError(t, o.Err)

	second, err := p.Submit(SubmitRequest{ChannelID: "ch-1", Label: "v2", LaTeX: `I_{A} + I_{B}`})
	require.NoError(t, err)
	o = waitOutcome(t, second)
	require.NoError(t, o.Err)

	list := p.Store().List()
	require.Len(t, list, 1)
	assert.Equal(t, "v2", list[0].Label)
	assert.Equal(t, []float64{11, 22, 33}, list[0].Samples)
}

func TestSubmit_StoreUntouchedOnWorkerError(t *testing.T) {
	rec := testRecording(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore(rec, log)
	integrator := session.NewIntegrator(store, rec, session.WithIntegratorLogger(log))
	// Prepare against a shorter recording so the worker's buffer disagrees
	// with the integrator's expected sample count.
	other, err := channel.NewRecording([]*channel.BaseChannel{
		{ID: "IA", Kind: channel.KindAnalog, SampleRate: 4800, Samples: []float64{1, 2}},
	})
	require.NoError(t, err)
	p := New(other, store, integrator, prepare.New(other), WithLogger(log))

	run, err := p.Submit(SubmitRequest{LaTeX: `I_{A}`})
	require.NoError(t, err)
	o := waitOutcome(t, run)
	require.Error(t, o.Err)
	assert.True(t, session.IsLengthMismatch(o.Err))
	assert.Empty(t, store.List())
}

func TestErrorClassification(t *testing.T) {
	crash := &EvaluationError{Message: "index out of range", Crash: true}
	assert.True(t, IsWorkerCrash(crash))
	assert.False(t, IsEvaluationFailure(crash))
	assert.Contains(t, crash.Error(), "WORKER_CRASH")

	fail := &EvaluationError{Message: "bad op"}
	assert.True(t, IsEvaluationFailure(fail))
	assert.False(t, IsWorkerCrash(fail))
	assert.Contains(t, fail.Error(), "EVALUATION_FAILURE")

	assert.False(t, IsBusy(crash))
	assert.True(t, IsBusy(&BusyError{ChannelID: "c1"}))
}
