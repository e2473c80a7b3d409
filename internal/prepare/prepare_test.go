package prepare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/eval"
)

func testRecording(t *testing.T) *channel.Recording {
	t.Helper()
	rec, err := channel.NewRecording([]*channel.BaseChannel{
		{ID: "IA", Kind: channel.KindAnalog, Samples: []float64{1, 2, 3}},
		{ID: "IB", Kind: channel.KindAnalog, Samples: []float64{10, 20, 30}},
		{ID: "TRIP", Kind: channel.KindDigital, Samples: []float64{0, 1, 1}},
	})
	require.NoError(t, err)
	return rec
}

func validated(t *testing.T, rec *channel.Recording, expression string) *eval.Validation {
	t.Helper()
	v, err := eval.Validate(expression, rec)
	require.NoError(t, err)
	return v
}

func TestPrepare_BindsReferencedChannels(t *testing.T) {
	rec := testRecording(t)
	task, err := New(rec).Prepare(validated(t, rec, "IA + IB"))
	require.NoError(t, err)

	assert.Equal(t, "IA + IB", task.Expression)
	assert.Equal(t, 3, task.SampleCount)
	require.Len(t, task.Bindings, 2)
	assert.Equal(t, "IA", task.Bindings[0].Name)
	assert.Equal(t, []float64{1, 2, 3}, task.Bindings[0].Samples)
	assert.Equal(t, "IB", task.Bindings[1].Name)
	assert.Equal(t, []float64{10, 20, 30}, task.Bindings[1].Samples)
}

func TestPrepare_CopiesBuffers(t *testing.T) {
	rec := testRecording(t)
	task, err := New(rec).Prepare(validated(t, rec, "IA"))
	require.NoError(t, err)

	task.Bindings[0].Samples[0] = 99
	assert.Equal(t, 1.0, rec.Get("IA").Samples[0], "recording buffer must stay intact")
}

func TestPrepare_DigitalBoundAsFloat(t *testing.T) {
	rec := testRecording(t)
	task, err := New(rec).Prepare(validated(t, rec, "TRIP * IA"))
	require.NoError(t, err)

	require.Len(t, task.Bindings, 2)
	assert.Equal(t, []float64{0, 1, 1}, task.Bindings[0].Samples)
}

func TestPrepare_MissingChannel(t *testing.T) {
	rec := testRecording(t)
	v := validated(t, rec, "IA")
	// Simulate the channel disappearing between validation and prepare.
	v.Refs = []string{"GONE"}

	_, err := New(rec).Prepare(v)
	require.Error(t, err)
	assert.True(t, IsMissingChannel(err))
	assert.Contains(t, err.Error(), "GONE")
}

func TestTask_DetachMovesOwnership(t *testing.T) {
	rec := testRecording(t)
	task, err := New(rec).Prepare(validated(t, rec, "IA + IB"))
	require.NoError(t, err)

	moved := task.Detach()

	require.Len(t, moved, 2)
	assert.Len(t, moved[0].Samples, 3)
	for _, b := range task.Bindings {
		assert.Zero(t, len(b.Samples), "detached binding %s must have zero length", b.Name)
	}
}

func TestCadence_Defaults(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"one percent of n", 1000, 10},
		{"clamped low", 50, 1},
		{"clamped high", 10_000_000, 10000},
		{"empty recording", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Preparer{}
			assert.Equal(t, tt.want, p.cadenceFor(tt.n))
		})
	}
}

func TestCadence_Override(t *testing.T) {
	rec := testRecording(t)
	task, err := New(rec, WithCadence(2)).Prepare(validated(t, rec, "IA"))
	require.NoError(t, err)
	assert.Equal(t, 2, task.Cadence)
}
