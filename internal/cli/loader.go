package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/recwave/recwave/internal/channel"
)

// recordingFixture is the JSON shape of a recording file: the sample rate
// plus every base channel with its full sample buffer.
type recordingFixture struct {
	SampleRate float64          `json:"sample_rate"`
	Channels   []channelFixture `json:"channels"`
}

type channelFixture struct {
	ID      string    `json:"id"`
	Label   string    `json:"label,omitempty"`
	Unit    string    `json:"unit,omitempty"`
	Kind    string    `json:"kind,omitempty"` // "analog" (default) or "digital"
	Samples []float64 `json:"samples"`
}

// LoadRecording reads a JSON recording fixture and builds the base-channel
// registry. Digital samples are carried as float64 like analog ones.
func LoadRecording(path string) (*channel.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("reading recording %s", path), Err: err}
	}

	var fx recordingFixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("parsing recording %s", path), Err: err}
	}
	if len(fx.Channels) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("recording %s has no channels", path))
	}

	channels := make([]*channel.BaseChannel, 0, len(fx.Channels))
	for _, c := range fx.Channels {
		kind := channel.KindAnalog
		if c.Kind == string(channel.KindDigital) {
			kind = channel.KindDigital
		}
		channels = append(channels, &channel.BaseChannel{
			ID:         c.ID,
			Label:      c.Label,
			Unit:       c.Unit,
			Kind:       kind,
			SampleRate: fx.SampleRate,
			Samples:    c.Samples,
		})
	}

	rec, err := channel.NewRecording(channels)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("building recording %s", path), Err: err}
	}
	return rec, nil
}
