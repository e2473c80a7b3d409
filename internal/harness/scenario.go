package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a recording fixture plus a
// sequence of submissions with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden
	// trace file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Recording is the base-channel fixture every step runs against.
	Recording RecordingSpec `yaml:"recording"`

	// Steps are executed in order; each submission runs to completion
	// before the next starts.
	Steps []Step `yaml:"steps"`
}

// RecordingSpec is the inline recording fixture.
type RecordingSpec struct {
	SampleRate float64       `yaml:"sample_rate"`
	Channels   []ChannelSpec `yaml:"channels"`
}

// ChannelSpec is one base channel of the fixture.
type ChannelSpec struct {
	ID      string    `yaml:"id"`
	Unit    string    `yaml:"unit,omitempty"`
	Kind    string    `yaml:"kind,omitempty"` // "analog" (default) or "digital"
	Samples []float64 `yaml:"samples"`
}

// Step submits one expression and checks its outcome.
type Step struct {
	// LaTeX is the source expression.
	LaTeX string `yaml:"latex"`

	Label string `yaml:"label,omitempty"`
	Unit  string `yaml:"unit,omitempty"`

	// ID re-runs an existing computed channel when set.
	ID string `yaml:"id,omitempty"`

	// Expect validates the outcome. A nil Expect only requires success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Expression is the expected translated expression.
	Expression string `yaml:"expression,omitempty"`

	// Samples are the expected result samples, formatted with
	// strconv.FormatFloat(v, 'g', -1, 64). IEEE oddities spell as "+Inf",
	// "-Inf" and "NaN".
	Samples []string `yaml:"samples,omitempty"`

	// Error is the expected error code ("UNKNOWN_IDENTIFIER", "BUSY", ...).
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in a directory, sorted by file
// name for deterministic test ordering.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Recording.Channels) == 0 {
		return fmt.Errorf("recording.channels is required and must be non-empty")
	}
	for i, ch := range s.Recording.Channels {
		if ch.ID == "" {
			return fmt.Errorf("recording.channels[%d]: id is required", i)
		}
		if len(ch.Samples) == 0 {
			return fmt.Errorf("recording.channels[%d]: samples is required", i)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.LaTeX == "" && (step.Expect == nil || step.Expect.Error == "") {
			return fmt.Errorf("steps[%d]: latex is required unless an error is expected", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && len(step.Expect.Samples) > 0 {
			return fmt.Errorf("steps[%d].expect: error and samples are mutually exclusive", i)
		}
	}
	return nil
}
