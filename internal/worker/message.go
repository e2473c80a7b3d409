package worker

// CrashPrefix marks failure messages that came from a worker-level crash
// (panic) rather than an ordinary evaluation error.
const CrashPrefix = "worker crashed: "

// Message is a tagged frame emitted by an evaluation worker. For one task
// the worker emits zero or more Progress frames followed by exactly one
// terminal frame: Complete or Failure. Frames are delivered in emission
// order.
type Message interface {
	isMessage()
}

// Progress reports how far the evaluation loop has advanced.
type Progress struct {
	// Percent is floor(100 * processed / total), in 0..100.
	Percent int
	// Processed is the number of samples evaluated so far.
	Processed int
	// Total is the task's sample count.
	Total int
}

// Complete is the terminal frame of a successful evaluation. Ownership of
// Results moves back to the controller side with this frame.
type Complete struct {
	Results     []float64
	SampleCount int
}

// Failure is the terminal frame of a failed evaluation.
type Failure struct {
	// Message is the human-readable failure description.
	Message string
	// Crash marks worker-level failures (panics) as opposed to ordinary
	// evaluation errors.
	Crash bool
}

func (Progress) isMessage() {}
func (Complete) isMessage() {}
func (Failure) isMessage()  {}
