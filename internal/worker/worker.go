// Package worker runs expression evaluation off the caller's goroutine.
//
// A Controller owns exactly one evaluation worker: it spawns the worker
// goroutine, routes its tagged messages into callbacks, enforces the
// lifecycle (terminal frame terminates the worker; termination is
// idempotent), and supports immediate cancellation.
package worker

import (
	"fmt"

	"github.com/recwave/recwave/internal/eval"
	"github.com/recwave/recwave/internal/prepare"
)

// runTask is the evaluation worker body. It compiles the expression once,
// walks the sample index range, fills the result buffer, and emits progress
// frames every cadence samples plus one at the final index. It always ends
// with exactly one terminal frame unless the quit channel closes first.
//
// Per-sample Inf/NaN results are stored as-is; IEEE-754 oddities are data,
// not errors. A panic anywhere in the loop becomes a Failure frame with
// Crash set.
func runTask(expression string, bindings []prepare.Binding, n, cadence int, msgs chan<- Message, quit <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			send(msgs, quit, Failure{Message: fmt.Sprintf("%s%v", CrashPrefix, r), Crash: true})
		}
	}()

	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.Name
	}
	prog, err := eval.Compile(expression, names)
	if err != nil {
		send(msgs, quit, Failure{Message: err.Error()})
		return
	}

	if cadence < 1 {
		cadence = 1
	}

	results := make([]float64, n)
	scope := prog.NewScope()
	for i := 0; i < n; i++ {
		for _, b := range bindings {
			scope[b.Name] = b.Samples[i]
		}
		v, err := prog.Run(scope)
		if err != nil {
			send(msgs, quit, Failure{Message: err.Error()})
			return
		}
		results[i] = v

		if (i+1)%cadence == 0 || i == n-1 {
			ok := send(msgs, quit, Progress{
				Percent:   100 * (i + 1) / n,
				Processed: i + 1,
				Total:     n,
			})
			if !ok {
				return
			}
		}
	}

	send(msgs, quit, Complete{Results: results, SampleCount: n})
}

// send delivers a message unless the controller has terminated. Returns
// false when the quit channel is closed, which tells the loop to stop.
func send(msgs chan<- Message, quit <-chan struct{}, m Message) bool {
	select {
	case msgs <- m:
		return true
	case <-quit:
		return false
	}
}
